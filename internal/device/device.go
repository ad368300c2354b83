package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	ConnectFailed    ConnectionState = "connect_failed"
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
	Err   error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.State)
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Unwrap exposes the transport error behind the state
func (e *ConnectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Predefined sentinel errors for connection states
var (
	ErrConnectFailed    = &ConnectionError{State: ConnectFailed}
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
)

// Operation errors
var (
	ErrTimeout      = errors.New("timeout")
	ErrUnsupported  = errors.New("unsupported")
	ErrBluetoothOff = errors.New("bluetooth is turned off")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// Address is a Bluetooth device address in AA:BB:CC:DD:EE:FF form.
type Address string

// ParseAddress validates and normalizes a device address to upper case.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return "", fmt.Errorf("invalid device address %q", s)
	}
	return Address(strings.ToUpper(hw.String())), nil
}

// Bytes returns the six address octets in display order.
func (a Address) Bytes() ([6]byte, error) {
	var out [6]byte
	hw, err := net.ParseMAC(string(a))
	if err != nil || len(hw) != 6 {
		return out, fmt.Errorf("invalid device address %q", string(a))
	}
	copy(out[:], hw)
	return out, nil
}

func (a Address) String() string {
	return string(a)
}

// ScanningDevice represents a Bluetooth adapter capable of scanning for advertisements
type ScanningDevice interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Advertisement is the subset of an advertisement the board discovery needs
type Advertisement interface {
	LocalName() string
	Addr() string
	RSSI() int
	Connectable() bool
}

// Channel is one open L2CAP channel. Read honours the receive timeout set at
// dial time and returns ErrTimeout when it elapses, io.EOF when the peer
// closed the channel.
type Channel interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// DialOptions configures a single channel
type DialOptions struct {
	ConnectTimeout time.Duration
	ReceiveTimeout time.Duration
}

// Dialer opens one channel to psm on addr.
type Dialer func(ctx context.Context, addr Address, psm uint16, opts DialOptions) (Channel, error)

// Protocol ports of the board
const (
	ControlPSM uint16 = 0x11
	DataPSM    uint16 = 0x13
)

// ConnectOptions defines connection options
type ConnectOptions struct {
	ControlPSM     uint16
	DataPSM        uint16
	ConnectTimeout time.Duration
	ReceiveTimeout time.Duration
	Dialer         Dialer
}

// DefaultConnectOptions returns the board's ports and timeouts
func DefaultConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		ControlPSM:     ControlPSM,
		DataPSM:        DataPSM,
		ConnectTimeout: 10 * time.Second,
		ReceiveTimeout: 100 * time.Millisecond,
	}
}
