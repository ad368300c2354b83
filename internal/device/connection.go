package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// RecvOutcome classifies a single receive on the data channel
type RecvOutcome int

const (
	// RecvData means bytes arrived.
	RecvData RecvOutcome = iota
	// RecvTimedOut means nothing arrived within the receive timeout. Not an error.
	RecvTimedOut
	// RecvPeerClosed means the board closed the channel. The connection is torn down.
	RecvPeerClosed
	// RecvHardError means any other transport failure. The connection is torn down.
	RecvHardError
)

func (o RecvOutcome) String() string {
	switch o {
	case RecvData:
		return "data"
	case RecvTimedOut:
		return "timed_out"
	case RecvPeerClosed:
		return "peer_closed"
	case RecvHardError:
		return "hard_error"
	default:
		return fmt.Sprintf("recv_outcome(%d)", int(o))
	}
}

// Terminal reports whether the outcome tore the connection down.
func (o RecvOutcome) Terminal() bool {
	return o == RecvPeerClosed || o == RecvHardError
}

// Connection owns the control (outgoing) and data (incoming) channels to one board
type Connection struct {
	address Address
	control Channel
	data    Channel
	logger  *logrus.Logger

	connected atomic.Bool
	closeOnce sync.Once
}

// Connect opens the control channel, then the data channel. If either fails,
// whatever was opened is closed again and a ConnectFailed error is returned.
func Connect(ctx context.Context, address Address, opts *ConnectOptions, logger *logrus.Logger) (*Connection, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultConnectOptions()
	}
	if opts.Dialer == nil {
		return nil, &ConnectionError{State: ConnectFailed, Msg: "no dialer configured"}
	}
	if _, err := address.Bytes(); err != nil {
		return nil, &ConnectionError{State: ConnectFailed, Err: err}
	}

	dialOpts := DialOptions{
		ConnectTimeout: opts.ConnectTimeout,
		ReceiveTimeout: opts.ReceiveTimeout,
	}

	logger.WithFields(logrus.Fields{
		"address":     address,
		"control_psm": opts.ControlPSM,
		"data_psm":    opts.DataPSM,
	}).Info("Connecting to board...")

	control, err := opts.Dialer(ctx, address, opts.ControlPSM, dialOpts)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to open control channel")
		return nil, &ConnectionError{State: ConnectFailed, Msg: "control channel", Err: err}
	}

	data, err := opts.Dialer(ctx, address, opts.DataPSM, dialOpts)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to open data channel")
		if cerr := control.Close(); cerr != nil {
			logger.WithField("close_error", cerr).Warn("Failed to close control channel after data channel failure")
		}
		return nil, &ConnectionError{State: ConnectFailed, Msg: "data channel", Err: err}
	}

	c := &Connection{
		address: address,
		control: control,
		data:    data,
		logger:  logger,
	}
	c.connected.Store(true)

	logger.WithField("address", address).Info("Connected channels")
	return c, nil
}

// Address returns the peer address
func (c *Connection) Address() Address {
	return c.address
}

// IsConnected reports whether both channels are still open
func (c *Connection) IsConnected() bool {
	return c.connected.Load()
}

// Send writes one framed command to the control channel. No acknowledgement
// is awaited. A failed write tears the connection down.
func (c *Connection) Send(cmd []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if _, err := c.control.Write(cmd); err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": c.address,
			"error":   err,
		}).Error("Failed to write command")
		c.teardown()
		return &ConnectionError{State: NotConnected, Msg: "write failed", Err: err}
	}
	return nil
}

// Recv reads at most maxLen bytes from the data channel. Data is returned only
// with RecvData; err is set only with RecvHardError.
func (c *Connection) Recv(maxLen int) ([]byte, RecvOutcome, error) {
	if !c.IsConnected() {
		return nil, RecvHardError, ErrNotConnected
	}

	buf := make([]byte, maxLen)
	n, err := c.data.Read(buf)
	outcome := classifyRecv(n, err)

	switch outcome {
	case RecvData:
		return buf[:n], RecvData, nil
	case RecvTimedOut:
		return nil, RecvTimedOut, nil
	case RecvPeerClosed:
		c.logger.WithField("address", c.address).Info("Board closed the connection")
		c.teardown()
		return nil, RecvPeerClosed, nil
	default:
		c.logger.WithFields(logrus.Fields{
			"address": c.address,
			"error":   err,
		}).Error("Receive failed")
		c.teardown()
		return nil, RecvHardError, &ConnectionError{State: NotConnected, Msg: "receive failed", Err: err}
	}
}

// classifyRecv maps a channel read result to a receive outcome
func classifyRecv(n int, err error) RecvOutcome {
	switch {
	case err == nil && n > 0:
		return RecvData
	case err == nil:
		return RecvPeerClosed
	case errors.Is(err, ErrTimeout):
		return RecvTimedOut
	case errors.Is(err, io.EOF):
		return RecvPeerClosed
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return RecvTimedOut
		}
		return RecvHardError
	}
}

// Close releases both channels. Safe to call more than once and from another
// goroutine than the one receiving.
func (c *Connection) Close() error {
	return c.teardown()
}

func (c *Connection) teardown() error {
	var err error
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		err = errors.Join(c.data.Close(), c.control.Close())
		if err != nil {
			c.logger.WithField("error", err).Warn("Error while closing channels")
		}
		c.logger.WithField("address", c.address).Debug("Channels closed")
	})
	return err
}
