//go:build linux

package l2cap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srg/wbb/internal/device"
	"golang.org/x/sys/unix"
)

// socket is a blocking L2CAP socket whose reads are bounded by SO_RCVTIMEO
type socket struct {
	fd     int
	psm    uint16
	closed atomic.Bool
	once   sync.Once
}

func dial(ctx context.Context, octets [6]byte, psm uint16, opts device.DialOptions) (device.Channel, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_L2CAP)
	if err != nil {
		if errors.Is(err, unix.EAFNOSUPPORT) {
			return nil, fmt.Errorf("l2cap socket: %w: %v", device.ErrUnsupported, err)
		}
		return nil, fmt.Errorf("l2cap socket: %w", err)
	}

	// Connect on a Bluetooth socket waits for at most SO_SNDTIMEO.
	timeout, err := connectTimeout(ctx, opts.ConnectTimeout, time.Now())
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("l2cap connect psm 0x%02x: %w", psm, err)
	}
	if err := setTimeout(fd, unix.SO_SNDTIMEO, timeout); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := setTimeout(fd, unix.SO_RCVTIMEO, opts.ReceiveTimeout); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	// AddrType zero is BR/EDR; the board is a classic device.
	sa := &unix.SockaddrL2{PSM: psm, Addr: octets}
	if err := unix.Connect(fd, sa); err != nil {
		_ = unix.Close(fd)
		if errors.Is(err, unix.EINPROGRESS) || errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ETIMEDOUT) {
			return nil, fmt.Errorf("l2cap connect psm 0x%02x: %w", psm, device.ErrTimeout)
		}
		if errors.Is(err, unix.EHOSTDOWN) || errors.Is(err, unix.ENETDOWN) {
			return nil, fmt.Errorf("l2cap connect psm 0x%02x: %w: %v", psm, device.ErrBluetoothOff, err)
		}
		return nil, fmt.Errorf("l2cap connect psm 0x%02x: %w", psm, err)
	}

	return &socket{fd: fd, psm: psm}, nil
}

func setTimeout(fd, opt int, d time.Duration) error {
	if d < 0 {
		d = 0
	}
	tv := unix.NsecToTimeval(d.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, opt, &tv); err != nil {
		return fmt.Errorf("l2cap setsockopt %d: %w", opt, err)
	}
	return nil
}

// Read returns device.ErrTimeout when SO_RCVTIMEO elapses and io.EOF on a
// zero-length read.
func (s *socket) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, net.ErrClosed
	}

	n, err := unix.Read(s.fd, p)
	switch {
	case err == nil && n == 0:
		return 0, io.EOF
	case err == nil:
		return n, nil
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, unix.EINTR):
		return 0, device.ErrTimeout
	case errors.Is(err, unix.ECONNRESET), errors.Is(err, unix.ENOTCONN):
		return 0, io.EOF
	default:
		if s.closed.Load() {
			return 0, net.ErrClosed
		}
		return 0, fmt.Errorf("l2cap read psm 0x%02x: %w", s.psm, err)
	}
}

func (s *socket) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, net.ErrClosed
	}

	n, err := unix.Write(s.fd, p)
	if err != nil {
		return n, fmt.Errorf("l2cap write psm 0x%02x: %w", s.psm, err)
	}
	return n, nil
}

// Close shuts the socket down first so a reader blocked in another goroutine
// returns before the descriptor is released.
func (s *socket) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		_ = unix.Shutdown(s.fd, unix.SHUT_RDWR)
		err = unix.Close(s.fd)
	})
	return err
}
