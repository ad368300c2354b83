// Package l2cap opens Bluetooth classic L2CAP channels as device.Channel.
//
// Only Linux (BlueZ sockets) is supported; on other platforms Dial returns
// device.ErrUnsupported.
package l2cap

import (
	"context"
	"time"

	"github.com/srg/wbb/internal/device"
)

// Dial opens a connection-oriented L2CAP channel to psm on addr. It
// satisfies device.Dialer.
func Dial(ctx context.Context, addr device.Address, psm uint16, opts device.DialOptions) (device.Channel, error) {
	octets, err := addr.Bytes()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return dial(ctx, octets, psm, opts)
}

var _ device.Dialer = Dial

// connectTimeout bounds the configured connect timeout by the ctx deadline.
// A zero result means no timeout, so an expired deadline is reported as an
// error instead of being clamped to zero.
func connectTimeout(ctx context.Context, configured time.Duration, now time.Time) (time.Duration, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return configured, nil
	}
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 0, context.DeadlineExceeded
	}
	if configured <= 0 || remaining < configured {
		return remaining, nil
	}
	return configured, nil
}
