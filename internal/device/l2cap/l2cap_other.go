//go:build !linux

package l2cap

import (
	"context"
	"fmt"

	"github.com/srg/wbb/internal/device"
)

func dial(_ context.Context, _ [6]byte, psm uint16, _ device.DialOptions) (device.Channel, error) {
	return nil, fmt.Errorf("l2cap psm 0x%02x: %w", psm, device.ErrUnsupported)
}
