//go:build !linux && !darwin

package goble

import (
	"fmt"
	"runtime"

	ble "github.com/go-ble/ble"
	"github.com/srg/wbb/internal/device"
)

// HCIDevice has no meaning on this platform.
var HCIDevice = 0

func newPlatformDevice() (ble.Device, error) {
	return nil, fmt.Errorf("bluetooth scanning on %s: %w", runtime.GOOS, device.ErrUnsupported)
}
