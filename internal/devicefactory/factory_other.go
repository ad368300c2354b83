//go:build !linux

package devicefactory

import (
	"github.com/srg/wbb/internal/device"
	goble "github.com/srg/wbb/internal/device/go-ble"
)

// Without BlueZ the go-ble backend is the only scanner available.
func newPlatformScanner() (device.ScanningDevice, error) {
	return goble.NewScanner()
}
