//go:build darwin

package goble

import (
	ble "github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

// HCIDevice is ignored on macOS; CoreBluetooth picks the adapter.
var HCIDevice = 0

func newPlatformDevice() (ble.Device, error) {
	return darwin.NewDevice()
}
