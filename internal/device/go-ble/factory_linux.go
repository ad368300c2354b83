//go:build linux

package goble

import (
	ble "github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// HCIDevice selects the adapter used for scanning (hci0 by default).
var HCIDevice = 0

func newPlatformDevice() (ble.Device, error) {
	return linux.NewDevice(ble.OptDeviceID(HCIDevice))
}
