// Package devicefactory holds the overridable constructors for the scanning
// backend and the L2CAP dialer.
package devicefactory

import (
	"github.com/srg/wbb/internal/device"
	goble "github.com/srg/wbb/internal/device/go-ble"
	"github.com/srg/wbb/internal/device/l2cap"
)

// DeviceFactory creates the device.ScanningDevice used for discovery. The
// board is a classic (BR/EDR) device, so on Linux this is a BlueZ inquiry.
// This is a variable so that it can be overridden in tests.
var DeviceFactory = newPlatformScanner

// LEDeviceFactory creates a BLE advertisement scanner. It never finds the
// board itself and serves listing nearby LE devices.
// This is a variable so that it can be overridden in tests.
var LEDeviceFactory = func() (device.ScanningDevice, error) {
	return goble.NewScanner()
}

// Dialer opens the board's L2CAP channels.
// This is a variable so that it can be overridden in tests.
var Dialer device.Dialer = l2cap.Dial

var hciDevice = 0

// SetHCIDevice selects the local adapter used for scanning.
func SetHCIDevice(id int) {
	hciDevice = id
	goble.HCIDevice = id
}

// HCIDevice returns the adapter selected by SetHCIDevice
func HCIDevice() int {
	return hciDevice
}
