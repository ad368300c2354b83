//go:build linux

package devicefactory

import (
	"github.com/srg/wbb/internal/device"
	"github.com/srg/wbb/internal/device/bluez"
)

func newPlatformScanner() (device.ScanningDevice, error) {
	s, err := bluez.NewScanner(hciDevice)
	if err != nil {
		return nil, err
	}
	return s, nil
}
