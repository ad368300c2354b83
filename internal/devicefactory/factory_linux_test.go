//go:build linux

package devicefactory

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/srg/wbb/internal/device"
	"github.com/srg/wbb/internal/device/bluez"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformScannerIsBluezInquiry(t *testing.T) {
	originalConnect, originalHCI := bluez.ConnectBus, HCIDevice()
	t.Cleanup(func() {
		bluez.ConnectBus = originalConnect
		SetHCIDevice(originalHCI)
	})

	bluez.ConnectBus = func() (bluez.Bus, error) { return nil, nil }
	SetHCIDevice(3)

	dev, err := DeviceFactory()
	require.NoError(t, err)
	s, ok := dev.(*bluez.Scanner)
	require.True(t, ok, "Linux discovery MUST use the BlueZ scanner, got %T", dev)
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci3"), s.Adapter())

	bluez.ConnectBus = func() (bluez.Bus, error) { return nil, errors.New("no system bus") }
	dev, err = DeviceFactory()
	assert.ErrorIs(t, err, device.ErrBluetoothOff)
	assert.Nil(t, dev, "a failed factory MUST return a nil interface")
}
