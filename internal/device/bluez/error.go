package bluez

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/srg/wbb/internal/device"
)

const errInProgress = "org.bluez.Error.InProgress"

// NormalizeError maps D-Bus error names to the device package sentinels.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	switch errorName(err) {
	case "org.bluez.Error.NotReady",
		"org.freedesktop.DBus.Error.UnknownObject",
		"org.freedesktop.DBus.Error.ServiceUnknown":
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case "org.bluez.Error.NotAuthorized",
		"org.freedesktop.DBus.Error.AccessDenied":
		return fmt.Errorf("%w: %v", device.ErrUnsupported, err)
	default:
		return err
	}
}

// errorName returns the D-Bus error name carried by err, or "".
func errorName(err error) string {
	if err == nil {
		return ""
	}
	var v dbus.Error
	if errors.As(err, &v) {
		return v.Name
	}
	var p *dbus.Error
	if errors.As(err, &p) && p != nil {
		return p.Name
	}
	return ""
}
