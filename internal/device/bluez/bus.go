// Package bluez discovers Bluetooth classic devices through the BlueZ daemon
// over the D-Bus system bus.
//
// Discovery is an inquiry on the adapter (org.bluez.Adapter1) restricted to
// BR/EDR. Devices show up as org.bluez.Device1 objects below the adapter path,
// either as new objects (InterfacesAdded) or as RSSI updates on objects BlueZ
// already knows (PropertiesChanged). The adapter stays owned by the kernel, so
// L2CAP sockets opened afterwards are unaffected.
package bluez

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	Service = "org.bluez"

	adapterInterface       = "org.bluez.Adapter1"
	deviceInterface        = "org.bluez.Device1"
	propertiesInterface    = "org.freedesktop.DBus.Properties"
	objectManagerInterface = "org.freedesktop.DBus.ObjectManager"

	interfacesAddedSignal   = objectManagerInterface + ".InterfacesAdded"
	propertiesChangedSignal = propertiesInterface + ".PropertiesChanged"
)

// Bus is the part of the system bus the scanner talks to
type Bus interface {
	// Call invokes method on the BlueZ object at path.
	Call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) error
	// GetAll returns every property of iface on the BlueZ object at path.
	GetAll(ctx context.Context, path dbus.ObjectPath, iface string) (map[string]dbus.Variant, error)
	// Subscribe routes BlueZ object and property signals to ch until the
	// returned function is called.
	Subscribe(ch chan<- *dbus.Signal) (func(), error)
	Close() error
}

// ConnectBus opens a private system bus connection.
// This is a variable so that it can be overridden in tests.
var ConnectBus = func() (Bus, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	return &systemBus{conn: conn}, nil
}

// AdapterPath returns the object path of local adapter hci<id>
func AdapterPath(id int) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("/org/bluez/hci%d", id))
}

type systemBus struct {
	conn *dbus.Conn
}

var matchRules = [][]dbus.MatchOption{
	{
		dbus.WithMatchSender(Service),
		dbus.WithMatchInterface(objectManagerInterface),
		dbus.WithMatchMember("InterfacesAdded"),
	},
	{
		dbus.WithMatchSender(Service),
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
	},
}

func (b *systemBus) Call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) error {
	return b.conn.Object(Service, path).CallWithContext(ctx, method, 0, args...).Err
}

func (b *systemBus) GetAll(ctx context.Context, path dbus.ObjectPath, iface string) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	err := b.conn.Object(Service, path).
		CallWithContext(ctx, propertiesInterface+".GetAll", 0, iface).
		Store(&props)
	return props, err
}

func (b *systemBus) Subscribe(ch chan<- *dbus.Signal) (func(), error) {
	for i, rule := range matchRules {
		if err := b.conn.AddMatchSignal(rule...); err != nil {
			for _, added := range matchRules[:i] {
				_ = b.conn.RemoveMatchSignal(added...)
			}
			return nil, err
		}
	}
	b.conn.Signal(ch)

	return func() {
		b.conn.RemoveSignal(ch)
		for _, rule := range matchRules {
			_ = b.conn.RemoveMatchSignal(rule...)
		}
	}, nil
}

func (b *systemBus) Close() error {
	return b.conn.Close()
}
