package bluez

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/srg/wbb/internal/device"
)

// stopTimeout bounds StopDiscovery, which runs after the scan ctx is done.
const stopTimeout = time.Second

// signalBuffer is the depth of the signal channel handed to the bus
const signalBuffer = 64

// Scanner runs BR/EDR inquiries on one adapter. It implements
// device.ScanningDevice; Close releases the bus connection.
type Scanner struct {
	bus     Bus
	adapter dbus.ObjectPath
}

var _ device.ScanningDevice = (*Scanner)(nil)

// NewScanner connects to the system bus and scans with adapter hci<id>
func NewScanner(id int) (*Scanner, error) {
	bus, err := ConnectBus()
	if err != nil {
		return nil, fmt.Errorf("bluez system bus: %w: %v", device.ErrBluetoothOff, err)
	}
	return &Scanner{bus: bus, adapter: AdapterPath(id)}, nil
}

// Adapter returns the object path of the scanning adapter
func (s *Scanner) Adapter() dbus.ObjectPath {
	return s.adapter
}

// Scan starts discovery and reports devices until ctx is done, returning
// ctx.Err(). Without allowDup an address is reported again only when its
// name changed, so a device first seen without a name is reported once more
// when the name resolves.
func (s *Scanner) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	signals := make(chan *dbus.Signal, signalBuffer)
	unsubscribe, err := s.bus.Subscribe(signals)
	if err != nil {
		return fmt.Errorf("bluez subscribe: %w", NormalizeError(err))
	}
	defer unsubscribe()

	filter := map[string]dbus.Variant{"Transport": dbus.MakeVariant("bredr")}
	if err := s.bus.Call(ctx, s.adapter, adapterInterface+".SetDiscoveryFilter", filter); err != nil {
		return fmt.Errorf("bluez %s: set discovery filter: %w", s.adapter, NormalizeError(err))
	}
	if err := s.bus.Call(ctx, s.adapter, adapterInterface+".StartDiscovery"); err != nil && errorName(err) != errInProgress {
		return fmt.Errorf("bluez %s: start discovery: %w", s.adapter, NormalizeError(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = s.bus.Call(stopCtx, s.adapter, adapterInterface+".StopDiscovery")
	}()

	reported := make(map[string]string) // address -> last reported name
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("bluez %s: bus connection closed: %w", s.adapter, device.ErrBluetoothOff)
			}
			props, ok := s.deviceProperties(ctx, sig)
			if !ok {
				continue
			}
			adv, ok := newAdvertisement(props)
			if !ok {
				continue
			}
			if name, seen := reported[adv.addr]; seen && !allowDup && name == adv.name {
				continue
			}
			reported[adv.addr] = adv.name
			handler(adv)
		}
	}
}

// Close releases the bus connection
func (s *Scanner) Close() error {
	return s.bus.Close()
}

// deviceProperties extracts Device1 properties for a device below the
// adapter from sig. PropertiesChanged carries only the delta, so the full set
// is fetched when RSSI or Name changed.
func (s *Scanner) deviceProperties(ctx context.Context, sig *dbus.Signal) (map[string]dbus.Variant, bool) {
	if sig == nil {
		return nil, false
	}

	switch sig.Name {
	case interfacesAddedSignal:
		if len(sig.Body) < 2 {
			return nil, false
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok || !s.owns(path) {
			return nil, false
		}
		ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return nil, false
		}
		props, ok := ifaces[deviceInterface]
		return props, ok

	case propertiesChangedSignal:
		if len(sig.Body) < 2 || !s.owns(sig.Path) {
			return nil, false
		}
		if iface, _ := sig.Body[0].(string); iface != deviceInterface {
			return nil, false
		}
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return nil, false
		}
		_, rssi := changed["RSSI"]
		_, name := changed["Name"]
		if !rssi && !name {
			return nil, false
		}

		props, err := s.bus.GetAll(ctx, sig.Path, deviceInterface)
		if err != nil {
			// device removed between the signal and the lookup
			return nil, false
		}
		if props == nil {
			props = make(map[string]dbus.Variant, len(changed))
		}
		for k, v := range changed {
			props[k] = v
		}
		return props, true
	}
	return nil, false
}

func (s *Scanner) owns(path dbus.ObjectPath) bool {
	return strings.HasPrefix(string(path), string(s.adapter)+"/")
}

// advertisement is a Device1 property snapshot seen as device.Advertisement.
// Inquiry results are always connectable.
type advertisement struct {
	name string
	addr string
	rssi int
}

// newAdvertisement requires Address and RSSI. BlueZ drops RSSI for cached
// devices that were not seen by the current inquiry.
func newAdvertisement(props map[string]dbus.Variant) (advertisement, bool) {
	addrV, ok := props["Address"]
	if !ok {
		return advertisement{}, false
	}
	addr, ok := addrV.Value().(string)
	if !ok || addr == "" {
		return advertisement{}, false
	}
	rssiV, ok := props["RSSI"]
	if !ok {
		return advertisement{}, false
	}
	rssi, ok := rssiV.Value().(int16)
	if !ok {
		return advertisement{}, false
	}

	adv := advertisement{addr: addr, rssi: int(rssi)}
	if nameV, ok := props["Name"]; ok {
		adv.name, _ = nameV.Value().(string)
	}
	return adv, true
}

func (a advertisement) LocalName() string { return a.name }
func (a advertisement) Addr() string      { return a.addr }
func (a advertisement) RSSI() int         { return a.rssi }
func (a advertisement) Connectable() bool { return true }
