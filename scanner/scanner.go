package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/wbb/internal/device"
	"github.com/srg/wbb/internal/devicefactory"
	"github.com/srg/wbb/internal/ringchan"
)

// DefaultNamePrefix is the name the balance board advertises.
const DefaultNamePrefix = "Nintendo RVL-WBC-01"

// ErrNotFound is returned when no board answered within the scan window.
var ErrNotFound = errors.New("no balance board found")

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

func (t DeviceEventType) String() string {
	switch t {
	case EventNew:
		return "new"
	case EventUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

type DeviceEvent struct {
	Type  DeviceEventType
	Entry DeviceEntry
}

// DeviceEntry is what the scanner knows about one device
type DeviceEntry struct {
	Address     device.Address
	Name        string
	RSSI        int
	Connectable bool
	FirstSeen   time.Time
	LastSeen    time.Time
}

// HasPrefix reports whether the device advertised a name starting with prefix.
// An empty prefix matches every device.
func (e DeviceEntry) HasPrefix(prefix string) bool {
	return prefix == "" || strings.HasPrefix(e.Name, prefix)
}

// Scanner handles device discovery
type Scanner struct {
	devices *hashmap.Map[device.Address, DeviceEntry]
	events  *ringchan.RingChannel[DeviceEvent]
	logger  *logrus.Logger
	now     func() time.Time
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool
	NamePrefix      string
	AllowList       []string
	BlockList       []string
	// LowEnergy scans for BLE advertisements instead of running a classic
	// inquiry. The board only answers inquiries.
	LowEnergy bool
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        6 * time.Second,
		DuplicateFilter: true,
		NamePrefix:      DefaultNamePrefix,
	}
}

// NewScanner creates a new scanner
func NewScanner(logger *logrus.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		devices: hashmap.New[device.Address, DeviceEntry](),
		events:  ringchan.New[DeviceEvent](100),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Scan listens for advertisements for opts.Duration (0 scans until ctx is done)
// and returns every device that passed the allow/block filters, keyed by address.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (map[device.Address]DeviceEntry, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	s.devices = hashmap.New[device.Address, DeviceEntry]()

	if err := s.run(ctx, opts, nil); err != nil {
		return nil, err
	}

	devices := make(map[device.Address]DeviceEntry, s.devices.Len())
	s.devices.Range(func(key device.Address, value DeviceEntry) bool {
		devices[key] = value
		return true
	})
	return devices, nil
}

// Discover scans until the first device whose name starts with
// opts.NamePrefix shows up, or until opts.Duration elapses. There is no retry.
func (s *Scanner) Discover(ctx context.Context, opts *ScanOptions) (device.Address, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	s.devices = hashmap.New[device.Address, DeviceEntry]()

	scanCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		mu    sync.Mutex
		found device.Address
	)
	onMatch := func(entry DeviceEntry) {
		mu.Lock()
		defer mu.Unlock()
		if found != "" {
			return
		}
		found = entry.Address
		s.logger.WithFields(logrus.Fields{
			"device":  entry.Name,
			"address": entry.Address,
		}).Info("Found balance board")
		stop()
	}

	if err := s.run(scanCtx, opts, onMatch); err != nil {
		return "", err
	}

	mu.Lock()
	defer mu.Unlock()
	if found != "" {
		return found, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w within %s (prefix %q)", ErrNotFound, opts.Duration, opts.NamePrefix)
}

// run drives one scan window. onMatch, when set, is called for entries matching the name prefix.
func (s *Scanner) run(ctx context.Context, opts *ScanOptions, onMatch func(DeviceEntry)) error {
	factory := devicefactory.DeviceFactory
	if opts.LowEnergy {
		factory = devicefactory.LEDeviceFactory
	}
	dev, err := factory()
	if err != nil {
		return fmt.Errorf("failed to create scanning device: %w", err)
	}
	if closer, ok := dev.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				s.logger.WithError(err).Warn("Failed to release scanning device")
			}
		}()
	}

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.logger.WithFields(logrus.Fields{
		"duration": opts.Duration,
		"prefix":   opts.NamePrefix,
		"le":       opts.LowEnergy,
	}).Info("Scanning for devices...")

	err = dev.Scan(ctx, !opts.DuplicateFilter, func(adv device.Advertisement) {
		entry, ok := s.handleAdvertisement(adv, opts)
		if ok && onMatch != nil && entry.HasPrefix(opts.NamePrefix) {
			onMatch(entry)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("Scan completed")
	return nil
}

// handleAdvertisement updates existing or adds a new device
func (s *Scanner) handleAdvertisement(adv device.Advertisement, opts *ScanOptions) (DeviceEntry, bool) {
	addr, err := device.ParseAddress(adv.Addr())
	if err != nil {
		s.logger.WithField("address", adv.Addr()).Debug("Ignoring advertisement with unparsable address")
		return DeviceEntry{}, false
	}
	if !s.shouldIncludeDevice(addr, opts) {
		return DeviceEntry{}, false
	}

	now := s.now()
	entry, existing := s.devices.Get(addr)
	if !existing {
		entry = DeviceEntry{Address: addr, FirstSeen: now}
	}
	if name := adv.LocalName(); name != "" {
		entry.Name = name
	}
	entry.RSSI = adv.RSSI()
	entry.Connectable = adv.Connectable()
	entry.LastSeen = now
	s.devices.Set(addr, entry)

	event := DeviceEvent{Entry: entry, Type: EventUpdated}
	if !existing {
		event.Type = EventNew
		s.logger.WithFields(logrus.Fields{
			"device":  entry.Name,
			"address": entry.Address,
			"rssi":    entry.RSSI,
		}).Debug("Discovered new device")
	}
	s.events.Send(event)

	return entry, true
}

// shouldIncludeDevice applies the allow and block lists
func (s *Scanner) shouldIncludeDevice(addr device.Address, opts *ScanOptions) bool {
	matches := func(list []string) bool {
		return slices.ContainsFunc(list, func(a string) bool {
			return strings.EqualFold(strings.TrimSpace(a), string(addr))
		})
	}

	if matches(opts.BlockList) {
		return false
	}
	if len(opts.AllowList) > 0 && !matches(opts.AllowList) {
		return false
	}
	return true
}

// Events return a read-only channel of device events
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}

// Discover is a one-shot convenience around Scanner.Discover.
func Discover(ctx context.Context, opts *ScanOptions, logger *logrus.Logger) (device.Address, error) {
	s, err := NewScanner(logger)
	if err != nil {
		return "", err
	}
	return s.Discover(ctx, opts)
}
