package testutils

import (
	"context"

	"github.com/srg/wbb/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockScanningDevice is a testify mock of device.ScanningDevice.
type MockScanningDevice struct {
	mock.Mock
}

func (m *MockScanningDevice) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	args := m.Called(ctx, allowDup, handler)
	if fn, ok := args.Get(0).(func(context.Context, bool, func(device.Advertisement)) error); ok {
		return fn(ctx, allowDup, handler)
	}
	return args.Error(0)
}

// NewScriptedScanningDevice returns a mock whose Scan reports advs in order and then
// either returns scanErr or, when scanErr is nil, blocks until ctx is done and
// returns ctx.Err(). Reporting stops early when ctx is cancelled by the handler.
func NewScriptedScanningDevice(scanErr error, advs ...device.Advertisement) *MockScanningDevice {
	m := &MockScanningDevice{}
	m.On("Scan", mock.Anything, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
			for _, adv := range advs {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				handler(adv)
			}
			if scanErr != nil {
				return scanErr
			}
			<-ctx.Done()
			return ctx.Err()
		})
	return m
}
