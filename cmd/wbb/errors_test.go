package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/srg/wbb/internal/device"
	"github.com/srg/wbb/pkg/board"
	"github.com/srg/wbb/pkg/config"
	"github.com/srg/wbb/scanner"
	"github.com/stretchr/testify/assert"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHint string
	}{
		{"bluetooth off", fmt.Errorf("failed to create scanning device: %w", device.ErrBluetoothOff), "Bluetooth is turned on"},
		{"unsupported", fmt.Errorf("l2cap: %w", device.ErrUnsupported), "Linux with BlueZ"},
		{"not found", fmt.Errorf("%w within 6s", scanner.ErrNotFound), "red sync button"},
		{"connect failed", &device.ConnectionError{State: device.ConnectFailed, Msg: "data channel", Err: device.ErrTimeout}, "paired and awake"},
		{"calibration timeout", fmt.Errorf("%w after 10s", ErrCalibrationTimeout), "power-cycle"},
		{"connection lost", fmt.Errorf("%w: %w", ErrConnectionLost, board.ErrDisconnected), "sleep or out of range"},
		{"session disconnected", board.ErrDisconnected, "sleep or out of range"},
		{"invalid config", fmt.Errorf("%w: samples: must be positive", config.ErrInvalidConfig), "configuration file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := FormatUserError(tt.err)
			assert.Contains(t, msg, tt.err.Error(), "message MUST keep the original error")
			assert.Contains(t, msg, "\nHint: "+tt.wantHint)
		})
	}

	t.Run("no hint", func(t *testing.T) {
		assert.Equal(t, "boom", FormatUserError(errors.New(" boom\n")))
	})

	t.Run("nil", func(t *testing.T) {
		assert.Empty(t, FormatUserError(nil))
	})
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}
