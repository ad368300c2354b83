package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/srg/wbb/internal/device"
	"github.com/srg/wbb/pkg/board"
	"github.com/srg/wbb/pkg/config"
	"github.com/srg/wbb/scanner"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the board went away while events were streaming.
	// This is distinct from device.ErrNotConnected, which indicates an attempt to use
	// a connection that was never opened or was already closed.
	ErrConnectionLost = errors.New("connection lost")

	// ErrCalibrationTimeout is returned when the board never answered the calibration read.
	ErrCalibrationTimeout = errors.New("calibration timed out")
)

// FormatUserError turns an error chain into a one-line message with a hint
// where we know what the user can do about it.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var hint string
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		hint = "check that Bluetooth is turned on and the adapter is up (hciconfig / bluetoothctl)"
	case errors.Is(err, device.ErrUnsupported):
		hint = "L2CAP channels need Linux with BlueZ; scanning needs CAP_NET_ADMIN or root"
	case errors.Is(err, scanner.ErrNotFound):
		hint = "press the red sync button under the battery cover and scan again"
	case errors.Is(err, device.ErrConnectFailed):
		hint = "make sure the board is paired and awake (press the power button)"
	case errors.Is(err, ErrCalibrationTimeout):
		hint = "the board did not answer the calibration read; power-cycle it and retry"
	case errors.Is(err, ErrConnectionLost), errors.Is(err, board.ErrDisconnected):
		hint = "the board went to sleep or out of range"
	case errors.Is(err, config.ErrInvalidConfig):
		hint = "fix the configuration file"
	}

	msg := strings.TrimSpace(err.Error())
	if hint == "" {
		return msg
	}
	return fmt.Sprintf("%s\nHint: %s", msg, hint)
}
