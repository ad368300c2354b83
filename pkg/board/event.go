package board

import (
	"time"

	"github.com/srg/wbb/internal/calibration"
)

// EventKind identifies the concrete type behind an Event
type EventKind int

const (
	KindStatus EventKind = iota
	KindCalibration
	KindMass
	KindButton
)

func (k EventKind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindCalibration:
		return "calibration"
	case KindMass:
		return "mass"
	case KindButton:
		return "button"
	default:
		return "unknown"
	}
}

// Event is produced by Session.Poll. The set of implementations is closed:
// StatusEvent, CalibrationEvent, MassEvent and ButtonEvent.
type Event interface {
	Kind() EventKind
	Time() time.Time
	event()
}

// StatusEvent reports battery level and light state.
type StatusEvent struct {
	BatteryPct float64
	LightOn    bool
	At         time.Time
}

// CalibrationEvent is emitted once, when the calibration matrix is complete.
type CalibrationEvent struct {
	Matrix calibration.Matrix
	At     time.Time
}

// MassEvent carries one calibrated reading in kilograms.
type MassEvent struct {
	Reading calibration.Reading
	At      time.Time
}

// ButtonEvent is emitted on every press and release of the front button.
type ButtonEvent struct {
	Pressed bool
	At      time.Time
}

func (StatusEvent) Kind() EventKind      { return KindStatus }
func (CalibrationEvent) Kind() EventKind { return KindCalibration }
func (MassEvent) Kind() EventKind        { return KindMass }
func (ButtonEvent) Kind() EventKind      { return KindButton }

func (e StatusEvent) Time() time.Time      { return e.At }
func (e CalibrationEvent) Time() time.Time { return e.At }
func (e MassEvent) Time() time.Time        { return e.At }
func (e ButtonEvent) Time() time.Time      { return e.At }

func (StatusEvent) event()      {}
func (CalibrationEvent) event() {}
func (MassEvent) event()        {}
func (ButtonEvent) event()      {}

// buttonTracker turns button levels into edges.
type buttonTracker struct {
	pressed bool
}

// update returns the new state and true when down differs from the last level seen.
func (t *buttonTracker) update(down bool) (pressed bool, edge bool) {
	if down == t.pressed {
		return t.pressed, false
	}
	t.pressed = down
	return down, true
}
