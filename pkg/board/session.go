// Package board is the public client for the balance board: discovery,
// connection, the calibration handshake and event polling.
//
// A Session is driven by a single goroutine calling Poll. Only Close may be
// called from elsewhere; the next Poll then reports ErrDisconnected.
package board

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/wbb/internal/calibration"
	"github.com/srg/wbb/internal/device"
	"github.com/srg/wbb/internal/devicefactory"
	"github.com/srg/wbb/internal/protocol"
	"github.com/srg/wbb/scanner"
)

// ErrDisconnected is returned once the transport is gone. The session is
// terminal from then on.
var ErrDisconnected = errors.New("board disconnected")

// State is the session lifecycle state
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateCalibrating
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateCalibrating:
		return "calibrating"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Session owns the board connection and all decoder state.
type Session struct {
	conn      *device.Connection
	logger    *logrus.Logger
	handshake calibration.Handshake
	matrix    calibration.Matrix
	buttons   buttonTracker
	now       func() time.Time

	state      atomic.Int32
	running    atomic.Bool
	calibrated atomic.Bool
}

// Discover scans for the first balance board. See scanner.Discover.
func Discover(ctx context.Context, opts *scanner.ScanOptions, logger *logrus.Logger) (device.Address, error) {
	return scanner.Discover(ctx, opts, logger)
}

// Connect opens both channels to the board at address. A nil opts uses
// device.DefaultConnectOptions; a nil Dialer uses devicefactory.Dialer.
func Connect(ctx context.Context, address device.Address, opts *device.ConnectOptions, logger *logrus.Logger) (*Session, error) {
	if logger == nil {
		logger = logrus.New()
	}

	var connOpts device.ConnectOptions
	if opts != nil {
		connOpts = *opts
	} else {
		connOpts = *device.DefaultConnectOptions()
	}
	if connOpts.Dialer == nil {
		connOpts.Dialer = devicefactory.Dialer
	}

	conn, err := device.Connect(ctx, address, &connOpts, logger)
	if err != nil {
		return nil, err
	}

	s := &Session{
		conn:   conn,
		logger: logger,
		matrix: calibration.NewMatrix(),
		now:    time.Now,
	}
	s.running.Store(true)
	s.setState(StateConnected)
	return s, nil
}

// Address returns the board address
func (s *Session) Address() device.Address {
	return s.conn.Address()
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// IsConnected reports whether both channels are open
func (s *Session) IsConnected() bool {
	return s.running.Load() && s.conn.IsConnected()
}

// IsCalibrated reports whether the calibration matrix is complete
func (s *Session) IsCalibrated() bool {
	return s.calibrated.Load()
}

// IsRunning reports whether the session has not been torn down
func (s *Session) IsRunning() bool {
	return s.running.Load()
}

// Matrix returns a copy of the calibration matrix. Cells are calibration.Unset
// until the handshake completes.
func (s *Session) Matrix() calibration.Matrix {
	return s.matrix
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// StartCalibration requests the calibration block and subscribes to extension
// reports. The caller then drives Poll until a CalibrationEvent arrives.
// Calling it again restarts the handshake.
func (s *Session) StartCalibration() error {
	if !s.running.Load() {
		return ErrDisconnected
	}

	s.handshake.Begin()
	s.matrix = s.handshake.Matrix()
	s.calibrated.Store(false)
	s.setState(StateCalibrating)
	s.logger.WithField("address", s.conn.Address()).Info("Requesting calibration...")

	return s.send(
		protocol.ReadCalibration(),
		protocol.RegisterExtension(),
		protocol.RequestStatus(),
		protocol.Light(false),
	)
}

// Calibrate runs the handshake to completion and returns the matrix. Events
// other than the calibration itself are dropped. Cancelling ctx returns
// ctx.Err() and leaves the session calibrating.
func (s *Session) Calibrate(ctx context.Context) (calibration.Matrix, error) {
	switch s.State() {
	case StateReady:
		return s.matrix, nil
	case StateCalibrating:
	default:
		if err := s.StartCalibration(); err != nil {
			return calibration.Matrix{}, err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return calibration.Matrix{}, err
		}

		ev, err := s.Poll()
		if err != nil {
			return calibration.Matrix{}, err
		}
		if cal, ok := ev.(CalibrationEvent); ok {
			return cal.Matrix, nil
		}
	}
}

// Poll receives at most one report and returns at most one event. A nil
// event with a nil error means nothing happened within the receive timeout
// or the frame carried nothing to report.
func (s *Session) Poll() (Event, error) {
	if !s.running.Load() {
		return nil, ErrDisconnected
	}

	buf, outcome, err := s.conn.Recv(protocol.MaxFrameSize)
	switch outcome {
	case device.RecvData:
	case device.RecvTimedOut:
		return nil, nil
	default:
		s.terminate()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDisconnected, outcome, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrDisconnected, outcome)
	}

	frame, err := protocol.Decode(buf)
	if err != nil {
		s.logger.WithField("error", err).Debug("Dropping frame")
		return nil, nil
	}

	switch frame.Tag {
	case protocol.TagStatus:
		return s.onStatus(frame)
	case protocol.TagReadData:
		return s.onReadData(frame)
	case protocol.TagExtension:
		return s.onExtension(frame), nil
	default:
		s.logger.WithField("tag", fmt.Sprintf("0x%02X", byte(frame.Tag))).Debug("Ignoring unknown report")
		return nil, nil
	}
}

// onStatus re-sends the reporting subscription. The board stops streaming
// extension reports after every status report otherwise.
func (s *Session) onStatus(frame protocol.Frame) (Event, error) {
	st, err := frame.Status()
	if err != nil {
		s.logger.WithField("error", err).Debug("Dropping frame")
		return nil, nil
	}

	if err := s.send(protocol.ContinuousExtensionReporting(), protocol.Light(true)); err != nil {
		return nil, err
	}

	return StatusEvent{
		BatteryPct: st.BatteryPercent(),
		LightOn:    st.LightOn(),
		At:         s.now(),
	}, nil
}

func (s *Session) onReadData(frame protocol.Frame) (Event, error) {
	rd, err := frame.ReadData()
	if err != nil {
		s.logger.WithField("error", err).Debug("Dropping frame")
		return nil, nil
	}

	complete, err := s.handshake.Feed(rd.Length, rd.Payload)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"length": rd.Length,
			"state":  s.handshake.State(),
			"error":  err,
		}).Debug("Ignoring calibration block")
		return nil, nil
	}
	s.matrix = s.handshake.Matrix()
	if !complete {
		s.logger.WithField("state", s.handshake.State()).Debug("Calibration block stored")
		return nil, nil
	}

	s.calibrated.Store(true)
	s.setState(StateReady)
	s.logger.WithField("address", s.conn.Address()).Info("Calibration complete")

	if err := s.send(protocol.Light(true)); err != nil {
		return nil, err
	}
	return CalibrationEvent{Matrix: s.matrix, At: s.now()}, nil
}

// onExtension emits a button edge if there is one, otherwise a mass reading.
func (s *Session) onExtension(frame protocol.Frame) Event {
	if !s.calibrated.Load() {
		return nil
	}

	ext, err := frame.Extension()
	if err != nil {
		return nil
	}

	if ext.HasButtons() {
		if pressed, edge := s.buttons.update(ext.ButtonDown()); edge {
			return ButtonEvent{Pressed: pressed, At: s.now()}
		}
	}

	if !ext.HasMass {
		return nil
	}
	reading, err := s.matrix.Reading(ext.Mass)
	if err != nil {
		s.logger.WithField("error", err).Debug("Dropping mass report")
		return nil
	}
	return MassEvent{Reading: reading, At: s.now()}
}

// send writes commands in order. A failed write is terminal.
func (s *Session) send(cmds ...protocol.Command) error {
	for _, cmd := range cmds {
		if err := s.conn.Send(cmd); err != nil {
			s.terminate()
			return fmt.Errorf("%w: %w", ErrDisconnected, err)
		}
	}
	return nil
}

// RequestStatus asks the board for a status report. The reply re-arms mass
// reporting.
func (s *Session) RequestStatus() error {
	if !s.running.Load() {
		return ErrDisconnected
	}
	return s.send(protocol.RequestStatus())
}

// Light switches the power button LED. The next status report turns it back on.
func (s *Session) Light(on bool) error {
	if !s.running.Load() {
		return ErrDisconnected
	}
	return s.send(protocol.Light(on))
}

func (s *Session) terminate() {
	s.running.Store(false)
	s.setState(StateDisconnected)
	_ = s.conn.Close()
}

// Close releases both channels. Safe to call more than once and concurrently
// with Poll.
func (s *Session) Close() error {
	wasRunning := s.running.Swap(false)
	s.setState(StateDisconnected)
	err := s.conn.Close()
	if wasRunning {
		s.logger.WithField("address", s.conn.Address()).Info("Session closed")
	}
	return err
}
