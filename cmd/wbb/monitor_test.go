package main

import (
	"testing"

	"github.com/srg/wbb/internal/device"
	"github.com/srg/wbb/internal/protocol"
	"github.com/srg/wbb/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type MonitorTestSuite struct {
	CommandTestSuite
}

// pushSession scripts a full session: status, calibration, one mass report
// and a button press.
func (s *MonitorTestSuite) pushSession() {
	s.PushCalibration()
	s.PushFrames(
		testutils.ExtensionFrame(false, testutils.Row17kg),
		testutils.ExtensionFrame(true, testutils.Row17kg),
	)
}

func (s *MonitorTestSuite) TestMonitorText() {
	// GOAL: Verify the text rendering of every event kind
	//
	// TEST SCENARIO: Status, calibration, mass, button press → four aligned lines

	s.pushSession()

	stdout, _, err := s.ExecuteCommand("monitor", TestBoardAddress1, "--count", "4", "--mass-rate", "0")
	s.Require().NoError(err, "monitor MUST stop cleanly once the count is reached")

	testutils.NewTextAsserter(s.T()).WithOptions(testutils.WithMasks(testutils.ClockMask)).Assert(stdout, `
<CLOCK> status      battery  50.0%  light off
<CLOCK> calibration TR 100/1000/1900  BR 101/1001/1901  TL 102/1002/1902  BL 103/1003/1903
<CLOCK> mass        total  68.00 kg  TR 17.00  BR 17.00  TL 17.00  BL 17.00  balance +0.00,+0.00
<CLOCK> button      pressed
`)
}

func (s *MonitorTestSuite) TestMonitorJSON() {
	// GOAL: Verify one JSON object per event with a stable key set
	//
	// TEST SCENARIO: Same session with --format json → four objects, timestamps only checked for presence

	s.pushSession()

	stdout, _, err := s.ExecuteCommand("monitor", TestBoardAddress1, "--count", "4", "--mass-rate", "0", "--format", "json")
	s.Require().NoError(err, "monitor MUST stop cleanly once the count is reached")

	testutils.NewJSONAsserter(s.T()).WithOptions(testutils.WithIgnoreExtraKeys(false)).AssertLines(Lines(stdout),
		`{"time": "<<PRESENCE>>", "kind": "status", "battery_pct": 50, "light_on": false}`,
		`{"time": "<<PRESENCE>>", "kind": "calibration", "matrix": {
			"top_right": [100, 1000, 1900],
			"bottom_right": [101, 1001, 1901],
			"top_left": [102, 1002, 1902],
			"bottom_left": [103, 1003, 1903]
		}}`,
		`{"time": "<<PRESENCE>>", "kind": "mass", "total_kg": 68,
			"corners": {"top_right": 17, "bottom_right": 17, "top_left": 17, "bottom_left": 17},
			"balance": [0, 0]}`,
		`{"time": "<<PRESENCE>>", "kind": "button", "pressed": true}`,
	)
}

func (s *MonitorTestSuite) TestMonitorDrivesHandshake() {
	// GOAL: Verify the commands sent to the board during a session
	//
	// TEST SCENARIO: Calibration then status → handshake writes, then reporting mode and light

	s.pushSession()

	_, _, err := s.ExecuteCommand("monitor", TestBoardAddress1, "--count", "1")
	s.Require().NoError(err)

	s.Equal([]uint16{device.ControlPSM, device.DataPSM}, s.Board.Dialed(), "control channel MUST be opened before data")
	s.Equal([]byte{
		protocol.OpReadRegister,
		protocol.OpRegister,
		protocol.OpRequestStatus,
		protocol.OpLight,
		protocol.OpReporting,
		protocol.OpLight,
	}, s.Board.Control.Opcodes())
	s.True(s.Board.Control.IsClosed(), "channels MUST be closed on exit")
	s.True(s.Board.Data.IsClosed(), "channels MUST be closed on exit")
}

func (s *MonitorTestSuite) TestMonitorDiscovers() {
	// GOAL: Verify the board is discovered when no address is given
	//
	// TEST SCENARIO: One board advertises → session opens against its address

	s.Adverts = []device.Advertisement{testutils.NewBoardAdvertisement(TestBoardAddress2)}
	s.PushCalibration()

	_, stderr, err := s.ExecuteCommand("monitor", "--count", "1")
	s.Require().NoError(err)
	s.Contains(stderr, "Found balance board "+TestBoardAddress2)
}

func (s *MonitorTestSuite) TestMonitorMassRate() {
	// GOAL: Verify mass events are throttled
	//
	// TEST SCENARIO: Ten back-to-back mass reports at 1 event/s → only the first is printed before the press

	s.PushCalibration()
	for i := 0; i < 10; i++ {
		s.PushFrames(testutils.ExtensionFrame(false, testutils.Row17kg))
	}
	s.PushFrames(testutils.ExtensionFrame(true, testutils.Row17kg))

	stdout, _, err := s.ExecuteCommand("monitor", TestBoardAddress1, "--count", "4", "--mass-rate", "1")
	s.Require().NoError(err)

	lines := Lines(stdout)
	s.Require().Len(lines, 4)
	s.Contains(lines[2], "mass")
	s.Contains(lines[3], "button", "throttled mass events MUST be skipped")
}

func (s *MonitorTestSuite) TestMonitorFailures() {
	tests := []struct {
		name    string
		setup   func()
		args    []string
		wantErr error
		wantMsg string
	}{
		{
			name: "connection lost",
			setup: func() {
				s.PushFrames(testutils.StatusFrame(0x00, 100))
				s.Board.Data.Push(testutils.PeerClosed())
			},
			args:    []string{"monitor", TestBoardAddress1},
			wantErr: ErrConnectionLost,
		},
		{
			name:    "calibration timeout",
			setup:   func() {},
			args:    []string{"monitor", TestBoardAddress1, "--calibration-timeout", "50ms"},
			wantErr: ErrCalibrationTimeout,
		},
		{
			name: "connect failure",
			setup: func() {
				s.Board.FailDial(device.DataPSM, device.ErrTimeout)
			},
			args:    []string{"monitor", TestBoardAddress1},
			wantErr: device.ErrConnectFailed,
		},
		{
			name:    "invalid address",
			setup:   func() {},
			args:    []string{"monitor", "not-an-address"},
			wantMsg: "not-an-address",
		},
		{
			name:    "invalid format",
			setup:   func() {},
			args:    []string{"monitor", TestBoardAddress1, "--format", "xml"},
			wantMsg: "invalid format 'xml'",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			tt.setup()
			_, _, err := s.ExecuteCommand(tt.args...)
			s.Require().Error(err, "monitor MUST fail")
			if tt.wantErr != nil {
				s.ErrorIs(err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				s.Contains(err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestMonitorTestSuite(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}
