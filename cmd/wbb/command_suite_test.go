package main

import (
	"bytes"
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/wbb/internal/device"
	"github.com/srg/wbb/internal/devicefactory"
	"github.com/srg/wbb/internal/testutils"
	"github.com/stretchr/testify/suite"
)

// Test board addresses for consistent fake board identification
const (
	TestBoardAddress1 = "00:1E:35:AA:BB:CC"
	TestBoardAddress2 = "00:1E:35:11:22:33"
)

// CommandTestSuite swaps the device factory and the L2CAP dialer for fakes
// and runs rootCmd in-process. All cmd/wbb suites embed it.
type CommandTestSuite struct {
	suite.Suite

	Board     *testutils.FakeBoard
	Adverts   []device.Advertisement
	LEAdverts []device.Advertisement
	ScanErr   error

	originalFactory   func() (device.ScanningDevice, error)
	originalLEFactory func() (device.ScanningDevice, error)
	originalDialer    device.Dialer
}

func (s *CommandTestSuite) SetupSuite() {
	s.originalFactory = devicefactory.DeviceFactory
	s.originalLEFactory = devicefactory.LEDeviceFactory
	s.originalDialer = devicefactory.Dialer
}

func (s *CommandTestSuite) TearDownSuite() {
	devicefactory.DeviceFactory = s.originalFactory
	devicefactory.LEDeviceFactory = s.originalLEFactory
	devicefactory.Dialer = s.originalDialer
}

func (s *CommandTestSuite) SetupTest() {
	s.reset()
}

func (s *CommandTestSuite) SetupSubTest() {
	s.reset()
}

func (s *CommandTestSuite) reset() {
	resetFlags()

	s.Board = testutils.NewFakeBoard()
	s.Adverts = nil
	s.LEAdverts = nil
	s.ScanErr = nil

	devicefactory.Dialer = func(ctx context.Context, addr device.Address, psm uint16, opts device.DialOptions) (device.Channel, error) {
		return s.Board.Dialer()(ctx, addr, psm, opts)
	}
	devicefactory.DeviceFactory = func() (device.ScanningDevice, error) {
		return testutils.NewScriptedScanningDevice(s.ScanErr, s.Adverts...), nil
	}
	devicefactory.LEDeviceFactory = func() (device.ScanningDevice, error) {
		return testutils.NewScriptedScanningDevice(s.ScanErr, s.LEAdverts...), nil
	}
}

// PushFrames appends data channel reports to the fake board script.
func (s *CommandTestSuite) PushFrames(frames ...[]byte) {
	for _, f := range frames {
		s.Board.Data.Push(testutils.Frame(f...))
	}
}

// PushCalibration scripts a status report followed by both calibration blocks.
func (s *CommandTestSuite) PushCalibration() {
	s.PushFrames(
		testutils.StatusFrame(0x00, 100),
		testutils.FirstCalibrationBlock(),
		testutils.SecondCalibrationBlock(),
	)
}

// ExecuteCommand runs rootCmd with args, returns stdout, stderr and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, string, error) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// Lines splits command output into non-empty lines.
func Lines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// resetFlags puts every flag of every command back to its default so one
// test's arguments never leak into the next.
func resetFlags() {
	reset := func(f *pflag.Flag) {
		if _, ok := f.Value.(pflag.SliceValue); !ok {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}

	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
		c.SilenceUsage = false
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)

	scanAllowList = nil
	scanBlockList = nil
}
