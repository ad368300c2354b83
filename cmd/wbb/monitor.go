package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/wbb/pkg/board"
	"golang.org/x/time/rate"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor [address]",
	Short: "Stream events from a balance board",
	Long: `Connect to a balance board, run the calibration handshake and print
status, calibration, mass and button events until the board disconnects
or Ctrl+C is pressed.

Without an address the first board found by a scan is used.`,
	Example: `  wbb monitor
  wbb monitor 00:1E:35:AA:BB:CC --format json --mass-rate 0`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMonitor,
}

var (
	monitorFormat     string
	monitorMassRate   float64
	monitorCount      int
	monitorCalTimeout time.Duration
)

func init() {
	monitorCmd.Flags().StringVarP(&monitorFormat, "format", "f", "", "Output format (text, json; default from config)")
	monitorCmd.Flags().Float64Var(&monitorMassRate, "mass-rate", -1, "Max mass events printed per second, 0 prints all (default from config)")
	monitorCmd.Flags().IntVarP(&monitorCount, "count", "n", 0, "Stop after printing this many events (0 = until disconnect)")
	monitorCmd.Flags().DurationVar(&monitorCalTimeout, "calibration-timeout", 10*time.Second, "Give up if calibration does not complete in time")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	format := cfg.OutputFormat
	if monitorFormat != "" {
		format = monitorFormat
	}
	renderer, err := newRenderer(format, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	massRate := cfg.MassRate
	if monitorMassRate >= 0 {
		massRate = monitorMassRate
	}
	if monitorCount < 0 {
		return fmt.Errorf("invalid count %d: must not be negative", monitorCount)
	}
	if monitorCalTimeout <= 0 {
		return fmt.Errorf("invalid calibration timeout %s: must be positive", monitorCalTimeout)
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := interruptContext(cmd.Context(), cmd.ErrOrStderr(), "disconnecting")
	defer stop()

	session, err := connectBoard(ctx, cmd, args, cfg, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	m := &monitor{
		session:     session,
		renderer:    renderer,
		logger:      logger,
		count:       monitorCount,
		calDeadline: time.Now().Add(monitorCalTimeout),
	}
	if massRate > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(massRate), 1)
	}
	return m.run(ctx)
}

type monitor struct {
	session     *board.Session
	renderer    eventRenderer
	logger      *logrus.Logger
	limiter     *rate.Limiter
	count       int
	printed     int
	dropped     int
	calDeadline time.Time
}

// run drives the session until the count is reached, the board disconnects
// or ctx is cancelled.
func (m *monitor) run(ctx context.Context) error {
	if err := m.session.StartCalibration(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, err := m.session.Poll()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}

		if ev == nil {
			if !m.session.IsCalibrated() && time.Now().After(m.calDeadline) {
				return fmt.Errorf("%w: no calibration data from %s", ErrCalibrationTimeout, m.session.Address())
			}
			continue
		}

		if ev.Kind() == board.KindMass && m.limiter != nil && !m.limiter.Allow() {
			m.dropped++
			continue
		}

		if err := m.renderer.Render(ev); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
		m.printed++
		if m.count > 0 && m.printed >= m.count {
			m.logger.WithFields(logrus.Fields{
				"printed": m.printed,
				"dropped": m.dropped,
			}).Debug("Event count reached")
			return nil
		}
	}
}
