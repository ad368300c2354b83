package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/wbb/internal/device"
	"github.com/srg/wbb/pkg/board"
	"github.com/srg/wbb/pkg/config"
	"github.com/srg/wbb/scanner"
)

// resolveAddress parses the optional address argument, or discovers the
// first balance board when none is given.
func resolveAddress(ctx context.Context, cmd *cobra.Command, args []string, cfg *config.Config, logger *logrus.Logger) (device.Address, error) {
	if len(args) > 0 {
		return device.ParseAddress(args[0])
	}

	opts := scanner.DefaultScanOptions()
	opts.Duration = cfg.ScanTimeout
	opts.NamePrefix = cfg.NamePrefix

	progress := NewCountdownProgressPrinter(cmd.ErrOrStderr(), "Looking for a balance board", "Scanning", opts.Duration)
	progress.Start()
	addr, err := board.Discover(ctx, opts, logger)
	progress.Stop()
	if err != nil {
		return "", err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Found balance board %s\n", addr)
	return addr, nil
}

// connectBoard resolves the address and opens a session with the configured
// timeouts and PSMs.
func connectBoard(ctx context.Context, cmd *cobra.Command, args []string, cfg *config.Config, logger *logrus.Logger) (*board.Session, error) {
	addr, err := resolveAddress(ctx, cmd, args, cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := device.DefaultConnectOptions()
	opts.ConnectTimeout = cfg.ConnectTimeout
	opts.ReceiveTimeout = cfg.ReceiveTimeout
	opts.ControlPSM = cfg.ControlPSM
	opts.DataPSM = cfg.DataPSM

	session, err := board.Connect(ctx, addr, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	// Closing the session unblocks a pending Poll once the command is interrupted
	context.AfterFunc(ctx, func() { _ = session.Close() })
	return session, nil
}

// calibrate runs the handshake, bounded by timeout.
func calibrate(ctx context.Context, cmd *cobra.Command, session *board.Session, timeout time.Duration, logger *logrus.Logger) error {
	calCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	progress := NewProgressPrinter(cmd.ErrOrStderr(), "Calibrating", "Waiting for calibration data")
	progress.Start()
	m, err := session.Calibrate(calCtx)
	progress.Stop()

	switch {
	case err == nil:
		logger.WithField("complete", m.Complete()).Debug("Calibration matrix received")
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case calCtx.Err() != nil:
		return fmt.Errorf("%w after %s", ErrCalibrationTimeout, timeout)
	default:
		return fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
}
