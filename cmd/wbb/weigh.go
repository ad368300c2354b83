package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/wbb/pkg/board"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// weighCmd represents the weigh command
var weighCmd = &cobra.Command{
	Use:   "weigh [address]",
	Short: "Print the average weight over sample windows",
	Long: `Connect to a balance board, calibrate, then repeatedly average the total
mass over a window of samples and print one line per window:

  <unix time> <average kg>

After each window the command asks the board for a status report, which
re-arms mass reporting, then switches the LED off and pauses.`,
	Example: `  wbb weigh
  wbb weigh 00:1E:35:AA:BB:CC --samples 100 --loops 0`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWeigh,
}

var (
	weighSamples    int
	weighLoops      int
	weighPause      time.Duration
	weighFormat     string
	weighCalTimeout time.Duration
)

func init() {
	weighCmd.Flags().IntVarP(&weighSamples, "samples", "s", 0, "Samples per window (default from config, 200)")
	weighCmd.Flags().IntVarP(&weighLoops, "loops", "l", -1, "Number of windows, 0 runs until interrupted (default from config, 10)")
	weighCmd.Flags().DurationVarP(&weighPause, "pause", "p", -1, "Pause between windows (default from config, 2s)")
	weighCmd.Flags().StringVarP(&weighFormat, "format", "f", "", "Output format (text, json; default from config)")
	weighCmd.Flags().DurationVar(&weighCalTimeout, "calibration-timeout", 10*time.Second, "Give up if calibration does not complete in time")
}

func runWeigh(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	if weighSamples > 0 {
		cfg.Samples = weighSamples
	}
	if weighLoops >= 0 {
		cfg.Loops = weighLoops
	}
	if weighPause >= 0 {
		cfg.Pause = weighPause
	}
	if weighFormat != "" {
		cfg.OutputFormat = weighFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if weighCalTimeout <= 0 {
		return fmt.Errorf("invalid calibration timeout %s: must be positive", weighCalTimeout)
	}

	sampler, err := board.NewSampler(cfg.Samples)
	if err != nil {
		return err
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

	if err := calibrate(ctx, cmd, session, weighCalTimeout, logger); err != nil {
		return err
	}

	w := &weigher{
		session: session,
		sampler: sampler,
		out:     cmd.OutOrStdout(),
		json:    cfg.OutputFormat == "json",
		logger:  logger,
	}
	return w.run(ctx, cfg.Loops, cfg.Pause)
}

type weigher struct {
	session *board.Session
	sampler *board.Sampler
	out     io.Writer
	json    bool
	logger  *logrus.Logger
}

func (w *weigher) run(ctx context.Context, loops int, pause time.Duration) error {
	for loop := 1; loops == 0 || loop <= loops; loop++ {
		avg, err := w.window(ctx)
		if err != nil {
			return err
		}
		if err := w.print(time.Now(), avg); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}

		// The board streams mass again only after the next status report
		if err := w.session.RequestStatus(); err != nil {
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		if loops != 0 && loop == loops {
			return nil
		}
		if err := w.session.Light(false); err != nil {
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
	return nil
}

// window polls until the sampler has a full window of mass readings.
func (w *weigher) window(ctx context.Context) (float64, error) {
	w.sampler.Reset()
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		ev, err := w.session.Poll()
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}

		mass, ok := ev.(board.MassEvent)
		if !ok {
			continue
		}
		avg, full, err := w.sampler.Add(mass.Reading)
		if err != nil {
			return 0, err
		}
		if full {
			w.logger.WithFields(logrus.Fields{
				"samples": w.sampler.Size(),
				"avg_kg":  avg,
			}).Debug("Window complete")
			return avg, nil
		}
	}
}

func (w *weigher) print(at time.Time, avg float64) error {
	ts := float64(at.UnixMilli()) / 1000
	if !w.json {
		_, err := fmt.Fprintf(w.out, "%.3f %.3f\n", ts, avg)
		return err
	}

	om := orderedmap.New[string, any]()
	om.Set("time", ts)
	om.Set("avg_kg", round2(avg))
	om.Set("samples", w.sampler.Size())
	return json.NewEncoder(w.out).Encode(om)
}
