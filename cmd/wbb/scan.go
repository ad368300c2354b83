package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/wbb/internal/groutine"
	"github.com/srg/wbb/scanner"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for balance boards",
	Long: `Scan for nearby devices and list the balance boards among them.

Press the red sync button under the battery cover to make the board
discoverable. Use --all to list every device that answered.

With --watch every sighting is printed as it happens, marked "new" for the
first one per device and "updated" afterwards. --le lists Bluetooth Low
Energy advertisers instead of running a classic inquiry; the board itself
only answers inquiries.`,
	Example: `  wbb scan
  wbb scan --watch --duration 30s
  wbb scan --le --all --format json`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanPrefix    string
	scanAll       bool
	scanAllowList []string
	scanBlockList []string
	scanWatch     bool
	scanLE        bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from config, 6s)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringVar(&scanPrefix, "prefix", "", "Advertised name prefix (default from config)")
	scanCmd.Flags().BoolVarP(&scanAll, "all", "a", false, "List every device, not only balance boards")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide devices with these addresses")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Print every sighting as it happens")
	scanCmd.Flags().BoolVar(&scanLE, "le", false, "Scan for Bluetooth Low Energy advertisers")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	opts := scanner.DefaultScanOptions()
	opts.Duration = cfg.ScanTimeout
	if scanDuration > 0 {
		opts.Duration = scanDuration
	}
	opts.NamePrefix = cfg.NamePrefix
	if scanPrefix != "" {
		opts.NamePrefix = scanPrefix
	}
	opts.AllowList = scanAllowList
	opts.BlockList = scanBlockList
	opts.LowEnergy = scanLE
	if scanWatch {
		opts.DuplicateFilter = false
	}

	s, err := scanner.NewScanner(logger)
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	ctx, stop := interruptContext(cmd.Context(), cmd.ErrOrStderr(), "cancelling scan")
	defer stop()

	if scanWatch {
		err := watchDevices(ctx, cmd.OutOrStdout(), s, opts)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("scan failed")
			return err
		}
		return nil
	}

	progress := NewCountdownProgressPrinter(cmd.ErrOrStderr(), "Scanning for balance boards", "Scanning", opts.Duration)
	progress.Start()
	devices, err := s.Scan(ctx, opts)
	progress.Stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("scan failed")
		return err
	}

	entries := make([]scanner.DeviceEntry, 0, len(devices))
	for _, e := range devices {
		if scanAll || e.HasPrefix(opts.NamePrefix) {
			entries = append(entries, e)
		}
	}
	// Strongest signal first
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RSSI != entries[j].RSSI {
			return entries[i].RSSI > entries[j].RSSI
		}
		return entries[i].Address < entries[j].Address
	})

	out := cmd.OutOrStdout()
	if scanFormat == "json" {
		return displayDevicesJSON(out, entries)
	}
	return displayDevicesTable(out, entries)
}

// watchDevices runs the scan in the background and prints one line per
// scanner event until the scan ends.
func watchDevices(ctx context.Context, out io.Writer, s *scanner.Scanner, opts *scanner.ScanOptions) error {
	done := make(chan error, 1)
	groutine.Go(ctx, "scan", func(ctx context.Context) {
		_, err := s.Scan(ctx, opts)
		done <- err
	})

	show := func(ev scanner.DeviceEvent) error {
		if !scanAll && !ev.Entry.HasPrefix(opts.NamePrefix) {
			return nil
		}
		return displayDeviceEvent(out, ev)
	}

	for {
		select {
		case ev := <-s.Events():
			if err := show(ev); err != nil {
				return err
			}
		case err := <-done:
			// Events are queued before Scan returns
			for {
				select {
				case ev := <-s.Events():
					if showErr := show(ev); showErr != nil {
						return showErr
					}
				default:
					return err
				}
			}
		}
	}
}

func displayDeviceEvent(out io.Writer, ev scanner.DeviceEvent) error {
	e := ev.Entry
	if scanFormat == "json" {
		om := orderedmap.New[string, any]()
		om.Set("event", ev.Type.String())
		om.Set("name", e.Name)
		om.Set("address", string(e.Address))
		om.Set("rssi", e.RSSI)
		om.Set("connectable", e.Connectable)
		return json.NewEncoder(out).Encode(om)
	}

	_, err := fmt.Fprintf(out, "%-7s  %s  %4d dBm  %s\n", ev.Type, e.Address, e.RSSI, displayName(e.Name))
	return err
}

// displayName shortens long names to 24 runes
func displayName(name string) string {
	if name == "" {
		return "(unknown)"
	}
	if r := []rune(name); len(r) > 24 {
		return string(r[:21]) + "..."
	}
	return name
}

// interruptContext cancels the returned context on Ctrl+C or SIGTERM.
func interruptContext(parent context.Context, out io.Writer, what string) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	groutine.Go(ctx, "signal-watch", func(ctx context.Context) {
		select {
		case <-sigCh:
			fmt.Fprintf(out, "\nCtrl+C pressed, %s...\n", what)
			cancel()
		case <-ctx.Done():
		}
	})

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func displayDevicesTable(out io.Writer, entries []scanner.DeviceEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "No balance boards discovered")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tCONNECTABLE")
	fmt.Fprintln(w, strings.Repeat("-", 60))

	for _, e := range entries {
		name := displayName(e.Name)
		connectable := "no"
		if e.Connectable {
			connectable = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\n", name, e.Address, e.RSSI, connectable)
	}

	return w.Flush()
}

type deviceJSON struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	RSSI        int    `json:"rssi"`
	Connectable bool   `json:"connectable"`
}

func displayDevicesJSON(out io.Writer, entries []scanner.DeviceEntry) error {
	list := make([]deviceJSON, 0, len(entries))
	for _, e := range entries {
		list = append(list, deviceJSON{
			Name:        e.Name,
			Address:     string(e.Address),
			RSSI:        e.RSSI,
			Connectable: e.Connectable,
		})
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(list)
}
