package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/hrmon/internal/gatt"
	"github.com/srg/hrmon/internal/scoring"
	"github.com/srg/hrmon/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for BLE heart-rate sensors",
	Long: `Scan for Bluetooth Low Energy devices in the vicinity.

Discovered devices are listed with name, address, signal strength, a vendor
hint derived from the address prefix, and whether they advertise the standard
Heart Rate service. Use --hr-only to keep only heart-rate capable devices.`,
}

var (
	scanDuration  time.Duration
	scanFast      bool
	scanFormat    string
	scanMinRSSI   int
	scanHROnly    bool
	scanAllowList []string
	scanBlockList []string
	scanWatch     bool
)

func init() {
	scanCmd.RunE = runScan
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", scanner.ThoroughDuration, "Scan duration (0 for indefinite)")
	scanCmd.Flags().BoolVar(&scanFast, "fast", false, "Use the short reconnect sweep instead of a full scan")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().IntVar(&scanMinRSSI, "min-rssi", -90, "Hide devices weaker than this RSSI (dBm)")
	scanCmd.Flags().BoolVar(&scanHROnly, "hr-only", false, "Only show devices advertising the Heart Rate service")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide devices with these addresses")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Continuously scan and update results")
}

func scanOptions() *scanner.Options {
	opts := scanner.ThoroughOptions()
	if scanFast {
		opts.Duration = scanner.FastDuration
	}
	if scanCmd.Flags().Changed("duration") {
		opts.Duration = scanDuration
	}
	opts.AllowList = scanAllowList
	opts.BlockList = scanBlockList
	return opts
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	s := scanner.New(logger)
	opts := scanOptions()
	filters := scoring.FilterOptions{MinRSSI: scanMinRSSI, HeartRateOnly: scanHROnly}

	if scanWatch {
		if !scanCmd.Flags().Changed("duration") {
			opts.Duration = 0 // watch until interrupted
		}
		return runWatchScan(s, opts, filters)
	}
	return runSingleScan(s, opts, filters, logger)
}

func runSingleScan(s *scanner.Scanner, opts *scanner.Options, filters scoring.FilterOptions, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	progress := newProgressPrinter("Scanning for BLE devices", opts.Duration)
	progress.Start()

	records, err := s.Scan(ctx, opts)
	progress.Stop()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		logger.WithError(err).Error("Scan failed")
		return err
	}

	return displayRecords(scoring.Filter(records, filters))
}

func runWatchScan(s *scanner.Scanner, opts *scanner.Options, filters scoring.FilterOptions) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	// Collect observations from the event stream while the sweep runs and
	// re-render the table once per second.
	records := make(map[string]scanner.AdvertisementRecord)

	scanErrCh := make(chan error, 1)
	go func() {
		_, err := s.Scan(ctx, opts)
		scanErrCh <- err
	}()

	render := func() error {
		list := make([]scanner.AdvertisementRecord, 0, len(records))
		for _, rec := range records {
			list = append(list, rec)
		}
		clearScreen()
		return displayRecords(scoring.Filter(list, filters))
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return render()

		case err := <-scanErrCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return render()

		case <-ticker.C:
			if err := render(); err != nil {
				return err
			}

		case ev := <-s.Events():
			records[ev.Record.Address] = ev.Record
		}
	}
}

// scoredRecord pairs a record with its score for output.
type scoredRecord struct {
	scanner.AdvertisementRecord
	Vendor    string `json:"vendor,omitempty"`
	HeartRate bool   `json:"heart_rate"`
}

func displayRecords(records []scanner.AdvertisementRecord) error {
	if len(records) == 0 {
		fmt.Println("No devices discovered")
		return nil
	}

	scored := make([]scoredRecord, len(records))
	for i, rec := range records {
		score := scoring.Score(rec)
		vendor := score.Hint
		if vendor == scoring.UnknownVendor {
			vendor = ""
		}
		scored[i] = scoredRecord{
			AdvertisementRecord: rec,
			Vendor:              vendor,
			HeartRate:           score.HasHeartRateService,
		}
	}

	if scanFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(scored)
	}
	return displayTable(os.Stdout, scored)
}

func displayTable(out io.Writer, records []scoredRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tVENDOR\tHR\tSERVICES\tLAST SEEN")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, rec := range records {
		name := rec.LocalName
		if name == "" {
			name = "(unknown)"
		}
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		hrMark := ""
		if rec.HeartRate {
			hrMark = "♥"
		}

		lastSeen := time.Since(rec.LastSeen).Truncate(time.Second)

		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\t%s\t%s\t%s ago\n",
			name, rec.Address, rec.RSSI, rec.Vendor, hrMark, serviceNames(rec.ServiceUUIDs), lastSeen)
	}

	return w.Flush()
}

// serviceNames renders advertised services, preferring assigned names over
// raw UUIDs.
func serviceNames(uuids []string) string {
	parts := make([]string, 0, len(uuids))
	for _, uuid := range uuids {
		if name := gatt.LookupService(uuid); name != "" {
			parts = append(parts, name)
		} else {
			parts = append(parts, gatt.ShortenUUID(uuid))
		}
	}
	joined := strings.Join(parts, ",")
	if len(joined) > 40 {
		joined = joined[:37] + "..."
	}
	return joined
}

func clearScreen() {
	fmt.Print("\033[2J\033[H")
}
