package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/hrmon/internal/bus"
	"github.com/srg/hrmon/internal/config"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/scoring"
	"github.com/srg/hrmon/internal/session"
	"github.com/srg/hrmon/internal/state"
	"github.com/srg/hrmon/scanner"
	"github.com/srg/hrmon/server"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor [address]",
	Short: "Stream heart-rate readings from a sensor",
	Long: `Connect to a heart-rate sensor and stream live readings.

The sensor address can be given as an argument, taken from the config file,
or discovered automatically: without an address, the strongest nearby device
advertising the Heart Rate service is selected.

While streaming, the current reading is also served over HTTP:

  GET /status  current reading and connection state
  GET /health  liveness summary
  GET /ws      websocket pushing the status snapshot`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMonitor,
}

var (
	monitorListen  string
	monitorTimeout time.Duration
	monitorConfig  string
)

func init() {
	monitorCmd.Flags().StringVarP(&monitorListen, "listen", "l", "", "Status endpoint listen address (default 127.0.0.1:8080)")
	monitorCmd.Flags().DurationVarP(&monitorTimeout, "timeout", "t", 0, "Connection timeout (default 30s)")
	monitorCmd.Flags().StringVarP(&monitorConfig, "config", "c", "", "Config file path")
}

func loadMonitorConfig() (*config.Config, error) {
	if monitorConfig != "" {
		return config.Load(monitorConfig)
	}
	return config.Default(), nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadMonitorConfig()
	if err != nil {
		return err
	}
	if monitorListen != "" {
		cfg.Listen = monitorListen
	}
	if monitorTimeout > 0 {
		cfg.ConnectTimeout = config.Duration(monitorTimeout)
	}

	cmd.SilenceUsage = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	target, err := resolveTarget(ctx, cfg, args, logger)
	if err != nil {
		return err
	}

	transport, err := device.Factory()
	if err != nil {
		return device.WrapStage(device.StageConnect, err)
	}

	store := state.NewStore()
	sampleBus := bus.New(bus.DefaultCapacity)
	sess := session.New(transport, store, sampleBus, logger, &session.Options{
		ConnectTimeout: cfg.ConnectTimeout.Std(),
	})

	srv := server.New(store, logger, cfg.Listen)
	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.ListenAndServe() }()

	if err := sess.Start(ctx, target); err != nil {
		shutdownServer(srv, logger)
		return err
	}

	displayCtx, stopDisplay := context.WithCancel(context.Background())
	displayDone := make(chan struct{})
	go func() {
		defer close(displayDone)
		newDisplay(sampleBus).Run(displayCtx)
	}()

	err = superviseSession(ctx, sess, serverErr)

	sess.Stop()
	// Let the display drain the final messages before tearing it down.
	time.Sleep(2 * displayPollInterval)
	stopDisplay()
	<-displayDone

	shutdownServer(srv, logger)
	return err
}

// resolveTarget picks the sensor to dial: explicit argument, configured
// preferred device, or the strongest heart-rate device found by a scan.
// A known address is confirmed present with a fast sweep before dialing.
func resolveTarget(ctx context.Context, cfg *config.Config, args []string, logger *logrus.Logger) (session.Target, error) {
	address := cfg.Device
	if len(args) > 0 {
		address = args[0]
	}

	s := scanner.New(logger)

	if address != "" {
		opts := scanner.FastOptions(address)
		if cfg.FastScanDuration > 0 {
			opts.Duration = cfg.FastScanDuration.Std()
		}
		fmt.Printf("Checking for %s...\n", address)
		records, err := s.Scan(ctx, opts)
		if err != nil {
			return session.Target{}, err
		}
		target := session.Target{Address: address}
		if len(records) > 0 {
			target.Name = records[0].LocalName
		} else {
			// Not fatal: some sensors advertise too rarely for a short sweep.
			fmt.Printf("Device %s not seen while scanning, dialing anyway\n", address)
		}
		return target, nil
	}

	opts := scanner.ThoroughOptions()
	if cfg.ScanDuration > 0 {
		opts.Duration = cfg.ScanDuration.Std()
	}

	progress := newProgressPrinter("Looking for heart-rate sensors", opts.Duration)
	progress.Start()
	records, err := s.Scan(ctx, opts)
	progress.Stop()
	if err != nil {
		return session.Target{}, err
	}

	candidates := scoring.Filter(records, scoring.FilterOptions{
		MinRSSI:       cfg.MinRSSI,
		HeartRateOnly: true,
	})
	if len(candidates) == 0 {
		return session.Target{}, fmt.Errorf("no heart-rate sensors found; is the strap worn and in range?")
	}

	best := candidates[0]
	fmt.Printf("Selected %s (%s, %d dBm)\n", displayLabel(best), best.Address, best.RSSI)
	return session.Target{Address: best.Address, Name: best.LocalName}, nil
}

func displayLabel(rec scanner.AdvertisementRecord) string {
	if rec.LocalName != "" {
		return rec.LocalName
	}
	if hint := scoring.Score(rec).Hint; hint != scoring.UnknownVendor {
		return hint + " sensor"
	}
	return "sensor"
}

// superviseSession blocks until the session ends or the command is
// interrupted. Transport failures become errors; a clean stop does not.
func superviseSession(ctx context.Context, sess *session.Session, serverErr <-chan error) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-serverErr:
			if err != nil {
				return fmt.Errorf("status endpoint failed: %w", err)
			}
		case <-ticker.C:
			st, reason := sess.State()
			if st != session.StateDisconnected {
				continue
			}
			switch reason {
			case session.ReasonStopped, session.ReasonConnectionLost:
				return nil
			default:
				return fmt.Errorf("session ended: %s", reason)
			}
		}
	}
}

func shutdownServer(srv *server.Server, logger *logrus.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Status endpoint shutdown failed")
	}
}
