// ccsniffer: Capture IEEE 802.15.4 traffic with a CC2531 USB sniffer
//
// Frames are written to a pcapng file with the IEEE 802.15.4 TAP link type,
// each prefixed with RSSI, channel and LQI metadata.
//
// Examples:
//
//	# Capture channel 15 into zigbee.pcapng
//	./ccsniffer -c 15 -f zigbee.pcapng
//
//	# Use settings from a file, dump raw USB frames
//	./ccsniffer -config etc/ccsniffer.yaml -d
//
// Press Ctrl-C once to stop cleanly, twice to exit immediately.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gousb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/herlein/ccsniffer/pkg/cc2531"
	"github.com/herlein/ccsniffer/pkg/config"
	"github.com/herlein/ccsniffer/pkg/hexdump"
	"github.com/herlein/ccsniffer/pkg/httpserver"
	"github.com/herlein/ccsniffer/pkg/interrupt"
	"github.com/herlein/ccsniffer/pkg/logging"
	"github.com/herlein/ccsniffer/pkg/metrics"
	"github.com/herlein/ccsniffer/pkg/pcapng"
	"github.com/herlein/ccsniffer/pkg/session"
)

const appName = "ccsniffer"

var (
	configPath = flag.String("config", "", "Configuration file (YAML, JSON or TOML)")
	channel    = flag.Int("c", cc2531.DefaultChannel, "IEEE 802.15.4 channel (11-26)")
	outFile    = flag.String("f", "", "Capture file (default capture.pcapng)")
	debugDump  = flag.Bool("d", false, "Dump raw USB frames")
	deviceSel  = flag.String("device", "", cc2531.DeviceFlagUsage())
	saveConfig = flag.String("save-config", "", "Write the effective configuration to this file and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "IEEE 802.15.4 capture with a CC2531 USB sniffer\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers explicitly set flags over file, environment and defaults
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "c":
			cfg.Capture.Channel = *channel
		case "f":
			cfg.Capture.File = *outFile
		case "d":
			cfg.Capture.Debug = *debugDump
		case "device":
			cfg.Device.Selector = *deviceSel
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run() (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if *saveConfig != "" {
		return config.SaveToFile(cfg, *saveConfig)
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	sessionID := uuid.New()
	logger = logger.With(zap.String("session", sessionID.String()))
	logger.Info("CCSniffer",
		zap.Int("channel", cfg.Capture.Channel),
		zap.String("capture_file", cfg.Capture.File))

	// Stop token driven by SIGINT/SIGTERM: first signal stops, second exits
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := interrupt.NewToken()
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go interrupt.Watch(ctx, token, sigChan,
		func(sig os.Signal) {
			logger.Info("attempting to stop sniffer", zap.Stringer("signal", sig))
		},
		func(sig os.Signal) {
			logger.Warn("received signal twice, exiting", zap.Stringer("signal", sig))
			logger.Sync()
			os.Exit(2)
		})

	// Metrics
	reg := metrics.NewRegistry()
	captureMetrics := metrics.NewCaptureMetrics(reg)

	// Open device
	usbContext := gousb.NewContext()
	defer usbContext.Close()

	usbDev, err := cc2531.Locate(usbContext, gousb.ID(cfg.Device.VendorID), gousb.ID(cfg.Device.ProductID),
		cc2531.DeviceSelector(cfg.Device.Selector))
	if err != nil {
		return err
	}
	if usbDev == nil {
		return errors.New("no sniffer devices found")
	}

	device, err := cc2531.Bind(usbDev)
	if err != nil {
		usbDev.Close()
		return fmt.Errorf("failed to bind device: %w", err)
	}
	defer device.Close()

	logger.Info("found sniffer",
		zap.String("product", device.Product),
		zap.Int("bus", device.Bus),
		zap.Int("address", device.Address),
		zap.Stringer("in", device.InAddress),
		zap.Stringer("out", device.OutAddress))

	if cfg.Capture.Debug {
		device.SetDebugSink(hexdump.New(os.Stdout, logger, cfg.Capture.DumpRate, hexdump.DefaultBurst))
	}

	// Capture file
	file, err := os.Create(cfg.Capture.File)
	if err != nil {
		return fmt.Errorf("failed to create capture file: %w", err)
	}

	writer, err := pcapng.NewWriter(file, pcapng.SectionOptions{
		Application: appName,
		Comment:     "session " + sessionID.String(),
	})
	if err != nil {
		file.Close()
		return err
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close capture file: %w", cerr))
		}
	}()

	if err := writer.AddInterface(pcapng.LinkTypeIEEE802154TAP, cfg.Capture.SnapLen, device.Product); err != nil {
		return err
	}

	sess := session.New(device, writer, session.Options{
		Channel: uint8(cfg.Capture.Channel), // range checked by Validate
		Logger:  logger,
		Metrics: captureMetrics,
	})

	if cfg.Metrics.Enable {
		srv := httpserver.New(cfg.Metrics.Addr, cfg.Metrics.Path, metrics.Handler(reg), sess)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr), zap.String("path", cfg.Metrics.Path))
	}

	return sess.Capture(ctx, token)
}
