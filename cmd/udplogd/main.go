// Package main implements the udplogd daemon. udplogd listens on a UDP port
// and appends one timestamped line per received datagram to a log file.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xdevelnet/udp-logger/config"
	"github.com/xdevelnet/udp-logger/input/udp"
	"github.com/xdevelnet/udp-logger/metric"
	"github.com/xdevelnet/udp-logger/output/file"
	"github.com/xdevelnet/udp-logger/pkg/retry"
)

// Build information constants
const (
	Version   = "1.0.0"
	BuildTime = "dev"
	appName   = "udplogd"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, shouldExit, err := initializeCLI(args, os.Stdout)
	if shouldExit || err != nil {
		return err
	}

	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		logger.Debug("Effective configuration", "config", cfg.String())
		return nil
	}

	logger.Info("Starting udplogd",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"log_file", cfg.LogFile,
		"listen", fmt.Sprintf("%s:%d", cfg.Listen.Bind, cfg.Listen.Port))

	// SIGINT and SIGTERM interrupt whichever socket call is blocking
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runDaemon(ctx, cfg, logger)
}

// initializeCLI parses and validates flags. shouldExit is set after -version
// or -help.
func initializeCLI(args []string, stdout io.Writer) (*CLIConfig, bool, error) {
	cliCfg, err := parseFlags(args, os.Stderr)
	if err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printHelp(stdout)
		return nil, true, nil
	}

	return cliCfg, false, nil
}

// initializeConfiguration loads the config file (if any) with environment
// overrides, then applies command-line overrides on top
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	// Validated below, once the command line has had its say
	loader := config.NewLoader()
	loader.EnableValidation(false)
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyCLIOverrides(cfg, cliCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyCLIOverrides(cfg *config.Config, cliCfg *CLIConfig) {
	if cliCfg.LogFile != "" {
		cfg.LogFile = cliCfg.LogFile
	}
	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
}

// receiverConfig maps the daemon configuration onto the receive loop
func receiverConfig(cfg *config.Config) udp.Config {
	return udp.Config{
		Bind:            cfg.Listen.Bind,
		Port:            cfg.Listen.Port,
		MaxDatagramSize: cfg.Receiver.BufferSize,
		Backoff:         retry.Fixed(cfg.Receiver.Backoff.Std()),
	}
}

// runDaemon opens the packet log and runs the receive loop, plus the metrics
// server when enabled, until ctx is cancelled or receiving fails. Both ways
// of stopping are a normal exit; only startup failures return an error.
func runDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metricsRegistry := metric.NewMetricsRegistry()
	metricsRegistry.CoreMetrics().RecordBuildInfo(Version)

	sink, err := file.NewSink(file.SinkDeps{
		Path:            cfg.LogFile,
		MetricsRegistry: metricsRegistry,
		Logger:          logger.With("component", "log-sink"),
	})
	if err != nil {
		return fmt.Errorf("open packet log: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("Failed to close packet log", "error", err)
		}
	}()

	receiver, err := udp.NewReceiver(udp.ReceiverDeps{
		Name:            "udp-receiver",
		Config:          receiverConfig(cfg),
		Sink:            sink,
		MetricsRegistry: metricsRegistry,
		Logger:          logger.With("component", "udp-receiver"),
	})
	if err != nil {
		return fmt.Errorf("create receiver: %w", err)
	}

	// The receive loop answers only to ctx. A metrics server that fails is
	// logged and the daemon keeps receiving without it.
	var g errgroup.Group

	var server *metric.Server
	if cfg.Metrics.Enabled {
		server = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		server.AddHealthCheck(receiver.Name(), receiver.Health)
		server.AddHealthCheck("log-sink", sink.Health)

		logger.Info("Metrics server starting", "address", server.Address())
		g.Go(func() error {
			if err := server.Start(); err != nil {
				logger.Error("Metrics server failed, continuing without it", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if server != nil {
			defer stopMetricsServer(server, logger)
		}

		reason, err := receiver.Run(ctx)
		if err != nil {
			return err
		}

		switch reason {
		case udp.StopReceiveError:
			logger.Error("Receive loop ended after a network error")
		default:
			logger.Info("Shutdown complete")
		}
		return nil
	})

	return g.Wait()
}

func stopMetricsServer(server *metric.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Warn("Metrics server did not stop cleanly", "error", err)
	}
}
