package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	LogFile     string
	LogLevel    string
	LogFormat   string
	ShowVersion bool
	ShowHelp    bool
	Validate    bool
}

// newFlagSet registers every flag on a fresh set bound to cfg. Empty string
// values mean "keep what the config file says".
func newFlagSet(cfg *CLIConfig, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("UDPLOGD_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: UDPLOGD_CONFIG)")

	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("UDPLOGD_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: UDPLOGD_CONFIG)")

	fs.StringVar(&cfg.LogFile, "log-file", "",
		"Packet log file, overrides log_file from the config (default \"udp_log\")")

	fs.StringVar(&cfg.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error (env: UDPLOGD_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format", "",
		"Log format: json, text (env: UDPLOGD_LOG_FORMAT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() {
		printDetailedHelp(fs, output)
	}

	return fs
}

// parseFlags parses args with environment variable fallback
func parseFlags(args []string, output io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := newFlagSet(cfg, output)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if cfg.LogLevel != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		if !contains(validLevels, cfg.LogLevel) {
			return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
		}
	}

	if cfg.LogFormat != "" {
		validFormats := []string{"json", "text"}
		if !contains(validFormats, cfg.LogFormat) {
			return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
		}
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - UDP packet logging daemon

Listens on a UDP port and appends one timestamped line per datagram to a log
file in the working directory.

Usage: %s [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Run with defaults: 0.0.0.0:8888, log file ./udp_log
  %s

  # Run with a config file and text logging
  %s --config=/etc/udplogd/udplogd.yaml --log-format=text

  # Run with environment variables
  export UDPLOGD_LISTEN_PORT=9999
  export UDPLOGD_LOG_LEVEL=debug
  %s

  # Validate configuration only
  %s --config=udplogd.yaml --validate

Version: %s
Build: %s
`, appName, appName, appName, appName, Version, BuildTime)
}

func printHelp(w io.Writer) {
	printDetailedHelp(newFlagSet(&CLIConfig{}, w), w)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
