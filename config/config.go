package config

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/xdevelnet/udp-logger/errors"
)

// Defaults
const (
	DefaultLogFile     = "udp_log"
	DefaultBind        = "0.0.0.0"
	DefaultPort        = 8888
	DefaultBufferSize  = 1000
	DefaultBackoff     = 100 * time.Second
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultMetricsPort = 9090
	DefaultMetricsPath = "/metrics"
)

// Config represents the complete daemon configuration
type Config struct {
	LogFile  string         `json:"log_file"` // Packet log, relative to the working directory
	Listen   ListenConfig   `json:"listen"`
	Receiver ReceiverConfig `json:"receiver"`
	Log      LogConfig      `json:"log"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// ListenConfig defines the UDP listen address
type ListenConfig struct {
	Bind string `json:"bind"` // IPv4 address, "0.0.0.0" for all interfaces
	Port int    `json:"port"`
}

// ReceiverConfig defines receive buffer and retry behaviour
type ReceiverConfig struct {
	BufferSize int      `json:"buffer_size"` // Bytes kept per datagram; the rest is truncated
	Backoff    Duration `json:"backoff"`     // Wait after socket or bind failures
}

// LogConfig defines the operational (slog) logger, not the packet log
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		LogFile: DefaultLogFile,
		Listen: ListenConfig{
			Bind: DefaultBind,
			Port: DefaultPort,
		},
		Receiver: ReceiverConfig{
			BufferSize: DefaultBufferSize,
			Backoff:    Duration(DefaultBackoff),
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    DefaultMetricsPort,
			Path:    DefaultMetricsPath,
		},
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LogFile) == "" {
		return invalid("log_file is required")
	}

	bind, err := netip.ParseAddr(c.Listen.Bind)
	if err != nil {
		return invalid("listen.bind %q is not an IP address", c.Listen.Bind)
	}
	if !bind.Unmap().Is4() {
		return invalid("listen.bind %q must be an IPv4 address", c.Listen.Bind)
	}
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return invalid("listen.port %d out of range", c.Listen.Port)
	}

	if c.Receiver.BufferSize <= 0 || c.Receiver.BufferSize > 65535 {
		return invalid("receiver.buffer_size %d must be between 1 and 65535", c.Receiver.BufferSize)
	}
	if c.Receiver.Backoff <= 0 {
		return invalid("receiver.backoff must be positive")
	}

	// Normalize level and format to lowercase
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("invalid log.level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("invalid log.format %q", c.Log.Format)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return invalid("metrics.port %d out of range", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Listen.Port {
			// Different protocols, but one number for two services is almost
			// always a typo
			return invalid("metrics.port and listen.port are both %d", c.Metrics.Port)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return invalid("metrics.path %q must start with /", c.Metrics.Path)
		}
	}

	return nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf(format, args...), "Config", "Validate", "configuration check")
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Duration is a time.Duration that reads "100s", "2m" or "1d" from config
// files. A bare number is taken as seconds.
type Duration time.Duration

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalJSON writes the duration in Go syntax
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of seconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := parseDurationWithDays(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
	case nil:
	default:
		return fmt.Errorf("invalid duration %v", raw)
	}
	return nil
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		days := strings.TrimSuffix(s, "d")
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
