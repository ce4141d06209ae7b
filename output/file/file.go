// Package file provides the append-only packet log sink
package file

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xdevelnet/udp-logger/errors"
	"github.com/xdevelnet/udp-logger/health"
	"github.com/xdevelnet/udp-logger/metric"
	"github.com/xdevelnet/udp-logger/pkg/timestamp"
)

// DefaultPath is the log file used when no path is configured
const DefaultPath = "udp_log"

// DefaultMode is the permission set for a newly created log file (rw-r--r--)
const DefaultMode os.FileMode = 0644

// Metrics holds Prometheus metrics for the log sink
type Metrics struct {
	linesWritten prometheus.Counter
	bytesWritten prometheus.Counter
	writeErrors  prometheus.Counter
}

// newMetrics creates and registers sink metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		linesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "sink",
			Name:      "lines_written_total",
			Help:      "Log lines appended to the packet log",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "sink",
			Name:      "bytes_written_total",
			Help:      "Bytes appended to the packet log",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "sink",
			Name:      "write_errors_total",
			Help:      "Failed writes to the packet log",
		}),
	}

	_ = registry.RegisterCounter("log-sink", "lines_written", metrics.linesWritten)
	_ = registry.RegisterCounter("log-sink", "bytes_written", metrics.bytesWritten)
	_ = registry.RegisterCounter("log-sink", "write_errors", metrics.writeErrors)

	return metrics
}

// SinkDeps holds runtime dependencies for the log sink
type SinkDeps struct {
	Path            string                  // File to open in append mode; ignored when Writer is set
	Writer          io.Writer               // Optional pre-opened destination (stdout, tests)
	MetricsRegistry *metric.MetricsRegistry // Runtime dependency
	Logger          *slog.Logger            // Runtime dependency
}

// Sink appends newline-terminated log entries to a file. Every entry is
// written with a single Write call under a mutex, so entries never interleave.
type Sink struct {
	path   string
	w      io.Writer
	file   *os.File
	logger *slog.Logger

	mu     sync.Mutex
	closed bool

	linesWritten atomic.Int64
	bytesWritten atomic.Int64
	errors       atomic.Int64
	lastError    atomic.Value // stores string
	lastActivity atomic.Value // stores time.Time

	metrics *Metrics
}

// NewSink creates a log sink. When deps.Writer is nil the file at deps.Path
// (DefaultPath if empty) is opened with O_WRONLY|O_CREATE|O_APPEND; failing
// to open it is a fatal error.
func NewSink(deps SinkDeps) (*Sink, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "log-sink")
	}

	s := &Sink{
		logger:  logger,
		metrics: newMetrics(deps.MetricsRegistry),
	}
	s.lastError.Store("")
	s.lastActivity.Store(time.Time{})

	if deps.Writer != nil {
		s.w = deps.Writer
		s.path = "-"
		return s, nil
	}

	path := deps.Path
	if path == "" {
		path = DefaultPath
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_APPEND, DefaultMode)
	if err != nil {
		return nil, errors.WrapFatal(err, "Sink", "NewSink", "open log file")
	}

	s.path = path
	s.file = f
	s.w = f

	logger.Debug("Log sink opened", "path", path)
	return s, nil
}

// Path returns the file path, or "-" for a writer-backed sink
func (s *Sink) Path() string {
	return s.path
}

// WriteEntry appends "<timestamp> - <msg>\n" for time t
func (s *Sink) WriteEntry(t time.Time, msg string) error {
	line := timestamp.Entry(t, msg) + "\n"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.WrapInvalid(errors.ErrAlreadyClosed, "Sink", "WriteEntry", "write to closed sink")
	}

	n, err := io.WriteString(s.w, line)
	if err == nil && n < len(line) {
		err = io.ErrShortWrite
	}
	if err != nil {
		s.errors.Add(1)
		s.lastError.Store(err.Error())
		if s.metrics != nil {
			s.metrics.writeErrors.Inc()
		}
		return writeError(err, s.path)
	}

	s.linesWritten.Add(1)
	s.bytesWritten.Add(int64(n))
	s.lastError.Store("")
	s.lastActivity.Store(time.Now())
	if s.metrics != nil {
		s.metrics.linesWritten.Inc()
		s.metrics.bytesWritten.Add(float64(n))
	}

	return nil
}

// Close closes the underlying file. Writer-backed sinks only stop accepting
// entries. Close is safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.file != nil {
		if err := s.file.Close(); err != nil {
			s.logger.Warn("failed to close log file", "error", err, "path", s.path)
			return errors.WrapTransient(err, "Sink", "Close", "close log file")
		}
	}
	return nil
}

// Stats reports lines and bytes written and failed writes
func (s *Sink) Stats() (lines, bytes, failures int64) {
	return s.linesWritten.Load(), s.bytesWritten.Load(), s.errors.Load()
}

// Health reports whether the sink is open and its most recent write succeeded
func (s *Sink) Health() health.Status {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	lines, _, failures := s.Stats()
	lastActivity, _ := s.lastActivity.Load().(time.Time)
	metrics := &health.Metrics{
		ErrorCount:        failures,
		MessagesProcessed: lines,
		LastActivity:      lastActivity,
	}

	if closed {
		return health.NewUnhealthy("log-sink", "closed").WithMetrics(metrics)
	}

	if lastErr, _ := s.lastError.Load().(string); lastErr != "" {
		return health.FromError("log-sink", stderrors.New(lastErr)).WithMetrics(metrics)
	}
	return health.NewHealthy("log-sink", fmt.Sprintf("%d lines written", lines)).WithMetrics(metrics)
}

// writeError classifies a failed append: a full disk is fatal, anything else
// may clear up on its own
func writeError(err error, path string) error {
	action := fmt.Sprintf("append to %s", path)
	if errors.IsFatal(err) {
		return errors.WrapFatal(fmt.Errorf("%w: %w", errors.ErrStorageFull, err), "Sink", "WriteEntry", action)
	}
	return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err), "Sink", "WriteEntry", action)
}
