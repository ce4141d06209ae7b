package metric

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xdevelnet/udp-logger/errors"
	"github.com/xdevelnet/udp-logger/health"
)

// HealthFunc reports the current status of one component
type HealthFunc func() health.Status

// Server represents the metrics HTTP server
type Server struct {
	port     int
	path     string
	server   *http.Server
	registry *MetricsRegistry
	checks   map[string]HealthFunc
	monitor  *health.Monitor
	stopped  bool
	mu       sync.Mutex // protects server and stopped
}

// NewServer creates a new metrics server with the provided registry
func NewServer(port int, path string, registry *MetricsRegistry) *Server {
	if path == "" {
		path = "/metrics"
	}
	if port == 0 {
		port = 9090
	}

	return &Server{
		port:     port,
		path:     path,
		registry: registry,
		checks:   make(map[string]HealthFunc),
		monitor:  health.NewMonitor(),
	}
}

// AddHealthCheck registers a component health check served on /health
func (s *Server) AddHealthCheck(service string, fn HealthFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[service] = fn
}

// Handler builds the HTTP routes: metrics path, /health and an index page
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	))

	mux.HandleFunc("/health", s.serveHealth)
	mux.HandleFunc("/health/", s.serveComponentHealth)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, `<html>
<head><title>udplogd</title></head>
<body>
<h1>udplogd</h1>
<p><a href="%s">Metrics</a></p>
<p><a href="/health">Health</a></p>
</body>
</html>`, s.path)
	})

	return mux
}

// serveHealth runs every check and answers with the aggregated status as
// JSON: 200 when healthy or degraded, 503 when anything is unhealthy
func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	checks := make(map[string]HealthFunc, len(s.checks))
	for name, fn := range s.checks {
		checks[name] = fn
	}
	s.mu.Unlock()

	for name, fn := range checks {
		s.runCheck(name, fn)
	}

	writeHealth(w, s.monitor.AggregateHealth(Namespace))
}

// serveComponentHealth answers /health/<component> with that component's
// status alone, 404 for an unknown name
func (s *Server) serveComponentHealth(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/health/")

	s.mu.Lock()
	fn, ok := s.checks[name]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.runCheck(name, fn)
	status, _ := s.monitor.Get(name)
	writeHealth(w, status)
}

func (s *Server) runCheck(name string, fn HealthFunc) {
	status := fn()
	s.monitor.Update(name, status)
	if s.registry != nil {
		s.registry.CoreMetrics().RecordHealthStatus(name, !status.IsUnhealthy())
	}
}

func writeHealth(w http.ResponseWriter, status health.Status) {
	w.Header().Set("Content-Type", "application/json")
	if status.IsUnhealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Start listens and serves until Stop is called. It returns nil after a
// clean Stop, including a Stop that happened before Start.
func (s *Server) Start() error {
	s.mu.Lock()

	if s.stopped {
		s.mu.Unlock()
		return nil
	}

	// Check if server is already running
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("server already running"),
			"Server", "Start", "cannot start server that is already running")
	}

	// Validate that we have a registry
	if s.registry == nil {
		s.mu.Unlock()
		return errors.WrapFatal(
			fmt.Errorf("nil registry"),
			"Server", "Start", "metrics registry not provided")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = srv
	s.mu.Unlock()

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		s.mu.Lock()
		s.server = nil
		s.mu.Unlock()
		return errors.WrapFatal(err, "Server", "Start",
			fmt.Sprintf("failed to start server on port %d", s.port))
	}

	if err := srv.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.WrapTransient(err, "Server", "Start", "serve metrics")
	}

	return nil
}

// Stop gracefully stops the metrics server. A stopped server cannot be
// started again.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.server != nil {
		err := s.server.Shutdown(ctx)
		s.server = nil
		if err != nil {
			return errors.WrapTransient(err, "Server", "Stop",
				"failed to stop HTTP server")
		}
	}
	return nil
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("http://localhost:%d%s", s.port, s.path)
}
