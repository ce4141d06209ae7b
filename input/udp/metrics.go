package udp

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xdevelnet/udp-logger/metric"
)

// Metrics holds Prometheus metrics for the UDP receiver
type Metrics struct {
	packetsReceived prometheus.Counter
	bytesReceived   prometheus.Counter
	printableBytes  prometheus.Counter
	socketErrors    *prometheus.CounterVec
	backoffs        prometheus.Counter
	state           prometheus.Gauge
	lastActivity    prometheus.Gauge
}

// newMetrics creates and registers UDP receiver metrics
func newMetrics(registry *metric.MetricsRegistry, port int) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "udp",
			Name:      "packets_received_total",
			Help:      "Total UDP datagrams received",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "udp",
			Name:      "bytes_received_total",
			Help:      "Total payload bytes received, after truncation to the buffer size",
		}),
		printableBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "udp",
			Name:      "printable_bytes_total",
			Help:      "Payload bytes kept after dropping non-printable characters",
		}),
		socketErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "udp",
			Name:      "socket_errors_total",
			Help:      "Socket failures by stage (socket, bind, recvfrom)",
		}, []string{"stage"}),
		backoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "udp",
			Name:      "backoffs_total",
			Help:      "Backoff waits started after a socket failure",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "udp",
			Name:      "state",
			Help:      "Receive loop state (0=create, 1=configure, 2=bind, 3=receive, 4=closed)",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "udp",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of last received datagram",
		}),
	}

	serviceName := fmt.Sprintf("udp_%d", port)
	_ = registry.RegisterCounter(serviceName, "packets_received", metrics.packetsReceived)
	_ = registry.RegisterCounter(serviceName, "bytes_received", metrics.bytesReceived)
	_ = registry.RegisterCounter(serviceName, "printable_bytes", metrics.printableBytes)
	_ = registry.RegisterCounterVec(serviceName, "socket_errors", metrics.socketErrors)
	_ = registry.RegisterCounter(serviceName, "backoffs", metrics.backoffs)
	_ = registry.RegisterGauge(serviceName, "state", metrics.state)
	_ = registry.RegisterGauge(serviceName, "last_activity", metrics.lastActivity)

	return metrics
}
