// Package metric provides Prometheus-based metrics collection and an optional
// HTTP server for udplogd monitoring.
//
// The package offers a registry holding a few process-wide metrics (build
// info, error counts by class, health status) and lets components register
// their own counters and gauges under a "<service>.<metric>" key so that
// duplicate registrations are rejected with an invalid-class error.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//	server.AddHealthCheck("udp-receiver", receiver.Health)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        slog.Error("metrics server failed", "error", err)
//	    }
//	}()
//	defer server.Stop(ctx)
//
// The server exposes Prometheus metrics on the configured path, a /health
// endpoint returning the aggregated health.Status as JSON (503 when any
// registered check reports unhealthy, 200 otherwise), /health/<component>
// with a single check's status under the same codes, and a small index page
// on /.
//
// # Nil Registry
//
// Components accept a nil *MetricsRegistry and then skip metric creation
// entirely, so tests and minimal deployments carry no Prometheus state.
package metric
