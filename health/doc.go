// Package health provides component health states and their aggregation.
//
// # Health States
//
//   - Healthy: component operating normally
//   - Degraded: component running but temporarily not doing its job, e.g.
//     the receive loop waiting out a backoff after a bind failure
//   - Unhealthy: component stopped or failing
//
// # Basic Usage
//
//	monitor := health.NewMonitor()
//	monitor.Update("udp-receiver", receiver.Health())
//	monitor.Update("log-sink", sink.Health())
//
//	system := monitor.AggregateHealth("udplogd")
//	if system.IsUnhealthy() {
//	    // serve 503
//	}
//
// Aggregation: any unhealthy sub-status makes the system unhealthy; otherwise
// any degraded one makes it degraded.
//
// Error messages passed through FromError have URLs, paths, IP addresses,
// ports and credentials masked since /health is served without
// authentication.
package health
