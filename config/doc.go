// Package config loads the udplogd configuration.
//
// Configuration is layered: built-in defaults, then each file added to the
// Loader (JSON or YAML, picked by extension), then UDPLOGD_* environment
// variables, then validation.
//
// # Basic Usage
//
//	loader := config.NewLoader()
//	loader.AddLayer("/etc/udplogd/udplogd.yaml")
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # File Format
//
//	log_file: udp_log
//	listen:
//	  bind: 0.0.0.0
//	  port: 8888
//	receiver:
//	  buffer_size: 1000
//	  backoff: 100s
//	log:
//	  level: info
//	  format: json
//	metrics:
//	  enabled: true
//	  port: 9090
//	  path: /metrics
//
// Durations accept Go syntax ("100s", "2m"), whole days ("1d") or a bare
// number of seconds. Unknown keys are rejected.
//
// # Environment Overrides
//
//	UDPLOGD_LOG_FILE              log_file
//	UDPLOGD_LISTEN_BIND           listen.bind
//	UDPLOGD_LISTEN_PORT           listen.port
//	UDPLOGD_RECEIVER_BUFFER_SIZE  receiver.buffer_size
//	UDPLOGD_RECEIVER_BACKOFF      receiver.backoff
//	UDPLOGD_LOG_LEVEL             log.level
//	UDPLOGD_LOG_FORMAT            log.format
//	UDPLOGD_METRICS_ENABLED       metrics.enabled
//	UDPLOGD_METRICS_PORT          metrics.port
//	UDPLOGD_METRICS_PATH          metrics.path
//
// Empty variables are ignored. A value that does not parse fails the load.
//
// # Security
//
// Config files are read with size, type and path checks, and JSON nesting
// depth is bounded before parsing.
package config
