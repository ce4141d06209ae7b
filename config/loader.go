package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xdevelnet/udp-logger/errors"
)

// DefaultEnvPrefix prefixes the environment overrides (UDPLOGD_LISTEN_PORT, ...)
const DefaultEnvPrefix = "UDPLOGD"

// Loader handles configuration loading with layers and overrides.
// Order: defaults, each file layer in turn, environment, validation.
type Loader struct {
	layers     []string
	validation bool
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		lookupEnv:  os.LookupEnv,
	}
}

// AddLayer adds a configuration file layer. JSON or YAML is picked by
// extension.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		rawConfig, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("load %s", path))
		}
		merged, err := l.mergeFromMap(cfg, rawConfig)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("merge %s", path))
		}
		cfg = merged
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "environment overrides")
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadRaw reads a JSON or YAML file into a generic map
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var rawConfig map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &rawConfig); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		if err := checkJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &rawConfig); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	return rawConfig, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(mergedJSON))
	dec.DisallowUnknownFields()

	var merged Config
	if err := dec.Decode(&merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	str := func(name string, dst *string) {
		if val, ok := l.env(name); ok {
			*dst = val
		}
	}
	integer := func(name string, dst *int) {
		if val, ok := l.env(name); ok {
			n, err := strconv.Atoi(val)
			if err != nil {
				fail(fmt.Errorf("%s_%s: %w", DefaultEnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("LOG_FILE", &cfg.LogFile)
	str("LISTEN_BIND", &cfg.Listen.Bind)
	integer("LISTEN_PORT", &cfg.Listen.Port)
	integer("RECEIVER_BUFFER_SIZE", &cfg.Receiver.BufferSize)
	if val, ok := l.env("RECEIVER_BACKOFF"); ok {
		d, err := parseDurationWithDays(val)
		if err != nil {
			fail(fmt.Errorf("%s_RECEIVER_BACKOFF: %w", DefaultEnvPrefix, err))
		} else {
			cfg.Receiver.Backoff = Duration(d)
		}
	}
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	if val, ok := l.env("METRICS_ENABLED"); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			fail(fmt.Errorf("%s_METRICS_ENABLED: %w", DefaultEnvPrefix, err))
		} else {
			cfg.Metrics.Enabled = b
		}
	}
	integer("METRICS_PORT", &cfg.Metrics.Port)
	str("METRICS_PATH", &cfg.Metrics.Path)

	return firstErr
}

// env returns a non-empty, sane override value
func (l *Loader) env(name string) (string, bool) {
	key := DefaultEnvPrefix + "_" + name
	val, ok := l.lookupEnv(key)
	if !ok || val == "" {
		return "", false
	}
	if err := checkEnvValue(key, val); err != nil {
		return "", false
	}
	return val, true
}
