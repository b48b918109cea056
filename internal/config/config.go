// Package config loads flowsim settings from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config contains all flowsim settings.
type Config struct {
	// Network is the path to a JSON or YAML network definition.
	// Empty selects the built-in SCADA plant.
	Network string `json:"network" yaml:"network"`

	// Tick is the simulation clock period.
	Tick time.Duration `json:"tick" yaml:"tick" validate:"gt=0"`

	// Rate overrides the definition's per-tick transfer amount when non-zero.
	Rate float64 `json:"rate" yaml:"rate" validate:"gte=0"`

	// Script is an optional Lua operator script run at the start of every tick.
	Script string `json:"script" yaml:"script"`

	// ScriptTimeout bounds one run of the script. Zero uses the tick period.
	ScriptTimeout time.Duration `json:"script_timeout" yaml:"script_timeout" validate:"gte=0"`

	// ScriptWhen is an optional Lua condition; the script only runs while it holds.
	ScriptWhen string `json:"script_when" yaml:"script_when"`

	HTTP    HTTPConfig    `json:"http" yaml:"http"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// HTTPConfig configures the read-only observation server.
type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr" validate:"required,hostname_port"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"oneof=json text"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Exporter    string  `json:"exporter" yaml:"exporter" validate:"omitempty,oneof=stdout"`
	ServiceName string  `json:"service_name" yaml:"service_name"`
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Tick: 20 * time.Millisecond,
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "stdout",
			ServiceName: "flowsim",
			SampleRatio: 1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load builds the effective configuration.
// Order: defaults -> YAML file (if path is set) -> environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the struct tags and reports every failing field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies FLOWSIM_* environment variables to the config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("FLOWSIM_NETWORK"); v != "" {
		cfg.Network = v
	}
	if v := os.Getenv("FLOWSIM_TICK"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FLOWSIM_TICK: %w", err)
		}
		cfg.Tick = d
	}
	if v := os.Getenv("FLOWSIM_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FLOWSIM_RATE: %w", err)
		}
		cfg.Rate = f
	}
	if v := os.Getenv("FLOWSIM_SCRIPT"); v != "" {
		cfg.Script = v
	}
	if v := os.Getenv("FLOWSIM_SCRIPT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FLOWSIM_SCRIPT_TIMEOUT: %w", err)
		}
		cfg.ScriptTimeout = d
	}
	if v := os.Getenv("FLOWSIM_SCRIPT_WHEN"); v != "" {
		cfg.ScriptWhen = v
	}
	if v := os.Getenv("FLOWSIM_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("FLOWSIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("FLOWSIM_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("FLOWSIM_TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("FLOWSIM_TRACING_EXPORTER"); v != "" {
		cfg.Tracing.Exporter = v
	}
	if v := os.Getenv("FLOWSIM_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true" || v == "1"
	}
	return nil
}
