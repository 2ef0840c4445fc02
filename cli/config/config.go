package config

import (
	"fmt"
	"time"
)

// Config represents a screener.yaml configuration file.
// All values are optional and act as defaults for screener flags.
// CLI flags always override config values.
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Retry     RetryConfig     `yaml:"retry"`
	Scorecard ScorecardConfig `yaml:"scorecard"`
	Notify    NotifyConfig    `yaml:"notify"`
	Relay     RelayConfig     `yaml:"relay"`
	Record    RecordConfig    `yaml:"record"`
}

// BackendConfig holds backend connection defaults.
type BackendConfig struct {
	URL     string            `yaml:"url"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// RetryConfig holds the feedback retry schedule.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	FirstDelay  Duration `yaml:"first_delay,omitempty"`
	BaseDelay   Duration `yaml:"base_delay,omitempty"`
}

// ScorecardConfig holds scorecard storage defaults.
type ScorecardConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// NotifyConfig holds notifier defaults.
type NotifyConfig struct {
	Type       string            `yaml:"type"`
	URL        string            `yaml:"url"`
	Channel    string            `yaml:"channel,omitempty"`
	PerVacancy bool              `yaml:"per_vacancy,omitempty"` // redis: suffix the channel with the vacancy ID
	Headers    map[string]string `yaml:"headers,omitempty"`
	Timeout    Duration          `yaml:"timeout,omitempty"`
	Retries    *int              `yaml:"retries,omitempty"`
}

// RelayConfig holds relay server defaults.
type RelayConfig struct {
	Listen string `yaml:"listen"`
}

// RecordConfig holds stream recording defaults.
type RecordConfig struct {
	// Dir receives one recording per streaming call when set.
	Dir string `yaml:"dir"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}
