package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it can be unmarshalled from a YAML
// duration string ("5s", "30s") — yaml.v3 has no built-in time.Duration
// support, so this hook is required wherever the config needs one.
type Duration time.Duration

// UnmarshalYAML parses a YAML scalar duration string via time.ParseDuration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back to its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Get returns the underlying time.Duration.
func (d Duration) Get() time.Duration {
	return time.Duration(d)
}

// HTTPConfig configures the pooled HTTP client (SPEC_FULL.md §6 `http:` block).
type HTTPConfig struct {
	ConnectTimeout     Duration `yaml:"connect_timeout"`
	RequestTimeout     Duration `yaml:"request_timeout"`
	PoolMaxIdlePerHost int      `yaml:"pool_max_idle_per_host"`
	Proxy              string   `yaml:"proxy"`
}

// NLPConfig configures the keyword relevance gate (SPEC_FULL.md §4.3/§6).
type NLPConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Keywords []string `yaml:"keywords"`
}

// LoggingConfig is an ambient-stack addition (SPEC_FULL.md §10) controlling
// the arbor logger's level and writers.
type LoggingConfig struct {
	Level      string   `yaml:"level"`
	Output     []string `yaml:"output"`
	TimeFormat string   `yaml:"time_format"`
}

// Config is the crawler's complete runtime configuration, loaded from YAML
// at startup (SPEC_FULL.md §6).
type Config struct {
	DBPath      string        `yaml:"db_path"`
	ExportPath  string        `yaml:"export_path"`
	HTTP        HTTPConfig    `yaml:"http"`
	NLP         NLPConfig     `yaml:"nlp"`
	Logging     LoggingConfig `yaml:"logging"`
	Concurrency int           `yaml:"concurrency"`
}

// NewDefaultConfig returns the zero-config defaults named in SPEC_FULL.md §10.
func NewDefaultConfig() *Config {
	return &Config{
		DBPath:     "./data/crawler.db",
		ExportPath: "./data/export.jsonl",
		HTTP: HTTPConfig{
			ConnectTimeout:     Duration(5 * time.Second),
			RequestTimeout:     Duration(30 * time.Second),
			PoolMaxIdlePerHost: 10,
		},
		NLP: NLPConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"console"},
			TimeFormat: "15:04:05.000",
		},
		Concurrency: 32,
	}
}

// LoadFromFile returns the defaults overridden field-by-field by path's YAML
// content. A missing or unparseable file is an error — the caller treats
// this as fatal at startup (SPEC_FULL.md §7).
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if config.Concurrency <= 0 {
		config.Concurrency = 32
	}
	if len(config.Logging.Output) == 0 {
		config.Logging.Output = []string{"console"}
	}
	if strings.TrimSpace(config.Logging.TimeFormat) == "" {
		config.Logging.TimeFormat = "15:04:05.000"
	}

	return config, nil
}
