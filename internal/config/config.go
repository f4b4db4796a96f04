// Package config provides configuration parsing and validation for echoprobe.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/postalsys/echoprobe/internal/icmp"
	"github.com/postalsys/echoprobe/internal/logging"
)

// Config represents the complete echoprobe configuration.
type Config struct {
	Probe   ProbeConfig   `yaml:"probe"`
	Run     RunConfig     `yaml:"run"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ProbeConfig holds per-probe parameters.
type ProbeConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	TTL      int           `yaml:"ttl"`
	Sequence uint16        `yaml:"sequence"`
	Payload  string        `yaml:"payload"` // hex, up to 24 bytes
}

// RunConfig controls repeated probing from the CLI.
type RunConfig struct {
	Count    int           `yaml:"count"`
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig selects the log level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MetricsConfig defines metrics export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // node_exporter textfile collector output, empty disables
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Probe: ProbeConfig{
			Timeout:  4 * time.Second,
			TTL:      64,
			Sequence: 1,
		},
		Run: RunConfig{
			Count:    1,
			Interval: time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		// ${VAR:-default}
		if idx := strings.Index(name, ":-"); idx != -1 {
			if val, ok := os.LookupEnv(name[:idx]); ok {
				return val
			}
			return name[idx+2:]
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match // Keep original if not found
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Probe.Timeout <= 0 {
		errs = append(errs, "probe.timeout must be positive")
	}
	if c.Probe.TTL < 1 || c.Probe.TTL > 255 {
		errs = append(errs, "probe.ttl must be between 1 and 255")
	}
	if _, err := c.Probe.Token(); err != nil {
		errs = append(errs, fmt.Sprintf("probe.payload: %v", err))
	}

	if c.Run.Count < 1 {
		errs = append(errs, "run.count must be at least 1")
	}
	if c.Run.Interval < 0 {
		errs = append(errs, "run.interval must not be negative")
	}

	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Sprintf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level))
	}
	if !logging.ValidFormat(c.Logging.Format) {
		errs = append(errs, fmt.Sprintf("invalid logging.format: %s (must be text or json)", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Token decodes the hex payload into an echo token. Shorter payloads are
// right-padded with zeros; an empty payload yields the zero token.
func (p ProbeConfig) Token() (icmp.Token, error) {
	return ParseToken(p.Payload)
}

// ParseToken decodes a hex string of at most icmp.TokenSize bytes. An optional
// 0x prefix and embedded colons or spaces are ignored.
func ParseToken(s string) (icmp.Token, error) {
	var tok icmp.Token

	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(":", "", " ", "").Replace(s)
	if s == "" {
		return tok, nil
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return tok, fmt.Errorf("invalid hex: %w", err)
	}
	if len(raw) > icmp.TokenSize {
		return tok, fmt.Errorf("payload is %d bytes, at most %d allowed", len(raw), icmp.TokenSize)
	}
	copy(tok[:], raw)
	return tok, nil
}

// String returns the configuration as YAML.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
