// Package config loads the service configuration from an optional TOML file,
// applies defaults and environment overrides, and validates the result.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultConfigFile is read when CONFIG_FILE is not set.
	DefaultConfigFile = "config.toml"

	// EnvConfigFile overrides the configuration file path.
	EnvConfigFile = "CONFIG_FILE"
)

// Config represents the root service configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Logging    LoggingConfig    `toml:"logging"`
	Security   SecurityConfig   `toml:"security"`
	CORS       CORSConfig       `toml:"cors"`
	Body       BodyConfig       `toml:"body"`
	Router     RouterConfig     `toml:"router"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Credential CredentialConfig `toml:"credential"`
	Database   DatabaseConfig   `toml:"database"`
	Posts      PostsConfig      `toml:"posts"`
}

// Load reads the file named by CONFIG_FILE, or config.toml, and finalizes it.
// A missing default file is not an error; a missing explicit file is.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfigFile)
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	cfg, err := LoadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			cfg = &Config{}
		} else {
			return nil, err
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile parses a TOML file without applying defaults or overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML configuration. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Finalize applies defaults, loads environment overrides, and validates every section.
func (c *Config) Finalize() error {
	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"logging", c.Logging.Finalize},
		{"security", c.Security.Finalize},
		{"cors", c.CORS.Finalize},
		{"body", c.Body.Finalize},
		{"router", c.Router.Finalize},
		{"rate_limit", c.RateLimit.Finalize},
		{"metrics", c.Metrics.Finalize},
		{"credential", c.Credential.Finalize},
		{"database", c.Database.Finalize},
		{"posts", c.Posts.Finalize},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// parseDuration accepts an empty string as zero.
func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", field)
	}
	return d, nil
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envList(name string, dst *[]string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*dst = out
}
