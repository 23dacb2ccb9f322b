package config

import "fmt"

const (
	// EnvLogLevel overrides the minimum log level.
	EnvLogLevel = "LOG_LEVEL"

	// EnvLogFormat overrides the log encoding ("json" or "console").
	EnvLogFormat = "LOG_FORMAT"
)

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Finalize applies defaults, loads environment overrides, and validates the logging configuration.
func (c *LoggingConfig) Finalize() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
	envString(EnvLogLevel, &c.Level)
	envString(EnvLogFormat, &c.Format)

	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid level %q", c.Level)
	}
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid format %q", c.Format)
	}
	return nil
}
