package config

import (
	"fmt"
	"time"
)

const (
	// EnvDatabaseDriver selects the post store ("memory" or "postgres").
	EnvDatabaseDriver = "DATABASE_DRIVER"

	// EnvDatabaseURL overrides the PostgreSQL connection string.
	EnvDatabaseURL = "DATABASE_URL"
)

const (
	// DriverMemory keeps posts in process memory.
	DriverMemory = "memory"

	// DriverPostgres stores posts in PostgreSQL.
	DriverPostgres = "postgres"
)

// DatabaseConfig contains the post store settings.
type DatabaseConfig struct {
	Driver          string `toml:"driver"`
	URL             string `toml:"url"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	ConnTimeout     string `toml:"conn_timeout"`
	Migrate         *bool  `toml:"migrate"`

	connMaxLifetime time.Duration
	connTimeout     time.Duration
}

// ConnMaxLifetimeDuration returns the parsed connection lifetime.
func (c *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration { return c.connMaxLifetime }

// ConnTimeoutDuration returns the parsed timeout for the startup ping.
func (c *DatabaseConfig) ConnTimeoutDuration() time.Duration { return c.connTimeout }

// MigrateOnStart reports whether migrations run at startup. Defaults to true.
func (c *DatabaseConfig) MigrateOnStart() bool { return c.Migrate == nil || *c.Migrate }

// Finalize applies defaults, loads environment overrides, and validates the database configuration.
func (c *DatabaseConfig) Finalize() error {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == "" {
		c.ConnMaxLifetime = "15m"
	}
	if c.ConnTimeout == "" {
		c.ConnTimeout = "5s"
	}
	envString(EnvDatabaseDriver, &c.Driver)
	envString(EnvDatabaseURL, &c.URL)

	switch c.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.URL == "" {
			return fmt.Errorf("url is required for driver %q", c.Driver)
		}
	default:
		return fmt.Errorf("invalid driver %q", c.Driver)
	}

	var err error
	if c.connMaxLifetime, err = parseDuration("conn_max_lifetime", c.ConnMaxLifetime); err != nil {
		return err
	}
	if c.connTimeout, err = parseDuration("conn_timeout", c.ConnTimeout); err != nil {
		return err
	}
	return nil
}
