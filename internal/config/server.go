package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	// EnvPort overrides the listen port. 0 lets the OS pick one.
	EnvPort = "PORT"

	// EnvHost overrides the listen host.
	EnvHost = "HOST"

	// EnvNodeEnv names the deployment environment reported by the root route.
	EnvNodeEnv = "NODE_ENV"
)

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Environment     string `toml:"environment"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	IdleTimeout     string `toml:"idle_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`

	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ReadTimeoutDuration returns the parsed read timeout.
func (c *ServerConfig) ReadTimeoutDuration() time.Duration { return c.readTimeout }

// WriteTimeoutDuration returns the parsed write timeout.
func (c *ServerConfig) WriteTimeoutDuration() time.Duration { return c.writeTimeout }

// IdleTimeoutDuration returns the parsed idle timeout.
func (c *ServerConfig) IdleTimeoutDuration() time.Duration { return c.idleTimeout }

// ShutdownTimeoutDuration returns the parsed shutdown timeout.
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration { return c.shutdownTimeout }

// Finalize applies defaults, loads environment overrides, and validates the server configuration.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "15s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "30s"
	}
	if c.IdleTimeout == "" {
		c.IdleTimeout = "60s"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
}

func (c *ServerConfig) loadEnv() error {
	envString(EnvHost, &c.Host)
	envString(EnvNodeEnv, &c.Environment)
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Port = port
	}
	return nil
}

func (c *ServerConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	var err error
	if c.readTimeout, err = parseDuration("read_timeout", c.ReadTimeout); err != nil {
		return err
	}
	if c.writeTimeout, err = parseDuration("write_timeout", c.WriteTimeout); err != nil {
		return err
	}
	if c.idleTimeout, err = parseDuration("idle_timeout", c.IdleTimeout); err != nil {
		return err
	}
	if c.shutdownTimeout, err = parseDuration("shutdown_timeout", c.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}
