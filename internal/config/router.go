package config

import (
	"fmt"
	"time"
)

// RouterConfig contains per-route defaults and request logging settings.
type RouterConfig struct {
	GlobalTimeout        string `toml:"global_timeout"`
	GlobalMaxBodySize    int64  `toml:"global_max_body_size"`
	SlowRequestThreshold string `toml:"slow_request_threshold"`
	TraceIDs             *bool  `toml:"trace_ids"`
	IPSource             string `toml:"ip_source"`
	TrustProxy           bool   `toml:"trust_proxy"`

	globalTimeout        time.Duration
	slowRequestThreshold time.Duration
}

// GlobalTimeoutDuration returns the parsed handler timeout.
func (c *RouterConfig) GlobalTimeoutDuration() time.Duration { return c.globalTimeout }

// SlowRequestThresholdDuration returns the parsed slow request threshold.
func (c *RouterConfig) SlowRequestThresholdDuration() time.Duration { return c.slowRequestThreshold }

// TraceIDsEnabled reports whether trace IDs are assigned. Defaults to true.
func (c *RouterConfig) TraceIDsEnabled() bool { return c.TraceIDs == nil || *c.TraceIDs }

// Finalize applies defaults and validates the router configuration.
func (c *RouterConfig) Finalize() error {
	if c.GlobalTimeout == "" {
		c.GlobalTimeout = "10s"
	}
	if c.SlowRequestThreshold == "" {
		c.SlowRequestThreshold = "1s"
	}
	if c.IPSource == "" {
		c.IPSource = "remote_addr"
	}

	switch c.IPSource {
	case "remote_addr", "x_forwarded_for", "x_real_ip":
	default:
		return fmt.Errorf("invalid ip_source %q", c.IPSource)
	}
	if c.GlobalMaxBodySize < 0 {
		return fmt.Errorf("invalid global_max_body_size %d", c.GlobalMaxBodySize)
	}

	var err error
	if c.globalTimeout, err = parseDuration("global_timeout", c.GlobalTimeout); err != nil {
		return err
	}
	if c.slowRequestThreshold, err = parseDuration("slow_request_threshold", c.SlowRequestThreshold); err != nil {
		return err
	}
	return nil
}

// RateLimitConfig contains the optional per-client rate limit.
type RateLimitConfig struct {
	Enabled bool   `toml:"enabled"`
	Limit   int    `toml:"limit"`
	Window  string `toml:"window"`
	Smooth  bool   `toml:"smooth"`

	window time.Duration
}

// WindowDuration returns the parsed rate limit window.
func (c *RateLimitConfig) WindowDuration() time.Duration { return c.window }

// Finalize applies defaults and validates the rate limit configuration.
func (c *RateLimitConfig) Finalize() error {
	if c.Limit == 0 {
		c.Limit = 100
	}
	if c.Window == "" {
		c.Window = "1m"
	}
	if c.Limit < 0 {
		return fmt.Errorf("invalid limit %d", c.Limit)
	}
	var err error
	if c.window, err = parseDuration("window", c.Window); err != nil {
		return err
	}
	if c.window == 0 {
		return fmt.Errorf("invalid window: must be positive")
	}
	return nil
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled           bool   `toml:"enabled"`
	Path              string `toml:"path"`
	Namespace         string `toml:"namespace"`
	RuntimeCollectors bool   `toml:"runtime_collectors"`
	Username          string `toml:"username"`
	Password          string `toml:"password"`
}

// Finalize applies defaults and validates the metrics configuration.
func (c *MetricsConfig) Finalize() error {
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if c.Path[0] != '/' {
		return fmt.Errorf("invalid path %q: must start with /", c.Path)
	}
	if (c.Username == "") != (c.Password == "") {
		return fmt.Errorf("username and password must be set together")
	}
	return nil
}
