package config

import "fmt"

const (
	// EnvCORSOrigins overrides the allowed CORS origins (comma-separated).
	EnvCORSOrigins = "CORS_ORIGINS"

	// EnvCORSStrict rejects disallowed origins with 403 when true.
	EnvCORSStrict = "CORS_STRICT"
)

// DefaultCORSOrigins are the browser origins allowed when none are configured.
var DefaultCORSOrigins = []string{"http://localhost:3000", "https://deployedApp.com"}

// SecurityConfig contains the security header settings.
type SecurityConfig struct {
	ContentSecurityPolicy string            `toml:"content_security_policy"`
	FrameOptions          string            `toml:"frame_options"`
	ReferrerPolicy        string            `toml:"referrer_policy"`
	HSTSMaxAge            int               `toml:"hsts_max_age"`
	Extra                 map[string]string `toml:"extra"`
}

// Finalize applies defaults to the security header configuration.
func (c *SecurityConfig) Finalize() error {
	if c.ContentSecurityPolicy == "" {
		c.ContentSecurityPolicy = "default-src 'self'"
	}
	if c.FrameOptions == "" {
		c.FrameOptions = "SAMEORIGIN"
	}
	if c.ReferrerPolicy == "" {
		c.ReferrerPolicy = "no-referrer"
	}
	if c.HSTSMaxAge == 0 {
		c.HSTSMaxAge = 15552000
	}
	return nil
}

// CORSConfig contains Cross-Origin Resource Sharing configuration.
type CORSConfig struct {
	Origins              []string `toml:"origins"`
	AllowedMethods       []string `toml:"allowed_methods"`
	AllowedHeaders       []string `toml:"allowed_headers"`
	ExposedHeaders       []string `toml:"exposed_headers"`
	AllowCredentials     bool     `toml:"allow_credentials"`
	MaxAge               int      `toml:"max_age"`
	OptionsSuccessStatus int      `toml:"options_success_status"`
	Strict               bool     `toml:"strict"`
}

// Finalize applies defaults, loads environment overrides, and validates the CORS configuration.
func (c *CORSConfig) Finalize() error {
	if len(c.Origins) == 0 {
		c.Origins = append([]string(nil), DefaultCORSOrigins...)
	}
	if c.OptionsSuccessStatus == 0 {
		c.OptionsSuccessStatus = 200
	}
	if len(c.ExposedHeaders) == 0 {
		c.ExposedHeaders = []string{"X-Trace-ID"}
	}
	envList(EnvCORSOrigins, &c.Origins)
	envBool(EnvCORSStrict, &c.Strict)

	if c.OptionsSuccessStatus < 200 || c.OptionsSuccessStatus > 299 {
		return fmt.Errorf("invalid options_success_status %d", c.OptionsSuccessStatus)
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("invalid max_age %d", c.MaxAge)
	}
	return nil
}

// BodyConfig contains request body parser settings.
type BodyConfig struct {
	Limit       int64 `toml:"limit"`
	DisableForm bool  `toml:"disable_form"`
}

// Finalize applies defaults to the body parser configuration.
func (c *BodyConfig) Finalize() error {
	if c.Limit == 0 {
		c.Limit = 100 << 10
	}
	if c.Limit < 0 {
		return fmt.Errorf("invalid limit %d", c.Limit)
	}
	return nil
}
