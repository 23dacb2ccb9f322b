package middleware

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// SecurityConfig controls the fixed set of response headers added by SecurityHeaders.
// Empty fields fall back to the defaults from DefaultSecurityConfig.
type SecurityConfig struct {
	// ContentSecurityPolicy restricts where resources may be loaded from.
	ContentSecurityPolicy string

	// FrameOptions is the X-Frame-Options value (anti-clickjacking).
	FrameOptions string

	// ReferrerPolicy is the Referrer-Policy value.
	ReferrerPolicy string

	// PermittedCrossDomainPolicies is the X-Permitted-Cross-Domain-Policies value.
	PermittedCrossDomainPolicies string

	// HSTSMaxAge is the Strict-Transport-Security max-age in seconds. Negative disables the header.
	HSTSMaxAge int

	// Extra holds additional headers. Entries override the defaults.
	Extra map[string]string
}

// DefaultSecurityConfig returns the default security header configuration.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		ContentSecurityPolicy:        "default-src 'self'",
		FrameOptions:                 "SAMEORIGIN",
		ReferrerPolicy:               "no-referrer",
		PermittedCrossDomainPolicies: "none",
		HSTSMaxAge:                   15552000,
	}
}

func (c SecurityConfig) withDefaults() SecurityConfig {
	d := DefaultSecurityConfig()
	if c.ContentSecurityPolicy == "" {
		c.ContentSecurityPolicy = d.ContentSecurityPolicy
	}
	if c.FrameOptions == "" {
		c.FrameOptions = d.FrameOptions
	}
	if c.ReferrerPolicy == "" {
		c.ReferrerPolicy = d.ReferrerPolicy
	}
	if c.PermittedCrossDomainPolicies == "" {
		c.PermittedCrossDomainPolicies = d.PermittedCrossDomainPolicies
	}
	if c.HSTSMaxAge == 0 {
		c.HSTSMaxAge = d.HSTSMaxAge
	}
	return c
}

// securityHeader is one resolved header line.
type securityHeader struct {
	key   string
	value string
}

// resolveSecurityHeaders builds the header list once. Values containing CR or LF are
// dropped to prevent header injection through configuration.
func resolveSecurityHeaders(cfg SecurityConfig) []securityHeader {
	cfg = cfg.withDefaults()

	set := map[string]string{
		"Content-Security-Policy":           cfg.ContentSecurityPolicy,
		"X-Frame-Options":                   cfg.FrameOptions,
		"X-Content-Type-Options":            "nosniff",
		"Referrer-Policy":                   cfg.ReferrerPolicy,
		"X-Permitted-Cross-Domain-Policies": cfg.PermittedCrossDomainPolicies,
		"X-Dns-Prefetch-Control":            "off",
		"X-Download-Options":                "noopen",
		"Cross-Origin-Opener-Policy":        "same-origin",
		"Cross-Origin-Resource-Policy":      "same-origin",
		"Origin-Agent-Cluster":              "?1",
		"X-Xss-Protection":                  "0",
	}
	if cfg.HSTSMaxAge > 0 {
		set["Strict-Transport-Security"] = "max-age=" + strconv.Itoa(cfg.HSTSMaxAge) + "; includeSubDomains"
	}
	for k, v := range cfg.Extra {
		set[http.CanonicalHeaderKey(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	headers := make([]securityHeader, 0, len(set))
	for k, v := range set {
		if k == "" || v == "" || strings.ContainsAny(v, "\r\n") {
			continue
		}
		headers = append(headers, securityHeader{key: k, value: v})
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i].key < headers[j].key })
	return headers
}

// SecurityHeaders adds the configured security headers to every response.
// It never terminates the request.
func SecurityHeaders(cfg SecurityConfig) Middleware {
	headers := resolveSecurityHeaders(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, sh := range headers {
				h.Set(sh.key, sh.value)
			}
			h.Del("X-Powered-By")
			next.ServeHTTP(w, r)
		})
	}
}
