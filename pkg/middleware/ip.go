package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the leftmost X-Forwarded-For entry
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// TrustProxy must be true for proxy headers to be read at all.
	// When false, or when the header is missing, RemoteAddr is used.
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration, which ignores proxy headers.
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source: IPSourceRemoteAddr,
	}
}

type clientIPKey struct{}

// ClientIP extracts the client IP from the request context
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// ClientIPMiddleware extracts the client IP once and stores it in the request context
// for logging and rate limiting.
func ClientIPMiddleware(config *IPConfig) Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey{}, extractClientIP(r, config))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractClientIP(r *http.Request, config *IPConfig) string {
	var ip string
	if config.TrustProxy {
		switch config.Source {
		case IPSourceXForwardedFor:
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				ip = strings.TrimSpace(strings.Split(xff, ",")[0])
			}
		case IPSourceXRealIP:
			ip = strings.TrimSpace(r.Header.Get("X-Real-IP"))
		}
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	return cleanIP(ip)
}

// cleanIP removes the port (and IPv6 brackets) from an address if present.
func cleanIP(ip string) string {
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(ip, "["), "]")
}
