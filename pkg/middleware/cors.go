package middleware

import (
	"net/http"
	"strings"

	"github.com/Suhaibinator/SBlog/pkg/response"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CORSConfig configures the cross-origin stage.
type CORSConfig struct {
	// AllowedOrigins is the allow-list of exact origins. "*" allows any origin.
	AllowedOrigins []string

	// AllowedMethods are accepted in preflight requests. Empty means DefaultCORSMethods.
	AllowedMethods []string

	// AllowedHeaders are accepted in preflight requests. When empty, any headers named
	// in Access-Control-Request-Headers are allowed and reflected back.
	AllowedHeaders []string

	// ExposedHeaders lists response headers the browser may expose to scripts.
	ExposedHeaders []string

	// AllowCredentials sets Access-Control-Allow-Credentials for allowed origins.
	AllowCredentials bool

	// MaxAge is the preflight cache duration in seconds. Zero omits the header.
	MaxAge int

	// OptionsSuccessStatus is the status code for OPTIONS responses. Zero means 204.
	OptionsSuccessStatus int

	// Strict rejects requests from origins outside the allow-list with 403 instead of
	// serving them without permission headers.
	Strict bool
}

// DefaultCORSMethods are accepted when CORSConfig.AllowedMethods is empty.
var DefaultCORSMethods = []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE"}

// CORS enforces the cross-origin policy with rs/cors. Requests from allowed origins
// receive permission headers; requests from other origins are served without them (or
// rejected when Strict is set), which makes compliant browsers withhold the response.
// Every OPTIONS request is answered here with OptionsSuccessStatus and no body.
func CORS(cfg CORSConfig, logger *zap.Logger) Middleware {
	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}

	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = DefaultCORSMethods
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"*"}
	}
	status := cfg.OptionsSuccessStatus
	if status == 0 {
		status = http.StatusNoContent
	}

	opts := cors.Options{
		AllowedOrigins:       origins,
		AllowedMethods:       methods,
		AllowedHeaders:       headers,
		ExposedHeaders:       cfg.ExposedHeaders,
		AllowCredentials:     cfg.AllowCredentials,
		MaxAge:               cfg.MaxAge,
		OptionsSuccessStatus: status,
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		if stdLog, err := zap.NewStdLogAt(logger.Named("cors"), zapcore.DebugLevel); err == nil {
			opts.Logger = stdLog
		}
	}
	c := cors.New(opts)

	return func(next http.Handler) http.Handler {
		// OPTIONS requests that are not preflights pass through rs/cors untouched.
		handler := c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.Header().Set("Content-Length", "0")
				w.WriteHeader(status)
				return
			}
			next.ServeHTTP(w, r)
		}))
		if !cfg.Strict {
			return handler
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && !c.OriginAllowed(r) {
				w.Header().Add("Vary", "Origin")
				logger.Warn("Cross-origin request rejected",
					zap.String("origin", origin),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("trace_id", GetTraceID(r)),
				)
				_ = response.Error(w, response.NewHTTPError(http.StatusForbidden, response.KindOriginNotAllowed, "Origin not allowed"))
				return
			}
			handler.ServeHTTP(w, r)
		})
	}
}
