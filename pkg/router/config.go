// Package router maps (method, path pattern) pairs to handlers and runs every request
// through the configured middleware pipeline before routing.
package router

import (
	"net/http"
	"time"

	"github.com/Suhaibinator/SBlog/pkg/common"
	"github.com/Suhaibinator/SBlog/pkg/metrics"
	"github.com/Suhaibinator/SBlog/pkg/middleware"
	"go.uber.org/zap"
)

// AuthLevel defines the authentication level for a route.
type AuthLevel int

const (
	// NoAuth indicates that no authentication is required for the route.
	NoAuth AuthLevel = iota

	// AuthOptional indicates that authentication is optional for the route.
	// A valid bearer token puts the user in the request context; anything else
	// lets the request through without one.
	AuthOptional

	// AuthRequired indicates that authentication is required for the route.
	// Requests without a valid bearer token are rejected with 401.
	AuthRequired
)

// String returns the config-file spelling of the level.
func (l AuthLevel) String() string {
	switch l {
	case AuthOptional:
		return "optional"
	case AuthRequired:
		return "required"
	default:
		return "none"
	}
}

// RouterConfig defines the global configuration for the router.
type RouterConfig struct {
	Logger               *zap.Logger                 // Logger for all router operations
	GlobalTimeout        time.Duration               // Default handler timeout for all routes, zero disables
	GlobalMaxBodySize    int64                       // Default cap on raw body reads inside a route, zero disables
	GlobalRateLimit      *middleware.RateLimitConfig // Default rate limit for all routes
	IPConfig             *middleware.IPConfig        // Configuration for client IP extraction
	EnableTraceID        bool                        // Assign trace IDs and echo them in X-Trace-ID
	SlowRequestThreshold time.Duration               // Requests slower than this are logged as slow, zero disables
	Metrics              *metrics.Collector          // Records request metrics when set
	Middlewares          []common.Middleware         // Pipeline stages applied to every request before routing
	SubRouters           []SubRouterConfig           // Sub-routers registered by NewRouter
}

// SubRouterConfig defines configuration for a group of routes with a common path prefix.
type SubRouterConfig struct {
	PathPrefix          string                      // Common path prefix for all routes in this sub-router
	TimeoutOverride     time.Duration               // Override global timeout for all routes in this sub-router
	MaxBodySizeOverride int64                       // Override global max body size for all routes in this sub-router
	RateLimitOverride   *middleware.RateLimitConfig // Override global rate limit for all routes in this sub-router
	Routes              []RouteConfig               // Routes in this sub-router
	Middlewares         []common.Middleware         // Middlewares applied to all routes in this sub-router
}

// RouteConfig defines a route.
type RouteConfig struct {
	Path        string                      // Route path (prefixed with the sub-router's PathPrefix if applicable)
	Methods     []string                    // HTTP methods this route handles
	AuthLevel   AuthLevel                   // Authentication level for this route
	Timeout     time.Duration               // Override timeout for this specific route
	MaxBodySize int64                       // Override max body size for this specific route
	RateLimit   *middleware.RateLimitConfig // Rate limit for this specific route
	Handler     HandlerFunc                 // Handler whose result is encoded as JSON
	Raw         http.Handler                // Plain handler used instead of Handler, e.g. for /metrics
	Middlewares []common.Middleware         // Middlewares applied to this specific route
}

// HandlerFunc handles a routed request. The returned value is written as a JSON
// response with status 200, or with the status of a *Response. A non-nil error is
// written as a JSON error envelope instead.
type HandlerFunc func(r *http.Request) (any, error)

// Response lets a handler choose the status code of its JSON response.
// A nil Body writes the status with no body.
type Response struct {
	Status int
	Body   any
}

// RouteInfo describes a registered route.
type RouteInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Middleware is an alias for common.Middleware.
type Middleware = common.Middleware
