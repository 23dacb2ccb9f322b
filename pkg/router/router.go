package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Suhaibinator/SBlog/pkg/common"
	"github.com/Suhaibinator/SBlog/pkg/middleware"
	"github.com/Suhaibinator/SBlog/pkg/response"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

var (
	// ErrFrozen is returned when a route is registered after Freeze.
	ErrFrozen = errors.New("router: route table is frozen")

	// ErrRouteConflict is returned when a route cannot be added to the table,
	// for example because it overlaps an existing pattern.
	ErrRouteConflict = errors.New("router: conflicting route")

	// ErrInvalidRoute is returned for routes without methods or handler.
	ErrInvalidRoute = errors.New("router: invalid route")
)

// ErrResponseSent is returned by WriteJSON when a response was already started.
var ErrResponseSent = response.ErrResponseSent

// HTTPError is an error that carries an HTTP status code and error kind.
type HTTPError = response.HTTPError

// NewHTTPError creates a new HTTPError.
func NewHTTPError(statusCode int, kind response.Kind, message string) *HTTPError {
	return response.NewHTTPError(statusCode, kind, message)
}

// WriteJSON writes v as the JSON response. It returns ErrResponseSent if a response
// was already started for the request.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) error {
	return response.JSON(w, statusCode, v)
}

// Router is the main router struct that implements http.Handler.
// U is the type of the authenticated user stored in the request context.
type Router[U any] struct {
	config       RouterConfig
	router       *httprouter.Router
	logger       *zap.Logger
	handler      http.Handler
	authenticate middleware.TokenAuthenticator[U]
	rateLimiter  middleware.RateLimiter

	mu     sync.Mutex
	routes []RouteInfo
	frozen atomic.Bool

	wg         sync.WaitGroup
	shutdown   bool
	shutdownMu sync.RWMutex
}

// contextKey is a type for context keys.
type contextKey string

// ParamsKey is the key used to store httprouter.Params in the request context.
const ParamsKey contextKey = "params"

// NewRouter creates a new Router with the given configuration. authenticate resolves
// bearer tokens for routes with AuthOptional or AuthRequired and may be nil if no
// route needs it. Routes from config.SubRouters are registered immediately.
func NewRouter[U any](config RouterConfig, authenticate middleware.TokenAuthenticator[U]) (*Router[U], error) {
	hr := httprouter.New()

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Router[U]{
		config:       config,
		router:       hr,
		logger:       logger,
		authenticate: authenticate,
		rateLimiter:  middleware.NewUberRateLimiter(),
	}

	hr.NotFound = http.HandlerFunc(r.notFound)
	hr.MethodNotAllowed = http.HandlerFunc(r.methodNotAllowed)

	// Outermost first. Recovery sits inside logging and metrics so that recovered
	// panics are recorded as 500s; the pipeline stages run after that.
	chain := common.NewMiddlewareChain()
	if config.EnableTraceID {
		chain = chain.Append(middleware.TraceMiddleware())
	}
	chain = chain.Append(
		middleware.ClientIPMiddleware(config.IPConfig),
		middleware.Logging(logger, config.SlowRequestThreshold),
	)
	if config.Metrics != nil {
		chain = chain.Append(config.Metrics.Middleware())
	}
	chain = chain.Append(middleware.Recovery(logger), r.trackInFlight)
	chain = chain.Append(config.Middlewares...)
	r.handler = chain.Then(hr)

	for _, sr := range config.SubRouters {
		if err := r.RegisterSubRouter(sr); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// RegisterSubRouter registers all routes in a sub-router under its path prefix.
func (r *Router[U]) RegisterSubRouter(sr SubRouterConfig) error {
	for _, route := range sr.Routes {
		timeout := r.getEffectiveTimeout(route.Timeout, sr.TimeoutOverride)
		maxBodySize := r.getEffectiveMaxBodySize(route.MaxBodySize, sr.MaxBodySizeOverride)
		rateLimit := r.getEffectiveRateLimit(route.RateLimit, sr.RateLimitOverride)

		mws := make([]Middleware, 0, len(sr.Middlewares)+len(route.Middlewares))
		mws = append(mws, sr.Middlewares...)
		mws = append(mws, route.Middlewares...)

		if err := r.register(sr.PathPrefix+route.Path, route, timeout, maxBodySize, rateLimit, mws); err != nil {
			return err
		}
	}
	return nil
}

// Register registers a single route at the top level.
func (r *Router[U]) Register(route RouteConfig) error {
	timeout := r.getEffectiveTimeout(route.Timeout, 0)
	maxBodySize := r.getEffectiveMaxBodySize(route.MaxBodySize, 0)
	rateLimit := r.getEffectiveRateLimit(route.RateLimit, nil)
	return r.register(route.Path, route, timeout, maxBodySize, rateLimit, route.Middlewares)
}

func (r *Router[U]) register(path string, route RouteConfig, timeout time.Duration, maxBodySize int64, rateLimit *middleware.RateLimitConfig, mws []Middleware) error {
	if r.frozen.Load() {
		return ErrFrozen
	}
	if len(route.Methods) == 0 {
		return fmt.Errorf("%w: %s has no methods", ErrInvalidRoute, path)
	}
	if route.Handler == nil && route.Raw == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidRoute, path)
	}

	handler := r.wrapHandler(r.endpoint(route), route.AuthLevel, timeout, maxBodySize, rateLimit, mws)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, method := range route.Methods {
		if err := r.handle(method, path, handler); err != nil {
			return err
		}
		r.routes = append(r.routes, RouteInfo{Method: method, Path: path})
		r.logger.Debug("Route registered",
			zap.String("method", method),
			zap.String("path", path),
			zap.Stringer("auth", route.AuthLevel),
		)
	}

	// GET routes answer HEAD too unless HEAD is declared. A later explicit HEAD
	// registration on the same path conflicts.
	if slices.Contains(route.Methods, http.MethodGet) && !slices.Contains(route.Methods, http.MethodHead) {
		if err := r.handle(http.MethodHead, path, handler); err != nil {
			return err
		}
	}
	return nil
}

// handle adds one method/path to the tree. httprouter reports conflicts by panicking.
func (r *Router[U]) handle(method, path string, handler http.Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s %s: %v", ErrRouteConflict, method, path, rec)
		}
	}()
	r.router.Handle(method, path, r.convertToHTTPRouterHandle(handler, path))
	return nil
}

// Freeze makes the route table read-only. Later registrations fail with ErrFrozen.
func (r *Router[U]) Freeze() {
	r.frozen.Store(true)
}

// Routes returns the registered routes in registration order.
func (r *Router[U]) Routes() []RouteInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RouteInfo, len(r.routes))
	copy(out, r.routes)
	return out
}

// convertToHTTPRouterHandle stores the route params and the matched pattern on the request.
func (r *Router[U]) convertToHTTPRouterHandle(handler http.Handler, pattern string) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		common.SetRoutePattern(req, pattern)
		ctx := context.WithValue(req.Context(), ParamsKey, ps)
		handler.ServeHTTP(w, req.WithContext(ctx))
	}
}

// wrapHandler applies the per-route stages: rate limit, auth, route middlewares,
// body size cap and timeout, in that order.
func (r *Router[U]) wrapHandler(handler http.Handler, authLevel AuthLevel, timeout time.Duration, maxBodySize int64, rateLimit *middleware.RateLimitConfig, mws []Middleware) http.Handler {
	chain := common.NewMiddlewareChain()

	if rateLimit != nil {
		chain = chain.Append(middleware.RateLimit(rateLimit, r.rateLimiter, r.logger))
	}

	switch authLevel {
	case AuthRequired:
		chain = chain.Append(middleware.AuthRequired(r.authenticate, r.logger))
	case AuthOptional:
		chain = chain.Append(middleware.AuthOptional(r.authenticate, r.logger))
	}

	chain = chain.Append(mws...)

	if maxBodySize > 0 {
		chain = chain.Append(middleware.MaxBodySize(maxBodySize))
	}
	if timeout > 0 {
		chain = chain.Append(middleware.Timeout(timeout, r.logger))
	}

	return chain.Then(handler)
}

// endpoint turns a route's handler into an http.Handler that writes exactly one response.
func (r *Router[U]) endpoint(route RouteConfig) http.Handler {
	if route.Raw != nil {
		return route.Raw
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		result, err := route.Handler(req)
		if err != nil {
			r.handleError(w, req, err)
			return
		}

		status := http.StatusOK
		body := result
		switch resp := result.(type) {
		case *Response:
			status, body = resp.Status, resp.Body
		case Response:
			status, body = resp.Status, resp.Body
		}
		if status == 0 {
			status = http.StatusOK
		}

		if response.Sent(w) {
			if body != nil {
				r.superfluous(req)
			}
			return
		}
		if body == nil && status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		if err := response.JSON(w, status, body); err != nil {
			if errors.Is(err, response.ErrResponseSent) {
				r.superfluous(req)
				return
			}
			r.handleError(w, req, fmt.Errorf("encode response: %w", err))
		}
	})
}

// superfluous logs a handler's attempt to respond twice. After a timeout the late
// response is expected and only logged at debug level.
func (r *Router[U]) superfluous(req *http.Request) {
	if req.Context().Err() != nil {
		r.logger.Debug("Discarding response of timed out handler",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("trace_id", middleware.GetTraceID(req)),
		)
		return
	}
	r.logger.Error("Handler attempted to send more than one response",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("trace_id", middleware.GetTraceID(req)),
	)
}

// handleError logs err and writes it as a JSON error envelope.
func (r *Router[U]) handleError(w http.ResponseWriter, req *http.Request, err error) {
	httpErr := response.AsHTTPError(err)

	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", httpErr.StatusCode),
		zap.String("kind", string(httpErr.Kind)),
	}
	if traceID := middleware.GetTraceID(req); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if httpErr.StatusCode >= http.StatusInternalServerError {
		r.logger.Error("Handler error", fields...)
	} else {
		r.logger.Debug("Handler returned client error", fields...)
	}

	if werr := response.Error(w, httpErr); errors.Is(werr, response.ErrResponseSent) {
		r.superfluous(req)
	}
}

func (r *Router[U]) notFound(w http.ResponseWriter, req *http.Request) {
	_ = response.Error(w, response.NewHTTPError(http.StatusNotFound, response.KindRouteNotFound,
		fmt.Sprintf("Cannot %s %s", req.Method, req.URL.Path)))
}

// methodNotAllowed runs after httprouter has set the Allow header.
func (r *Router[U]) methodNotAllowed(w http.ResponseWriter, req *http.Request) {
	_ = response.Error(w, response.NewHTTPError(http.StatusMethodNotAllowed, response.KindMethodNotAllowed,
		fmt.Sprintf("Method %s not allowed on %s", req.Method, req.URL.Path)))
}

// trackInFlight counts requests for Shutdown and rejects new ones once it has started.
func (r *Router[U]) trackInFlight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.shutdownMu.RLock()
		if r.shutdown {
			r.shutdownMu.RUnlock()
			w.Header().Set("Connection", "close")
			_ = response.Error(w, response.NewHTTPError(http.StatusServiceUnavailable, response.KindUnavailable, "Service Unavailable"))
			return
		}
		r.wg.Add(1)
		r.shutdownMu.RUnlock()
		defer r.wg.Done()

		next.ServeHTTP(w, req)
	})
}

// ServeHTTP implements http.Handler. The route tag is attached before any middleware
// runs so that logging and metrics can label requests with the matched pattern.
func (r *Router[U]) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx, _ := common.WithRouteTag(req.Context())
	r.handler.ServeHTTP(w, req.WithContext(ctx))
}

// Shutdown stops accepting new requests and waits for in-flight requests to finish
// or for ctx to be done, whichever comes first.
func (r *Router[U]) Shutdown(ctx context.Context) error {
	r.shutdownMu.Lock()
	r.shutdown = true
	r.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetParams retrieves the httprouter.Params from the request context.
func GetParams(r *http.Request) httprouter.Params {
	params, _ := r.Context().Value(ParamsKey).(httprouter.Params)
	return params
}

// GetParam retrieves a specific parameter from the request context.
// It returns "" if the route has no such parameter.
func GetParam(r *http.Request, name string) string {
	return GetParams(r).ByName(name)
}

// GetUser retrieves the authenticated user from the request context.
func GetUser[U any](r *http.Request) *U {
	return middleware.GetUser[U](r)
}

func (r *Router[U]) getEffectiveTimeout(routeTimeout, subRouterTimeout time.Duration) time.Duration {
	if routeTimeout > 0 {
		return routeTimeout
	}
	if subRouterTimeout > 0 {
		return subRouterTimeout
	}
	return r.config.GlobalTimeout
}

func (r *Router[U]) getEffectiveMaxBodySize(routeMaxBodySize, subRouterMaxBodySize int64) int64 {
	if routeMaxBodySize > 0 {
		return routeMaxBodySize
	}
	if subRouterMaxBodySize > 0 {
		return subRouterMaxBodySize
	}
	return r.config.GlobalMaxBodySize
}

func (r *Router[U]) getEffectiveRateLimit(routeRateLimit, subRouterRateLimit *middleware.RateLimitConfig) *middleware.RateLimitConfig {
	if routeRateLimit != nil {
		return routeRateLimit
	}
	if subRouterRateLimit != nil {
		return subRouterRateLimit
	}
	return r.config.GlobalRateLimit
}
