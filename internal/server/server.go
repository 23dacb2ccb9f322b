// Package server composes the middleware pipeline, the routes and the HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Suhaibinator/SBlog/internal/blogs"
	"github.com/Suhaibinator/SBlog/internal/config"
	"github.com/Suhaibinator/SBlog/internal/credential"
	"github.com/Suhaibinator/SBlog/internal/posts"
	"github.com/Suhaibinator/SBlog/pkg/common"
	"github.com/Suhaibinator/SBlog/pkg/metrics"
	"github.com/Suhaibinator/SBlog/pkg/middleware"
	"github.com/Suhaibinator/SBlog/pkg/router"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultEnvironment is reported by the root route when NODE_ENV is not set.
const DefaultEnvironment = "not yet set"

// Server is the blog API server.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	router   *router.Router[credential.Principal]
	metrics  *metrics.Collector
	http     *http.Server
	listener net.Listener
	serveErr chan error
}

// New builds the router with every route registered and freezes it. creds may be nil,
// in which case routes that require authentication answer 401.
func New(cfg *config.Config, logger *zap.Logger, creds *credential.Service, store posts.Store) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	var authenticate middleware.TokenAuthenticator[credential.Principal]
	if creds != nil && creds.Configured() {
		authenticate = creds.Authenticate
	} else if cfg.Posts.RequireAuth {
		logger.Warn("Posts require authentication but no service account is configured; writes will be rejected")
	}

	if cfg.Metrics.Enabled {
		s.metrics = metrics.NewCollector(metrics.Config{
			Namespace:         cfg.Metrics.Namespace,
			ExcludePaths:      []string{cfg.Metrics.Path},
			RuntimeCollectors: cfg.Metrics.RuntimeCollectors,
		})
	}

	rc := router.RouterConfig{
		Logger:               logger,
		GlobalTimeout:        cfg.Router.GlobalTimeoutDuration(),
		GlobalMaxBodySize:    cfg.Router.GlobalMaxBodySize,
		EnableTraceID:        cfg.Router.TraceIDsEnabled(),
		SlowRequestThreshold: cfg.Router.SlowRequestThresholdDuration(),
		IPConfig: &middleware.IPConfig{
			Source:     middleware.IPSourceType(cfg.Router.IPSource),
			TrustProxy: cfg.Router.TrustProxy,
		},
		Metrics:     s.metrics,
		Middlewares: Pipeline(cfg, logger),
		SubRouters: []router.SubRouterConfig{
			blogs.NewHandler(logger).Routes(),
			posts.NewHandler(store, logger).WithAuthor(callerUID).Routes(cfg.Posts.RequireAuth),
		},
	}
	if cfg.RateLimit.Enabled {
		rc.GlobalRateLimit = &middleware.RateLimitConfig{
			BucketName: "global",
			Limit:      cfg.RateLimit.Limit,
			Window:     cfg.RateLimit.WindowDuration(),
			Smooth:     cfg.RateLimit.Smooth,
		}
	}

	r, err := router.NewRouter(rc, authenticate)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}
	s.router = r

	if err := r.Register(router.RouteConfig{
		Path:    "/",
		Methods: []string{http.MethodGet},
		Handler: s.hello,
	}); err != nil {
		return nil, fmt.Errorf("register root route: %w", err)
	}

	if s.metrics != nil {
		route := router.RouteConfig{
			Path:    cfg.Metrics.Path,
			Methods: []string{http.MethodGet},
			Raw:     s.metrics.Handler(),
		}
		if cfg.Metrics.Username != "" {
			route.Middlewares = []router.Middleware{
				middleware.NewBasicAuthMiddleware(map[string]string{cfg.Metrics.Username: cfg.Metrics.Password}, logger),
			}
		}
		if err := r.Register(route); err != nil {
			return nil, fmt.Errorf("register metrics route: %w", err)
		}
	}

	r.Freeze()
	return s, nil
}

// Pipeline returns the stages every request passes before routing: security headers,
// body parsing, then CORS.
func Pipeline(cfg *config.Config, logger *zap.Logger) []common.Middleware {
	return []common.Middleware{
		middleware.SecurityHeaders(middleware.SecurityConfig{
			ContentSecurityPolicy: cfg.Security.ContentSecurityPolicy,
			FrameOptions:          cfg.Security.FrameOptions,
			ReferrerPolicy:        cfg.Security.ReferrerPolicy,
			HSTSMaxAge:            cfg.Security.HSTSMaxAge,
			Extra:                 cfg.Security.Extra,
		}),
		middleware.BodyParser(middleware.BodyConfig{
			Limit:       cfg.Body.Limit,
			DisableForm: cfg.Body.DisableForm,
		}, logger),
		middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:       cfg.CORS.Origins,
			AllowedMethods:       cfg.CORS.AllowedMethods,
			AllowedHeaders:       cfg.CORS.AllowedHeaders,
			ExposedHeaders:       cfg.CORS.ExposedHeaders,
			AllowCredentials:     cfg.CORS.AllowCredentials,
			MaxAge:               cfg.CORS.MaxAge,
			OptionsSuccessStatus: cfg.CORS.OptionsSuccessStatus,
			Strict:               cfg.CORS.Strict,
		}, logger),
	}
}

// callerUID names the authenticated caller, or "" for anonymous requests.
func callerUID(r *http.Request) string {
	if p := router.GetUser[credential.Principal](r); p != nil {
		return p.UID
	}
	return ""
}

// RegisterCollector adds c to the metrics registry. It is a no-op when metrics are
// disabled.
func (s *Server) RegisterCollector(c prometheus.Collector) error {
	if s.metrics == nil {
		return nil
	}
	if err := s.metrics.Registry().Register(c); err != nil {
		return fmt.Errorf("register collector: %w", err)
	}
	return nil
}

// hello answers the root route with the deployment environment.
func (s *Server) hello(r *http.Request) (any, error) {
	s.logger.Info("API homepage received a request",
		zap.String("client_ip", middleware.ClientIP(r)),
		zap.String("trace_id", middleware.GetTraceID(r)),
	)
	env := s.cfg.Server.Environment
	if env == "" {
		env = DefaultEnvironment
	}
	return map[string]string{"message": fmt.Sprintf("Hello %s world!", env)}, nil
}

// Handler returns the server's root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Routes returns the registered routes.
func (s *Server) Routes() []router.RouteInfo {
	return s.router.Routes()
}

// Start binds the listener and serves in the background. Port 0 picks a free port;
// Addr reports the bound address.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Server.Addr(), err)
	}
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.Server.ReadTimeoutDuration(),
		ReadHeaderTimeout: s.cfg.Server.ReadTimeoutDuration(),
		WriteTimeout:      s.cfg.Server.WriteTimeoutDuration(),
		IdleTimeout:       s.cfg.Server.IdleTimeoutDuration(),
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
	}
	s.serveErr = make(chan error, 1)

	s.logger.Info("Server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("routes", len(s.router.Routes())),
	)
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.serveErr <- err
		}
		close(s.serveErr)
	}()
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts the server and blocks until ctx is done or serving fails, then shuts
// down within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	select {
	case err := <-s.serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests and waits for in-flight ones to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.router.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain router: %w", err))
	}
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) shutdownTimeout() time.Duration {
	if d := s.cfg.Server.ShutdownTimeoutDuration(); d > 0 {
		return d
	}
	return 30 * time.Second
}
