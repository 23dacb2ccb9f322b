// Package metrics collects per-request Prometheus metrics and exposes them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Suhaibinator/SBlog/pkg/common"
	"github.com/Suhaibinator/SBlog/pkg/response"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UnmatchedRoute is the route label used for requests no route matched.
const UnmatchedRoute = "unmatched"

// Config configures a Collector.
type Config struct {
	// Namespace prefixes every metric name. Empty means no prefix.
	Namespace string

	// Buckets are the histogram buckets for request durations. Empty means
	// prometheus.DefBuckets.
	Buckets []float64

	// ExcludePaths are request paths that are not measured, such as the scrape endpoint.
	ExcludePaths []string

	// RuntimeCollectors adds the Go runtime and process collectors to the registry.
	RuntimeCollectors bool
}

// Collector owns a dedicated Prometheus registry and the request metrics recorded into it.
type Collector struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	bodySize *prometheus.CounterVec
	exclude  map[string]struct{}
}

// NewCollector creates a Collector and registers its metrics on a fresh registry.
func NewCollector(cfg Config) *Collector {
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   buckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),
		bodySize: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "http_response_bytes_total",
			Help:      "Total bytes written in HTTP response bodies.",
		}, []string{"method", "route"}),
		exclude: make(map[string]struct{}, len(cfg.ExcludePaths)),
	}
	for _, p := range cfg.ExcludePaths {
		c.exclude[p] = struct{}{}
	}

	c.registry.MustRegister(c.requests, c.duration, c.inFlight, c.bodySize)
	if cfg.RuntimeCollectors {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Registry returns the registry the collector records into.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Middleware records request count, latency, in-flight requests and response size.
// The route label is the matched route pattern, so path parameters do not create
// new series.
func (c *Collector) Middleware() common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := c.exclude[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			ctx, tag := common.WithRouteTag(r.Context())
			r = r.WithContext(ctx)
			rw := response.NewWriter(w)

			c.inFlight.Inc()
			start := time.Now()
			defer func() {
				c.inFlight.Dec()

				route := tag.Pattern
				if route == "" {
					route = UnmatchedRoute
				}
				c.requests.WithLabelValues(r.Method, route, strconv.Itoa(rw.Status())).Inc()
				c.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
				c.bodySize.WithLabelValues(r.Method, route).Add(float64(rw.BytesWritten()))
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
