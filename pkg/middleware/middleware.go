// Package middleware provides the HTTP middleware stages used by the SBlog router:
// security headers, body parsing, CORS, recovery, logging, timeouts, rate limiting
// and authentication.
package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Suhaibinator/SBlog/pkg/common"
	"github.com/Suhaibinator/SBlog/pkg/response"
	"go.uber.org/zap"
)

// Middleware is an alias for common.Middleware.
type Middleware = common.Middleware

// Recovery recovers from panics anywhere below it, logs the panic with its stack,
// and answers with a 500 JSON error if no response has been started yet.
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("trace_id", GetTraceID(r)),
				)

				err := response.Wrap(fmt.Errorf("panic: %v", rec), http.StatusInternalServerError, response.KindInternal, "Internal Server Error")
				if writeErr := response.Error(w, err); writeErr != nil {
					logger.Error("Failed to write panic response",
						zap.Error(writeErr),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Logging logs every request once it has been handled.
// Server errors are logged at Error level, client errors and slow requests at Warn,
// everything else at Debug.
func Logging(logger *zap.Logger, slowThreshold time.Duration) Middleware {
	if slowThreshold <= 0 {
		slowThreshold = time.Second
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := response.NewWriter(w)

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", common.RoutePattern(r)),
				zap.Int("status", rw.Status()),
				zap.Duration("duration", duration),
				zap.Int64("bytes", rw.BytesWritten()),
			}
			if traceID := GetTraceID(r); traceID != "" {
				fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
			}
			if ip := ClientIP(r); ip != "" {
				fields = append(fields, zap.String("client_ip", ip))
			}

			switch {
			case rw.Status() >= 500:
				logger.Error("Server error", fields...)
			case rw.Status() >= 400:
				logger.Warn("Client error", fields...)
			case duration > slowThreshold:
				logger.Warn("Slow request", fields...)
			default:
				logger.Debug("Request", fields...)
			}

			if n := rw.Superfluous(); n > 0 {
				logger.Error("Handler attempted to send more than one response",
					append(fields, zap.Int("superfluous_writes", n))...)
			}
		})
	}
}

// MaxBodySize is a middleware that limits the size of the request body
func MaxBodySize(maxSize int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxSize > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout bounds the time a handler may take. The handler runs on its own goroutine
// with a derived context; its output is buffered and copied to the client only if it
// finishes in time. On expiry the client receives a 408 JSON error and any later
// writes from the handler fail with http.ErrHandlerTimeout. A panic in the handler is
// re-raised on the serving goroutine so Recovery still sees it; a panic after expiry
// is logged here.
func Timeout(timeout time.Duration, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)

			tw := &timeoutWriter{header: w.Header().Clone()}

			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					rec := recover()
					if rec == nil {
						return
					}
					tw.mu.Lock()
					defer tw.mu.Unlock()
					if !tw.timedOut {
						panicked <- rec
						return
					}
					logger.Error("Panic recovered after timeout",
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("trace_id", GetTraceID(r)),
					)
				}()
				next.ServeHTTP(tw, r)
				close(done)
			}()

			select {
			case rec := <-panicked:
				panic(rec)
			case <-done:
				tw.mu.Lock()
				defer tw.mu.Unlock()
				dst := w.Header()
				for k, v := range tw.header {
					dst[k] = v
				}
				if !tw.wroteHeader {
					return
				}
				w.WriteHeader(tw.code)
				_, _ = w.Write(tw.buf.Bytes())
			case <-ctx.Done():
				tw.mu.Lock()
				tw.timedOut = true
				tw.mu.Unlock()

				select {
				case rec := <-panicked:
					panic(rec)
				default:
				}

				logger.Error("Request timed out",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("timeout", timeout),
					zap.String("trace_id", GetTraceID(r)),
				)
				_ = response.Error(w, response.NewHTTPError(http.StatusRequestTimeout, response.KindTimeout, "Request Timeout"))
			}
		})
	}
}

// timeoutWriter buffers a handler's response until Timeout decides whether to send it.
type timeoutWriter struct {
	mu          sync.Mutex
	header      http.Header
	buf         bytes.Buffer
	code        int
	wroteHeader bool
	timedOut    bool
}

// Header returns the buffered header map.
func (tw *timeoutWriter) Header() http.Header {
	return tw.header
}

// WriteHeader records the status code once.
func (tw *timeoutWriter) WriteHeader(statusCode int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.wroteHeader = true
	tw.code = statusCode
}

// Write buffers the body, or fails once the deadline has passed.
func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.wroteHeader = true
		tw.code = http.StatusOK
	}
	return tw.buf.Write(b)
}

// Written reports whether a response was started or the deadline passed.
func (tw *timeoutWriter) Written() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.wroteHeader || tw.timedOut
}
