package middleware

import (
	"context"
	"net/http"

	"github.com/Suhaibinator/SBlog/pkg/common"
	"github.com/google/uuid"
)

const (
	// TraceIDHeader is the response header carrying the request's trace ID.
	TraceIDHeader = "X-Trace-ID"

	// RequestIDHeader is an inbound header whose value is reused as the trace ID.
	RequestIDHeader = "X-Request-ID"

	maxInboundIDLength = 128
)

type traceIDKey struct{}

// TraceIDKey is the key used to store the trace ID in the request context
var TraceIDKey = traceIDKey{}

// TraceMiddleware assigns every request a trace ID, stores it in the request context
// and echoes it in the X-Trace-ID response header. A well-formed inbound X-Request-ID
// is reused; otherwise a new UUID is generated.
func TraceMiddleware() common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(RequestIDHeader)
			if !validInboundID(traceID) {
				traceID = uuid.New().String()
			}

			w.Header().Set(TraceIDHeader, traceID)
			ctx := context.WithValue(r.Context(), TraceIDKey, traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validInboundID accepts short IDs made of printable ASCII without spaces.
func validInboundID(id string) bool {
	if id == "" || len(id) > maxInboundIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

// GetTraceID extracts the trace ID from the request context.
// Returns an empty string if no trace ID is found.
func GetTraceID(r *http.Request) string {
	return GetTraceIDFromContext(r.Context())
}

// GetTraceIDFromContext extracts the trace ID from a context.
// Returns an empty string if no trace ID is found.
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}
