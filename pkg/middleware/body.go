package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/Suhaibinator/SBlog/pkg/codec"
	"github.com/Suhaibinator/SBlog/pkg/response"
	"go.uber.org/zap"
)

// DefaultBodyLimit is the largest body BodyParser accepts when no limit is configured.
const DefaultBodyLimit int64 = 100 << 10

// BodyConfig configures BodyParser.
type BodyConfig struct {
	// Limit is the maximum body size in bytes. Zero means DefaultBodyLimit.
	Limit int64

	// DisableForm turns off application/x-www-form-urlencoded parsing.
	DisableForm bool
}

type bodyKey struct{}

// bodyKind identifies which parser handles a content type.
type bodyKind int

const (
	bodyUnsupported bodyKind = iota
	bodyJSON
	bodyForm
)

func classifyContentType(header string, formEnabled bool) bodyKind {
	if header == "" {
		return bodyUnsupported
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return bodyUnsupported
	}
	switch {
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return bodyJSON
	case formEnabled && mediaType == "application/x-www-form-urlencoded":
		return bodyForm
	default:
		return bodyUnsupported
	}
}

// BodyParser parses JSON and URL-encoded request bodies and attaches the result to
// the request context, where GetBody retrieves it. Requests without a body, or with a
// content type it does not handle, get an empty object. A malformed body is answered
// with 400 and an oversized one with 413; in both cases the rest of the chain is skipped.
func BodyParser(cfg BodyConfig, logger *zap.Logger) Middleware {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			kind := classifyContentType(r.Header.Get("Content-Type"), !cfg.DisableForm)
			if kind == bodyUnsupported || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, withBody(r, map[string]any{}))
				return
			}

			if r.ContentLength > limit {
				rejectBody(w, r, logger, response.NewHTTPError(http.StatusRequestEntityTooLarge, response.KindBodyTooLarge, "Request body too large"))
				return
			}

			data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
			_ = r.Body.Close()
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					rejectBody(w, r, logger, response.Wrap(err, http.StatusRequestEntityTooLarge, response.KindBodyTooLarge, "Request body too large"))
					return
				}
				rejectBody(w, r, logger, response.Wrap(err, http.StatusBadRequest, response.KindMalformedBody, "Failed to read request body"))
				return
			}
			if int64(len(data)) > limit {
				rejectBody(w, r, logger, response.NewHTTPError(http.StatusRequestEntityTooLarge, response.KindBodyTooLarge, "Request body too large"))
				return
			}

			// Downstream handlers may still read the raw bytes
			r.Body = io.NopCloser(bytes.NewReader(data))

			if len(bytes.TrimSpace(data)) == 0 {
				next.ServeHTTP(w, withBody(r, map[string]any{}))
				return
			}

			var parsed any
			switch kind {
			case bodyJSON:
				parsed, err = codec.ParseStrict(data)
			case bodyForm:
				parsed, err = parseForm(data)
			}
			if err != nil {
				rejectBody(w, r, logger, response.Wrap(err, http.StatusBadRequest, response.KindMalformedBody, "Malformed request body: "+err.Error()))
				return
			}

			next.ServeHTTP(w, withBody(r, parsed))
		})
	}
}

func rejectBody(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err *response.HTTPError) {
	logger.Warn("Rejected request body",
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("content_type", r.Header.Get("Content-Type")),
		zap.String("trace_id", GetTraceID(r)),
	)
	_ = response.Error(w, err)
}

// parseForm turns a URL-encoded body into an object. Keys that appear once map to a
// string, repeated keys map to a []string.
func parseForm(data []byte) (map[string]any, error) {
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	result := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			result[k] = v[0]
			continue
		}
		result[k] = v
	}
	return result, nil
}

func withBody(r *http.Request, body any) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), bodyKey{}, body))
}

// GetBody returns the parsed request body: a map[string]any or []any for JSON,
// a map[string]any for forms, or an empty object. It returns nil if BodyParser did
// not run for this request.
func GetBody(r *http.Request) any {
	return r.Context().Value(bodyKey{})
}

// GetBodyObject returns the parsed body if it is a JSON object or a form.
func GetBodyObject(r *http.Request) (map[string]any, bool) {
	m, ok := GetBody(r).(map[string]any)
	return m, ok
}
