// Package response provides the JSON response helpers, the error envelope, and
// the response writer that enforces one response per request.
package response

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable, machine-readable error classification.
type Kind string

// Error kinds returned in the "kind" field of every error body.
const (
	KindMalformedBody    Kind = "malformed_body"
	KindBodyTooLarge     Kind = "body_too_large"
	KindRouteNotFound    Kind = "route_not_found"
	KindMethodNotAllowed Kind = "method_not_allowed"
	KindOriginNotAllowed Kind = "origin_not_allowed"
	KindUnauthorized     Kind = "unauthorized"
	KindRateLimited      Kind = "rate_limited"
	KindTimeout          Kind = "timeout"
	KindUnavailable      Kind = "unavailable"
	KindNotFound         Kind = "not_found"
	KindValidationFailed Kind = "validation_failed"
	KindInternal         Kind = "internal"
)

// HTTPError represents an HTTP error with a status code, kind and message.
// When returned from a handler, the router uses the status code and kind
// to build the error response.
type HTTPError struct {
	StatusCode int                 // HTTP status code (e.g., 400, 404, 500)
	Kind       Kind                // Stable error kind
	Message    string              // Error message sent to the client
	Fields     map[string][]string // Per-field messages for validation errors
	Err        error               // Underlying cause, never sent to the client
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %s: %v", e.StatusCode, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTPError.
func NewHTTPError(statusCode int, kind Kind, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Kind:       kind,
		Message:    message,
	}
}

// Wrap creates an HTTPError that keeps err as its cause.
func Wrap(err error, statusCode int, kind Kind, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Kind:       kind,
		Message:    message,
		Err:        err,
	}
}

// AsHTTPError classifies err. Errors that are not an *HTTPError become 500 internal.
func AsHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return Wrap(err, http.StatusInternalServerError, KindInternal, "Internal Server Error")
}

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the content of ErrorBody.
type ErrorDetail struct {
	Kind    Kind                `json:"kind"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// Body returns the envelope written to the client for this error.
func (e *HTTPError) Body() ErrorBody {
	return ErrorBody{Error: ErrorDetail{Kind: e.Kind, Message: e.Message, Fields: e.Fields}}
}
