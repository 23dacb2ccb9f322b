// Package common provides shared types used across the SBlog packages.
package common

import (
	"context"
	"net/http"
)

// Middleware is a function that wraps an http.Handler.
// A stage either writes a response and returns, or calls the next handler.
type Middleware func(http.Handler) http.Handler

// RouteTag records which route pattern served a request.
// The router fills it in after matching; outer middleware (metrics, access logs)
// read it once the request has been handled.
type RouteTag struct {
	Pattern string
}

type routeTagKey struct{}

// WithRouteTag attaches an empty RouteTag to the context and returns both.
// If the context already carries one, it is returned unchanged.
func WithRouteTag(ctx context.Context) (context.Context, *RouteTag) {
	if tag, ok := ctx.Value(routeTagKey{}).(*RouteTag); ok {
		return ctx, tag
	}
	tag := &RouteTag{}
	return context.WithValue(ctx, routeTagKey{}, tag), tag
}

// SetRoutePattern stores the matched pattern on the request's RouteTag, if any.
func SetRoutePattern(r *http.Request, pattern string) {
	if tag, ok := r.Context().Value(routeTagKey{}).(*RouteTag); ok {
		tag.Pattern = pattern
	}
}

// RoutePattern returns the matched route pattern, or "" if the request was not routed.
func RoutePattern(r *http.Request) string {
	if tag, ok := r.Context().Value(routeTagKey{}).(*RouteTag); ok {
		return tag.Pattern
	}
	return ""
}
