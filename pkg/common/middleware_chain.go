package common

import (
	"net/http"
)

// MiddlewareChain is an ordered list of middleware. The first element is the
// outermost stage and runs first.
type MiddlewareChain []Middleware

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain(middlewares ...Middleware) MiddlewareChain {
	chain := make(MiddlewareChain, 0, len(middlewares))
	for _, m := range middlewares {
		if m != nil {
			chain = append(chain, m)
		}
	}
	return chain
}

// Append returns a new chain with the middlewares added to the end.
// Nil entries are skipped so optional stages can be passed unconditionally.
func (c MiddlewareChain) Append(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, len(c), len(c)+len(middlewares))
	copy(result, c)
	for _, m := range middlewares {
		if m != nil {
			result = append(result, m)
		}
	}
	return result
}

// Prepend returns a new chain with the middlewares added to the beginning.
func (c MiddlewareChain) Prepend(middlewares ...Middleware) MiddlewareChain {
	return NewMiddlewareChain(middlewares...).Append(c...)
}

// Then applies the middleware chain to a handler
func (c MiddlewareChain) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.DefaultServeMux
	}
	for i := len(c) - 1; i >= 0; i-- {
		h = c[i](h)
	}
	return h
}

// ThenFunc is Then for a plain handler function.
func (c MiddlewareChain) ThenFunc(fn http.HandlerFunc) http.Handler {
	return c.Then(fn)
}
