package common

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

// recordingMiddleware appends before/after markers for name to order.
func recordingMiddleware(name string, order *[]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*order = append(*order, name+"-before")
			next.ServeHTTP(w, r)
			*order = append(*order, name+"-after")
		})
	}
}

func TestMiddlewareChainOrder(t *testing.T) {
	var order []string

	chain := NewMiddlewareChain(recordingMiddleware("security", &order))
	chain = chain.Append(recordingMiddleware("body", &order), recordingMiddleware("cors", &order))

	handler := chain.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/blogs/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	expected := []string{
		"security-before",
		"body-before",
		"cors-before",
		"handler",
		"cors-after",
		"body-after",
		"security-after",
	}
	if !reflect.DeepEqual(order, expected) {
		t.Errorf("Expected order %v, got %v", expected, order)
	}
}

func TestMiddlewareChainShortCircuit(t *testing.T) {
	handlerCalled := false

	// A stage that terminates the request must prevent later stages and the handler from running
	stop := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})
	}
	laterCalled := false
	later := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			laterCalled = true
			next.ServeHTTP(w, r)
		})
	}

	handler := NewMiddlewareChain(stop, later).ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/blogs/1", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, w.Code)
	}
	if laterCalled || handlerCalled {
		t.Errorf("Expected later stage and handler to be skipped, got later=%v handler=%v", laterCalled, handlerCalled)
	}
}

func TestMiddlewareChainPrependDoesNotMutate(t *testing.T) {
	var order []string

	base := NewMiddlewareChain(recordingMiddleware("b", &order))
	prepended := base.Prepend(recordingMiddleware("a", &order))
	appended := base.Append(recordingMiddleware("c", &order))

	if len(base) != 1 {
		t.Fatalf("Expected base chain to keep 1 middleware, got %d", len(base))
	}
	if len(prepended) != 2 || len(appended) != 2 {
		t.Fatalf("Expected derived chains of length 2, got %d and %d", len(prepended), len(appended))
	}

	prepended.ThenFunc(func(w http.ResponseWriter, r *http.Request) {}).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	expected := []string{"a-before", "b-before", "b-after", "a-after"}
	if !reflect.DeepEqual(order, expected) {
		t.Errorf("Expected order %v, got %v", expected, order)
	}
}

func TestMiddlewareChainSkipsNil(t *testing.T) {
	chain := NewMiddlewareChain(nil).Append(nil, func(next http.Handler) http.Handler { return next })
	if len(chain) != 1 {
		t.Fatalf("Expected nil middlewares to be dropped, got chain of length %d", len(chain))
	}

	w := httptest.NewRecorder()
	chain.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Body.String() != "OK" {
		t.Errorf("Expected body %q, got %q", "OK", w.Body.String())
	}
}

func TestRouteTag(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/blogs/42", nil)

	// Without a tag nothing is recorded
	SetRoutePattern(req, "/blogs/:id")
	if got := RoutePattern(req); got != "" {
		t.Errorf("Expected empty pattern without tag, got %q", got)
	}

	ctx, tag := WithRouteTag(req.Context())
	req = req.WithContext(ctx)
	SetRoutePattern(req, "/blogs/:id")

	if tag.Pattern != "/blogs/:id" {
		t.Errorf("Expected tag pattern %q, got %q", "/blogs/:id", tag.Pattern)
	}
	if got := RoutePattern(req); got != "/blogs/:id" {
		t.Errorf("Expected RoutePattern %q, got %q", "/blogs/:id", got)
	}

	if _, again := WithRouteTag(ctx); again != tag {
		t.Error("Expected WithRouteTag to reuse the existing tag")
	}
}
