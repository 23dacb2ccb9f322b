package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Suhaibinator/SBlog/pkg/common"
	"github.com/Suhaibinator/SBlog/pkg/response"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testUser struct {
	Name string
}

func newTestRouter(t *testing.T, config RouterConfig) (*Router[testUser], *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	config.Logger = zap.New(core)
	r, err := NewRouter[testUser](config, func(_ context.Context, token string) (*testUser, error) {
		if token == "valid" {
			return &testUser{Name: "ada"}, nil
		}
		return nil, errors.New("bad token")
	})
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	return r, logs
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func errorKind(t *testing.T, rr *httptest.ResponseRecorder) response.Kind {
	t.Helper()
	var body response.ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode error body %q: %v", rr.Body.String(), err)
	}
	return body.Error.Kind
}

func TestRouteParamsAndJSON(t *testing.T) {
	r, _ := newTestRouter(t, RouterConfig{})
	err := r.Register(RouteConfig{
		Path:    "/blogs/:id",
		Methods: []string{http.MethodGet},
		Handler: func(req *http.Request) (any, error) {
			return "id=" + GetParam(req, "id"), nil
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	rr := serve(r, http.MethodGet, "/blogs/42")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, rr.Code)
	}
	if got := rr.Body.String(); got != `"id=42"` {
		t.Errorf("Expected body %q, got %q", `"id=42"`, got)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
}

func TestSubRouterPrefix(t *testing.T) {
	r, _ := newTestRouter(t, RouterConfig{
		SubRouters: []SubRouterConfig{{
			PathPrefix: "/blogs",
			Routes: []RouteConfig{
				{Path: "/", Methods: []string{http.MethodGet}, Handler: func(req *http.Request) (any, error) {
					return map[string]string{"url": req.URL.String()}, nil
				}},
				{Path: "/:id", Methods: []string{http.MethodGet, http.MethodPost}, Handler: func(req *http.Request) (any, error) {
					return req.Method + " " + GetParam(req, "id"), nil
				}},
			},
		}},
	})

	if rr := serve(r, http.MethodGet, "/blogs/?page=2"); rr.Body.String() != `{"url":"/blogs/?page=2"}` {
		t.Errorf("Unexpected body %q", rr.Body.String())
	}
	if rr := serve(r, http.MethodPost, "/blogs/7"); rr.Body.String() != `"POST 7"` {
		t.Errorf("Unexpected body %q", rr.Body.String())
	}

	expected := []RouteInfo{
		{Method: http.MethodGet, Path: "/blogs/"},
		{Method: http.MethodGet, Path: "/blogs/:id"},
		{Method: http.MethodPost, Path: "/blogs/:id"},
	}
	routes := r.Routes()
	if len(routes) != len(expected) {
		t.Fatalf("Expected %d routes, got %d", len(expected), len(routes))
	}
	for i := range expected {
		if routes[i] != expected[i] {
			t.Errorf("Route %d: expected %+v, got %+v", i, expected[i], routes[i])
		}
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	r, _ := newTestRouter(t, RouterConfig{})
	called := false
	_ = r.Register(RouteConfig{Path: "/blogs/:id", Methods: []string{http.MethodGet, http.MethodPost}, Handler: func(*http.Request) (any, error) {
		called = true
		return nil, nil
	}})

	rr := serve(r, http.MethodGet, "/nothing/here")
	if rr.Code != http.StatusNotFound || errorKind(t, rr) != response.KindRouteNotFound {
		t.Errorf("Expected 404 route_not_found, got %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(r, http.MethodDelete, "/blogs/1")
	if rr.Code != http.StatusMethodNotAllowed || errorKind(t, rr) != response.KindMethodNotAllowed {
		t.Errorf("Expected 405 method_not_allowed, got %d %s", rr.Code, rr.Body.String())
	}
	allow := rr.Header().Get("Allow")
	if !strings.Contains(allow, http.MethodGet) || !strings.Contains(allow, http.MethodPost) {
		t.Errorf("Expected Allow header to list GET and POST, got %q", allow)
	}
	if called {
		t.Error("Expected no handler to run")
	}
}

func TestRegisterErrors(t *testing.T) {
	r, _ := newTestRouter(t, RouterConfig{})
	ok := func(*http.Request) (any, error) { return nil, nil }

	if err := r.Register(RouteConfig{Path: "/blogs/:id", Methods: []string{http.MethodGet}, Handler: ok}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(RouteConfig{Path: "/blogs/:slug", Methods: []string{http.MethodGet}, Handler: ok}); !errors.Is(err, ErrRouteConflict) {
		t.Errorf("Expected ErrRouteConflict for overlapping wildcard, got %v", err)
	}
	if err := r.Register(RouteConfig{Path: "/blogs/:id", Methods: []string{http.MethodGet}, Handler: ok}); !errors.Is(err, ErrRouteConflict) {
		t.Errorf("Expected ErrRouteConflict for duplicate route, got %v", err)
	}
	if err := r.Register(RouteConfig{Path: "/x", Handler: ok}); !errors.Is(err, ErrInvalidRoute) {
		t.Errorf("Expected ErrInvalidRoute without methods, got %v", err)
	}
	if err := r.Register(RouteConfig{Path: "/x", Methods: []string{http.MethodGet}}); !errors.Is(err, ErrInvalidRoute) {
		t.Errorf("Expected ErrInvalidRoute without handler, got %v", err)
	}

	r.Freeze()
	if err := r.Register(RouteConfig{Path: "/late", Methods: []string{http.MethodGet}, Handler: ok}); !errors.Is(err, ErrFrozen) {
		t.Errorf("Expected ErrFrozen, got %v", err)
	}
	if len(r.Routes()) != 1 {
		t.Errorf("Expected 1 route, got %d", len(r.Routes()))
	}
}

func TestHandlerResults(t *testing.T) {
	r, logs := newTestRouter(t, RouterConfig{})
	routes := []RouteConfig{
		{Path: "/created", Methods: []string{http.MethodPost}, Handler: func(*http.Request) (any, error) {
			return &Response{Status: http.StatusCreated, Body: map[string]int{"id": 1}}, nil
		}},
		{Path: "/empty", Methods: []string{http.MethodDelete}, Handler: func(*http.Request) (any, error) {
			return Response{Status: http.StatusNoContent}, nil
		}},
		{Path: "/missing", Methods: []string{http.MethodGet}, Handler: func(*http.Request) (any, error) {
			return nil, NewHTTPError(http.StatusNotFound, response.KindNotFound, "post not found")
		}},
		{Path: "/broken", Methods: []string{http.MethodGet}, Handler: func(*http.Request) (any, error) {
			return nil, errors.New("db password is hunter2")
		}},
	}
	for _, route := range routes {
		if err := r.Register(route); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	rr := serve(r, http.MethodPost, "/created")
	if rr.Code != http.StatusCreated || rr.Body.String() != `{"id":1}` {
		t.Errorf("Unexpected created response %d %q", rr.Code, rr.Body.String())
	}

	rr = serve(r, http.MethodDelete, "/empty")
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Errorf("Unexpected no-content response %d %q", rr.Code, rr.Body.String())
	}

	rr = serve(r, http.MethodGet, "/missing")
	if rr.Code != http.StatusNotFound || errorKind(t, rr) != response.KindNotFound {
		t.Errorf("Unexpected not found response %d %q", rr.Code, rr.Body.String())
	}

	rr = serve(r, http.MethodGet, "/broken")
	if rr.Code != http.StatusInternalServerError || errorKind(t, rr) != response.KindInternal {
		t.Errorf("Unexpected internal error response %d %q", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "hunter2") {
		t.Error("Expected internal error details not to leak")
	}
	if logs.FilterMessage("Handler error").Len() != 1 {
		t.Errorf("Expected one handler error log, got %d", logs.FilterMessage("Handler error").Len())
	}
}

func TestSecondResponseIsRejected(t *testing.T) {
	r, logs := newTestRouter(t, RouterConfig{})
	var secondErr error
	_ = r.Register(RouteConfig{Path: "/twice", Methods: []string{http.MethodGet}, Handler: func(req *http.Request) (any, error) {
		return "third", nil
	}, Middlewares: []Middleware{func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			_ = WriteJSON(w, http.StatusOK, "first")
			secondErr = WriteJSON(w, http.StatusOK, "second")
			next.ServeHTTP(w, req)
		})
	}}})

	rr := serve(r, http.MethodGet, "/twice")
	if rr.Body.String() != `"first"` {
		t.Errorf("Expected only the first response, got %q", rr.Body.String())
	}
	if !errors.Is(secondErr, ErrResponseSent) {
		t.Errorf("Expected ErrResponseSent, got %v", secondErr)
	}
	if logs.FilterMessage("Handler attempted to send more than one response").Len() == 0 {
		t.Error("Expected a log entry for the second response")
	}
}

func TestPanicIsRecovered(t *testing.T) {
	r, logs := newTestRouter(t, RouterConfig{})
	_ = r.Register(RouteConfig{Path: "/panic", Methods: []string{http.MethodGet}, Handler: func(*http.Request) (any, error) {
		panic("boom")
	}})

	rr := serve(r, http.MethodGet, "/panic")
	if rr.Code != http.StatusInternalServerError || errorKind(t, rr) != response.KindInternal {
		t.Errorf("Expected 500 internal, got %d %q", rr.Code, rr.Body.String())
	}
	if logs.FilterMessage("Panic recovered").Len() != 1 {
		t.Error("Expected panic to be logged")
	}
	serverErrors := logs.FilterMessage("Server error").All()
	if len(serverErrors) != 1 {
		t.Fatalf("Expected recovered panic in the access log, got %d entries", len(serverErrors))
	}
	if route := serverErrors[0].ContextMap()["route"]; route != "/panic" {
		t.Errorf("Expected route label /panic, got %v", route)
	}
}

func TestTimeout(t *testing.T) {
	r, _ := newTestRouter(t, RouterConfig{GlobalTimeout: 20 * time.Millisecond})
	_ = r.Register(RouteConfig{Path: "/slow", Methods: []string{http.MethodGet}, Handler: func(*http.Request) (any, error) {
		time.Sleep(200 * time.Millisecond)
		return "late", nil
	}})
	_ = r.Register(RouteConfig{Path: "/fast", Methods: []string{http.MethodGet}, Timeout: time.Second, Handler: func(*http.Request) (any, error) {
		return "fast", nil
	}})

	rr := serve(r, http.MethodGet, "/slow")
	if rr.Code != http.StatusRequestTimeout || errorKind(t, rr) != response.KindTimeout {
		t.Errorf("Expected 408 timeout, got %d %q", rr.Code, rr.Body.String())
	}

	rr = serve(r, http.MethodGet, "/fast")
	if rr.Code != http.StatusOK || rr.Body.String() != `"fast"` {
		t.Errorf("Expected fast response, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestAuthLevels(t *testing.T) {
	r, _ := newTestRouter(t, RouterConfig{})
	handler := func(req *http.Request) (any, error) {
		if u := GetUser[testUser](req); u != nil {
			return u.Name, nil
		}
		return "anonymous", nil
	}
	_ = r.Register(RouteConfig{Path: "/required", Methods: []string{http.MethodGet}, AuthLevel: AuthRequired, Handler: handler})
	_ = r.Register(RouteConfig{Path: "/optional", Methods: []string{http.MethodGet}, AuthLevel: AuthOptional, Handler: handler})

	tests := []struct {
		path   string
		token  string
		status int
		body   string
	}{
		{path: "/required", token: "valid", status: http.StatusOK, body: `"ada"`},
		{path: "/required", token: "", status: http.StatusUnauthorized},
		{path: "/required", token: "forged", status: http.StatusUnauthorized},
		{path: "/optional", token: "valid", status: http.StatusOK, body: `"ada"`},
		{path: "/optional", token: "forged", status: http.StatusOK, body: `"anonymous"`},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.token != "" {
			req.Header.Set("Authorization", "Bearer "+tt.token)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		if rr.Code != tt.status {
			t.Errorf("%s with %q: expected status %d, got %d", tt.path, tt.token, tt.status, rr.Code)
		}
		if tt.body != "" && rr.Body.String() != tt.body {
			t.Errorf("%s with %q: expected body %s, got %s", tt.path, tt.token, tt.body, rr.Body.String())
		}
	}
}

func TestPipelineRunsBeforeRouting(t *testing.T) {
	var order []string
	stage := func(name string, stop bool) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				if stop {
					_ = WriteJSON(w, http.StatusBadRequest, "stopped")
					return
				}
				next.ServeHTTP(w, req)
			})
		}
	}

	r, _ := newTestRouter(t, RouterConfig{Middlewares: []Middleware{stage("a", false), stage("b", false)}})
	_ = r.Register(RouteConfig{Path: "/", Methods: []string{http.MethodGet}, Handler: func(*http.Request) (any, error) {
		order = append(order, "handler")
		return "ok", nil
	}})

	serve(r, http.MethodGet, "/")
	serve(r, http.MethodGet, "/unknown")
	if got := strings.Join(order, ","); got != "a,b,handler,a,b" {
		t.Errorf("Unexpected stage order %q", got)
	}

	order = nil
	r2, _ := newTestRouter(t, RouterConfig{Middlewares: []Middleware{stage("a", true), stage("b", false)}})
	_ = r2.Register(RouteConfig{Path: "/", Methods: []string{http.MethodGet}, Handler: func(*http.Request) (any, error) {
		order = append(order, "handler")
		return "ok", nil
	}})
	rr := serve(r2, http.MethodGet, "/")
	if got := strings.Join(order, ","); got != "a" {
		t.Errorf("Expected short-circuit after a, got %q", got)
	}
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected the stage's response, got %d", rr.Code)
	}
}

func TestRoutePatternIsRecorded(t *testing.T) {
	r, logs := newTestRouter(t, RouterConfig{EnableTraceID: true})
	var pattern string
	_ = r.Register(RouteConfig{Path: "/blogs/:id", Methods: []string{http.MethodGet}, Handler: func(req *http.Request) (any, error) {
		pattern = common.RoutePattern(req)
		return nil, NewHTTPError(http.StatusNotFound, response.KindNotFound, "nope")
	}})

	rr := serve(r, http.MethodGet, "/blogs/9")
	if pattern != "/blogs/:id" {
		t.Errorf("Expected pattern /blogs/:id, got %q", pattern)
	}
	if rr.Header().Get("X-Trace-ID") == "" {
		t.Error("Expected X-Trace-ID header")
	}
	entries := logs.FilterMessage("Client error").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one client error log, got %d", len(entries))
	}
	if entries[0].ContextMap()["route"] != "/blogs/:id" {
		t.Errorf("Expected route field /blogs/:id, got %v", entries[0].ContextMap()["route"])
	}
}

func TestShutdown(t *testing.T) {
	r, _ := newTestRouter(t, RouterConfig{})
	started := make(chan struct{})
	release := make(chan struct{})
	_ = r.Register(RouteConfig{Path: "/wait", Methods: []string{http.MethodGet}, Handler: func(*http.Request) (any, error) {
		close(started)
		<-release
		return "done", nil
	}})

	var wg sync.WaitGroup
	wg.Add(1)
	var inFlight *httptest.ResponseRecorder
	go func() {
		defer wg.Done()
		inFlight = serve(r, http.MethodGet, "/wait")
	}()
	<-started

	expired, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.Shutdown(expired); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded while a request is in flight, got %v", err)
	}

	rr := serve(r, http.MethodGet, "/wait")
	if rr.Code != http.StatusServiceUnavailable || errorKind(t, rr) != response.KindUnavailable {
		t.Errorf("Expected 503 unavailable after shutdown, got %d %q", rr.Code, rr.Body.String())
	}

	close(release)
	if err := r.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected clean shutdown, got %v", err)
	}
	wg.Wait()
	if inFlight.Code != http.StatusOK || inFlight.Body.String() != `"done"` {
		t.Errorf("Expected in-flight request to complete, got %d %q", inFlight.Code, inFlight.Body.String())
	}
}

func TestGetRoutesAnswerHead(t *testing.T) {
	r, _ := newTestRouter(t, RouterConfig{})
	calls := 0
	if err := r.RegisterSubRouter(SubRouterConfig{
		PathPrefix: "/blogs",
		Routes: []RouteConfig{{Path: "/", Methods: []string{http.MethodGet}, Handler: func(*http.Request) (any, error) {
			calls++
			return map[string]string{"message": "hi"}, nil
		}}},
	}); err != nil {
		t.Fatalf("RegisterSubRouter failed: %v", err)
	}

	rr := serve(r, http.MethodHead, "/blogs/")
	if rr.Code != http.StatusOK {
		t.Errorf("Expected HEAD to get %d, got %d", http.StatusOK, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Expected JSON content type on HEAD, got %q", ct)
	}
	if calls != 1 {
		t.Errorf("Expected the GET handler to run once, got %d", calls)
	}

	routes := r.Routes()
	if len(routes) != 1 || routes[0].Method != http.MethodGet {
		t.Errorf("Expected only the declared GET route to be listed, got %v", routes)
	}

	err := r.Register(RouteConfig{Path: "/blogs/", Methods: []string{http.MethodHead}, Handler: func(*http.Request) (any, error) { return nil, nil }})
	if !errors.Is(err, ErrRouteConflict) {
		t.Errorf("Expected explicit HEAD on an implicit HEAD path to conflict, got %v", err)
	}

	if err := r.Register(RouteConfig{Path: "/both", Methods: []string{http.MethodGet, http.MethodHead}, Handler: func(*http.Request) (any, error) { return nil, nil }}); err != nil {
		t.Errorf("Expected a route declaring GET and HEAD to register, got %v", err)
	}
}
