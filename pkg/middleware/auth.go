package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/Suhaibinator/SBlog/pkg/response"
	"go.uber.org/zap"
)

// ErrNoCredentials is returned when a request carries no usable credentials.
var ErrNoCredentials = errors.New("no credentials")

// AuthProvider defines an interface for authentication providers that only answer yes or no.
type AuthProvider interface {
	// Authenticate returns true if the request carries valid credentials.
	Authenticate(r *http.Request) bool
}

// BasicAuthProvider provides HTTP Basic Authentication against a fixed credential map.
type BasicAuthProvider struct {
	Credentials map[string]string // username -> password
}

// Authenticate authenticates a request using HTTP Basic Authentication.
func (p *BasicAuthProvider) Authenticate(r *http.Request) bool {
	username, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	expected, exists := p.Credentials[username]
	if !exists {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(expected)) == 1
}

// AuthenticationWithProvider rejects requests the provider does not authenticate
// with a 401 JSON error.
func AuthenticationWithProvider(provider AuthProvider, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !provider.Authenticate(r) {
				logger.Warn("Authentication failed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("client_ip", ClientIP(r)),
				)
				if _, isBasic := provider.(*BasicAuthProvider); isBasic {
					w.Header().Set("WWW-Authenticate", `Basic realm="restricted"`)
				}
				_ = response.Error(w, response.NewHTTPError(http.StatusUnauthorized, response.KindUnauthorized, "Unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewBasicAuthMiddleware creates a middleware that uses HTTP Basic Authentication.
func NewBasicAuthMiddleware(credentials map[string]string, logger *zap.Logger) Middleware {
	return AuthenticationWithProvider(&BasicAuthProvider{Credentials: credentials}, logger)
}

// TokenAuthenticator resolves a bearer token to a user.
type TokenAuthenticator[U any] func(ctx context.Context, token string) (*U, error)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type userKey[U any] struct{}

func withUser[U any](r *http.Request, user *U) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userKey[U]{}, user))
}

// GetUser retrieves the authenticated user from the request context.
// Returns nil if the request was not authenticated.
func GetUser[U any](r *http.Request) *U {
	user, _ := r.Context().Value(userKey[U]{}).(*U)
	return user
}

func authenticateBearer[U any](r *http.Request, authenticate TokenAuthenticator[U]) (*U, error) {
	token, ok := BearerToken(r)
	if !ok {
		return nil, ErrNoCredentials
	}
	user, err := authenticate(r.Context(), token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNoCredentials
	}
	return user, nil
}

// AuthRequired rejects requests without a valid bearer token with 401 and stores the
// authenticated user in the context otherwise.
func AuthRequired[U any](authenticate TokenAuthenticator[U], logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authenticate == nil {
				logger.Error("Authentication required but no authenticator is configured",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				_ = response.Error(w, response.NewHTTPError(http.StatusUnauthorized, response.KindUnauthorized, "Unauthorized"))
				return
			}

			user, err := authenticateBearer(r, authenticate)
			if err != nil {
				logger.Warn("Authentication failed",
					zap.Error(err),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("client_ip", ClientIP(r)),
					zap.String("trace_id", GetTraceID(r)),
				)
				w.Header().Set("WWW-Authenticate", "Bearer")
				_ = response.Error(w, response.Wrap(err, http.StatusUnauthorized, response.KindUnauthorized, "Unauthorized"))
				return
			}

			logger.Debug("Authentication successful",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, withUser(r, user))
		})
	}
}

// AuthOptional authenticates the request when a bearer token is present but lets it
// through either way.
func AuthOptional[U any](authenticate TokenAuthenticator[U], logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authenticate != nil {
				if user, err := authenticateBearer(r, authenticate); err == nil {
					r = withUser(r, user)
				} else if !errors.Is(err, ErrNoCredentials) {
					logger.Debug("Optional authentication failed",
						zap.Error(err),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
