// Package credential holds the service account of the identity provider and issues
// and verifies the signed ID tokens used as bearer credentials.
package credential

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/Suhaibinator/SBlog/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	// ErrNotConfigured is returned by a Service without a service account.
	ErrNotConfigured = errors.New("credential: service account not configured")

	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("credential: invalid token")

	// ErrInvalidUID is returned when issuing a token for an empty uid.
	ErrInvalidUID = errors.New("credential: uid must not be empty")
)

// ServiceAccount identifies the service to the identity provider.
type ServiceAccount struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  *rsa.PrivateKey
}

// ParseServiceAccount validates the configured account and parses its PEM private key.
func ParseServiceAccount(cfg config.CredentialConfig) (*ServiceAccount, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &ServiceAccount{
		ProjectID:   cfg.ProjectID,
		ClientEmail: cfg.ClientEmail,
		PrivateKey:  key,
	}, nil
}

// Claims are the claims of an ID token. The subject is the user's uid.
type Claims struct {
	jwt.RegisteredClaims
}

// Principal is the authenticated caller put in the request context.
type Principal struct {
	UID       string
	ExpiresAt time.Time
}

// Service issues and verifies ID tokens signed with the service account key.
// The zero-account Service returned for an optional, unconfigured credential
// rejects every token.
type Service struct {
	account    *ServiceAccount
	defaultTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a Service from configuration. An unconfigured optional credential
// yields a Service that answers every call with ErrNotConfigured.
func NewService(cfg config.CredentialConfig, logger *zap.Logger) (*Service, error) {
	s := &Service{
		defaultTTL: cfg.TokenTTLDuration(),
		logger:     logger,
		now:        time.Now,
	}
	if s.defaultTTL <= 0 {
		s.defaultTTL = time.Hour
	}

	if !cfg.Configured() && cfg.Optional {
		logger.Warn("Service account not configured, token verification disabled")
		return s, nil
	}

	account, err := ParseServiceAccount(cfg)
	if err != nil {
		return nil, err
	}
	s.account = account
	logger.Info("Service account loaded",
		zap.String("project_id", account.ProjectID),
		zap.String("client_email", account.ClientEmail),
	)
	return s, nil
}

// Configured reports whether the Service has a service account.
func (s *Service) Configured() bool {
	return s.account != nil
}

// Issue signs a token for uid that expires after ttl, or after the configured
// default when ttl is zero.
func (s *Service) Issue(uid string, ttl time.Duration) (string, error) {
	if s.account == nil {
		return "", ErrNotConfigured
	}
	if uid == "" {
		return "", ErrInvalidUID
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.account.ClientEmail,
			Audience:  jwt.ClaimStrings{s.account.ProjectID},
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.account.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks the token's signature, issuer, audience and lifetime and returns its claims.
func (s *Service) Verify(ctx context.Context, token string) (*Claims, error) {
	if s.account == nil {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return &s.account.PrivateKey.PublicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.account.ClientEmail),
		jwt.WithAudience(s.account.ProjectID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// Authenticate verifies token and returns the caller. It has the shape of a
// bearer token authenticator for the router.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	p := &Principal{UID: claims.Subject}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}
