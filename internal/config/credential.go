package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// EnvCredentialProjectID overrides the identity provider project ID.
	EnvCredentialProjectID = "FIREBASE_ADMIN_PROJECT_ID"

	// EnvCredentialPrivateKey overrides the service account private key (PEM).
	// Literal "\n" sequences are turned into newlines.
	EnvCredentialPrivateKey = "FIREBASE_ADMIN_PRIVATE_KEY"

	// EnvCredentialClientEmail overrides the service account client email.
	EnvCredentialClientEmail = "FIREBASE_ADMIN_CLIENT_EMAIL"
)

// ErrMissingCredential is returned when the service account is incomplete and
// the credential is not optional.
var ErrMissingCredential = errors.New("missing service account credential")

// CredentialConfig contains the identity provider service account.
type CredentialConfig struct {
	ProjectID   string `toml:"project_id"`
	PrivateKey  string `toml:"private_key"`
	ClientEmail string `toml:"client_email"`
	TokenTTL    string `toml:"token_ttl"`
	Optional    bool   `toml:"optional"`

	tokenTTL time.Duration
}

// TokenTTLDuration returns the parsed lifetime of issued tokens.
func (c *CredentialConfig) TokenTTLDuration() time.Duration { return c.tokenTTL }

// Configured reports whether all three service account fields are set.
func (c *CredentialConfig) Configured() bool {
	return c.ProjectID != "" && c.PrivateKey != "" && c.ClientEmail != ""
}

// Finalize applies defaults, loads environment overrides, and validates the credential configuration.
func (c *CredentialConfig) Finalize() error {
	if c.TokenTTL == "" {
		c.TokenTTL = "1h"
	}
	envString(EnvCredentialProjectID, &c.ProjectID)
	envString(EnvCredentialPrivateKey, &c.PrivateKey)
	envString(EnvCredentialClientEmail, &c.ClientEmail)
	c.PrivateKey = strings.ReplaceAll(c.PrivateKey, `\n`, "\n")

	var err error
	if c.tokenTTL, err = parseDuration("token_ttl", c.TokenTTL); err != nil {
		return err
	}
	if c.tokenTTL == 0 {
		return fmt.Errorf("invalid token_ttl: must be positive")
	}

	if !c.Configured() && !c.Optional {
		var missing []string
		if c.ProjectID == "" {
			missing = append(missing, EnvCredentialProjectID)
		}
		if c.PrivateKey == "" {
			missing = append(missing, EnvCredentialPrivateKey)
		}
		if c.ClientEmail == "" {
			missing = append(missing, EnvCredentialClientEmail)
		}
		return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}
	return nil
}
