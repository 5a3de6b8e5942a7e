package model

import (
	"encoding/base64"
	"time"
)

// Environment represents the authority environment a credential is bound to.
// Environments are mutually exclusive; a submission never mixes them.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentSimulation Environment = "simulation"
	EnvironmentProduction Environment = "production"
)

// Valid reports whether the environment is a known one
func (e Environment) Valid() bool {
	switch e {
	case EnvironmentSandbox, EnvironmentSimulation, EnvironmentProduction:
		return true
	}
	return false
}

// Certificate represents an authority-issued signing credential (CSID)
type Certificate struct {
	// Authority-issued credential identifier
	CredentialID string `json:"credential_id"`

	// Credential secret used together with the identifier for Basic auth
	Secret string `json:"-"`

	// PEM-encoded private key and public certificate. Never written to logs.
	PrivateKeyPEM  string `json:"-"`
	CertificatePEM string `json:"-"`

	Environment Environment `json:"environment"`
	ExpiresAt   time.Time   `json:"expires_at"`
	RenewedAt   time.Time   `json:"renewed_at,omitempty"`
	TenantID    string      `json:"tenant_id"`
}

// ExpiresWithin reports whether the certificate expires within d from now
func (c *Certificate) ExpiresWithin(d time.Duration) bool {
	return time.Until(c.ExpiresAt) <= d
}

// Expired reports whether the certificate has already expired
func (c *Certificate) Expired() bool {
	return time.Now().After(c.ExpiresAt)
}

// BasicAuth returns the Authorization header value for the credential
func (c *Certificate) BasicAuth() string {
	token := base64.StdEncoding.EncodeToString([]byte(c.CredentialID + ":" + c.Secret))
	return "Basic " + token
}
