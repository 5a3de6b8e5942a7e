// Package certs manages the signing-certificate lifecycle: parsing the
// credential material and renewing the authority-issued credential ahead
// of expiry.
package certs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/clearance-engine/internal/authority"
	"github.com/rezonia/clearance-engine/internal/model"
)

// DefaultRenewalThreshold is how far ahead of expiry renewal kicks in
const DefaultRenewalThreshold = 30 * 24 * time.Hour

// DefaultRenewalValidity is the validity period assumed for a renewed
// credential when the authority response does not carry one.
const DefaultRenewalValidity = 365 * 24 * time.Hour

// Manager tracks signing-certificate expiry and renews credentials
// through the authority
type Manager struct {
	client    *authority.Client
	threshold time.Duration
	validity  time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithThreshold overrides the renewal threshold
func WithThreshold(d time.Duration) Option {
	return func(m *Manager) {
		m.threshold = d
	}
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a certificate lifecycle manager
func NewManager(client *authority.Client, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		client:    client,
		threshold: DefaultRenewalThreshold,
		validity:  DefaultRenewalValidity,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RenewIfNeeded returns the input certificate unchanged when it is still
// comfortably ahead of expiry, and otherwise performs a renewal exchange
// with the authority. The input is never mutated; a renewed certificate
// is a new value with updated credential identifier, certificate body,
// expiry and renewal timestamp.
func (m *Manager) RenewIfNeeded(ctx context.Context, cert *model.Certificate) (*model.Certificate, error) {
	if cert == nil {
		return nil, model.NewCertificateError(model.ErrCodeCertInvalid, "", "certificate is nil", nil)
	}
	if !cert.Environment.Valid() {
		return nil, model.NewCertificateError(model.ErrCodeEnvMismatch, cert.CredentialID,
			"certificate environment is not one of sandbox, simulation, production", nil)
	}

	if cert.ExpiresAt.Sub(m.now()) > m.threshold {
		return cert, nil
	}

	m.log.Info().
		Str("credential_id", cert.CredentialID).
		Time("expires_at", cert.ExpiresAt).
		Msg("certificate approaching expiry, renewing")

	credential, err := m.client.RenewCredential(ctx, cert, cert.CredentialID)
	if err != nil {
		m.log.Error().Str("credential_id", cert.CredentialID).Err(err).Msg("credential renewal failed")
		return nil, err
	}

	now := m.now()
	renewed := *cert
	renewed.CredentialID = credential.BinarySecurityToken
	renewed.Secret = credential.Secret
	renewed.CertificatePEM = decodeTokenCertificate(credential.BinarySecurityToken, cert.CertificatePEM)
	renewed.RenewedAt = now
	renewed.ExpiresAt = now.Add(m.validity)

	m.log.Info().
		Str("credential_id", renewed.CredentialID).
		Time("expires_at", renewed.ExpiresAt).
		Msg("credential renewed")
	return &renewed, nil
}

// decodeTokenCertificate keeps the previous certificate body when the
// renewed token is not a certificate itself (the authority returns the
// certificate wrapped as a binary security token).
func decodeTokenCertificate(token, previous string) string {
	if token == "" {
		return previous
	}
	return "-----BEGIN CERTIFICATE-----\n" + token + "\n-----END CERTIFICATE-----\n"
}
