package certs_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/clearance-engine/internal/authority"
	"github.com/rezonia/clearance-engine/internal/certs"
	"github.com/rezonia/clearance-engine/internal/model"
)

func newManager(t *testing.T, handler http.HandlerFunc, opts ...certs.Option) *certs.Manager {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := authority.NewClient(authority.Config{
		BaseURL: srv.URL,
		Logger:  zerolog.Nop(),
	})
	return certs.NewManager(client, zerolog.Nop(), opts...)
}

func certExpiringIn(d time.Duration) *model.Certificate {
	return &model.Certificate{
		CredentialID: "cred-old",
		Secret:       "secret-old",
		Environment:  model.EnvironmentSandbox,
		ExpiresAt:    time.Now().Add(d),
		TenantID:     "tenant-1",
	}
}

func TestRenewIfNeeded_NoOpFarFromExpiry(t *testing.T) {
	m := newManager(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no renewal call expected")
	})

	cert := certExpiringIn(90 * 24 * time.Hour)
	got, err := m.RenewIfNeeded(context.Background(), cert)
	require.NoError(t, err)
	assert.Same(t, cert, got)
}

func TestRenewIfNeeded_RenewsExpiringCertificate(t *testing.T) {
	m := newManager(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, authority.PathCredentialRenewal, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"binarySecurityToken": "bmV3LXRva2Vu", "secret": "new-secret"}`))
	})

	cert := certExpiringIn(10 * 24 * time.Hour)
	renewed, err := m.RenewIfNeeded(context.Background(), cert)
	require.NoError(t, err)

	assert.NotSame(t, cert, renewed)
	assert.Equal(t, "bmV3LXRva2Vu", renewed.CredentialID)
	assert.Equal(t, "new-secret", renewed.Secret)
	assert.True(t, renewed.ExpiresAt.After(cert.ExpiresAt))
	assert.False(t, renewed.RenewedAt.IsZero())

	// Input never mutated
	assert.Equal(t, "cred-old", cert.CredentialID)
}

func TestRenewIfNeeded_RenewalFailureIsFatal(t *testing.T) {
	m := newManager(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := m.RenewIfNeeded(context.Background(), certExpiringIn(5*24*time.Hour))
	require.Error(t, err)

	var certErr *model.CertificateError
	require.ErrorAs(t, err, &certErr)
	assert.Equal(t, model.ErrCodeRenewalFail, certErr.Code)
}

func TestRenewIfNeeded_InvalidEnvironment(t *testing.T) {
	m := newManager(t, func(w http.ResponseWriter, r *http.Request) {})

	cert := certExpiringIn(5 * 24 * time.Hour)
	cert.Environment = "staging"

	_, err := m.RenewIfNeeded(context.Background(), cert)
	require.Error(t, err)

	var certErr *model.CertificateError
	require.ErrorAs(t, err, &certErr)
	assert.Equal(t, model.ErrCodeEnvMismatch, certErr.Code)
}

func TestRenewIfNeeded_CustomThreshold(t *testing.T) {
	m := newManager(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no renewal call expected")
	}, certs.WithThreshold(24*time.Hour))

	cert := certExpiringIn(10 * 24 * time.Hour)
	got, err := m.RenewIfNeeded(context.Background(), cert)
	require.NoError(t, err)
	assert.Same(t, cert, got)
}

func TestParsePrivateKey_Formats(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)})
	pkcs8, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	require.NoError(t, err)
	sec1, err := x509.MarshalECPrivateKey(ecKey)
	require.NoError(t, err)

	for name, data := range map[string]string{
		"pkcs1": string(pkcs1),
		"pkcs8": string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})),
		"sec1":  string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: sec1})),
	} {
		key, err := certs.ParsePrivateKey(data)
		require.NoError(t, err, name)
		require.NotNil(t, key, name)
	}

	_, err = certs.ParsePrivateKey("garbage")
	assert.Error(t, err)
}

func TestStripPEMArmor(t *testing.T) {
	pemData := "-----BEGIN CERTIFICATE-----\nAAAA\nBBBB\n-----END CERTIFICATE-----\n"
	assert.Equal(t, "AAAABBBB", certs.StripPEMArmor(pemData))
}
