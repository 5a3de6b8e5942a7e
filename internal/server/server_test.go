package server_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/clearance-engine/internal/model"
	"github.com/rezonia/clearance-engine/internal/qr"
	"github.com/rezonia/clearance-engine/internal/server"
)

func testCertificate(t *testing.T) *model.Certificate {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Rezonia Trading Co"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	return &model.Certificate{
		CredentialID:   "cred-1",
		Secret:         "secret-1",
		PrivateKeyPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})),
		CertificatePEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		Environment:    model.EnvironmentSandbox,
		ExpiresAt:      time.Now().Add(365 * 24 * time.Hour),
	}
}

func validInvoice() *model.Invoice {
	return &model.Invoice{
		Number:    "INV-0001",
		Type:      model.InvoiceTypeStandard,
		IssueDate: "2026-08-15",
		IssueTime: "14:30:00",
		Seller: model.Party{
			Name:      "Rezonia Trading Co",
			VATNumber: "310122393500003",
			Address:   model.Address{City: "Riyadh", PostalCode: "12211", CountryCode: "SA"},
		},
		Buyer: model.Party{Name: "Acme LLC", VATNumber: "311111111100003"},
		Items: []model.LineItem{
			{
				ID:          "1",
				Description: "Consulting services",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.NewFromFloat(100.00),
				VATRate:     model.VATRate15,
				VATAmount:   decimal.NewFromFloat(15.00),
				Total:       decimal.NewFromFloat(100.00),
			},
		},
		Subtotal:  decimal.NewFromFloat(100.00),
		VATAmount: decimal.NewFromFloat(15.00),
		Total:     decimal.NewFromFloat(115.00),
	}
}

func newTestServer(t *testing.T, authorityURL string) *server.Server {
	t.Helper()
	config := &server.Config{
		Address:      ":8080",
		AuthorityURL: authorityURL,
		Certificate:  testCertificate(t),
		Debug:        true,
		Logger:       zerolog.Nop(),
	}
	return server.NewServer(config)
}

func postJSON(t *testing.T, srv *server.Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, response["time"])
}

func TestValidateEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	w := postJSON(t, srv, "/api/v1/invoices/validate", server.InvoiceRequest{Invoice: validInvoice()})

	assert.Equal(t, http.StatusOK, w.Code)

	var response server.ValidationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Valid)
	assert.Empty(t, response.Errors)
}

func TestValidateEndpoint_InvalidInvoice(t *testing.T) {
	srv := newTestServer(t, "")

	inv := validInvoice()
	inv.Seller.VATNumber = "123"

	w := postJSON(t, srv, "/api/v1/invoices/validate", server.InvoiceRequest{Invoice: inv})

	assert.Equal(t, http.StatusOK, w.Code)

	var response server.ValidationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Valid)
	assert.NotEmpty(t, response.Errors)
}

func TestValidateEndpoint_MalformedBody(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/validate", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearanceEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoices/clearance/single", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"validationResults": {"status": "PASS"},
			"invoiceNumber": "ZATCA-REF-042",
			"qrCode": "QVFJRA=="
		}`))
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)

	w := postJSON(t, srv, "/api/v1/invoices/clearance", server.InvoiceRequest{Invoice: validInvoice()})

	assert.Equal(t, http.StatusOK, w.Code)

	var response server.SubmissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, model.StatusCleared, response.Status)
	assert.Equal(t, model.StateAccepted, response.State)
	assert.Equal(t, "ZATCA-REF-042", response.AuthorityReference)
	assert.NotEmpty(t, response.InvoiceHash)
}

func TestClearanceEndpoint_Rejected(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"validationResults": {
				"status": "ERROR",
				"errorMessages": [{"type": "ERROR", "code": "BR-KSA-F-06", "category": "KSA", "message": "buyer VAT invalid", "status": "ERROR"}]
			}
		}`))
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)

	w := postJSON(t, srv, "/api/v1/invoices/clearance", server.InvoiceRequest{Invoice: validInvoice()})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response server.SubmissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, model.StatusRejected, response.Status)
	require.NotEmpty(t, response.Errors)
	assert.Equal(t, "BR-KSA-F-06", response.Errors[0].Code)
}

func TestClearanceEndpoint_UpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close() // connection refused

	srv := newTestServer(t, upstream.URL)

	w := postJSON(t, srv, "/api/v1/invoices/clearance", server.InvoiceRequest{Invoice: validInvoice()})

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var response server.SubmissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, model.StatusError, response.Status)
	assert.True(t, response.Retryable)
}

func TestReportingEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoices/reporting/single", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"validationResults": {"status": "PASS"}}`))
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)

	inv := validInvoice()
	inv.Buyer = model.Party{}

	w := postJSON(t, srv, "/api/v1/invoices/reporting", server.InvoiceRequest{Invoice: inv})

	assert.Equal(t, http.StatusOK, w.Code)

	var response server.SubmissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, model.StatusReported, response.Status)
	assert.NotEmpty(t, response.QRPayload)
}

func TestSubmission_NoCertificateConfigured(t *testing.T) {
	config := &server.Config{Address: ":8080", Debug: true, Logger: zerolog.Nop()}
	srv := server.NewServer(config)

	w := postJSON(t, srv, "/api/v1/invoices/clearance", server.InvoiceRequest{Invoice: validInvoice()})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRenewalEndpoint_NotNeeded(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("renewal must not fire for a certificate far from expiry")
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/certificates/renewal", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response server.RenewalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Renewed)
	assert.Equal(t, "cred-1", response.CredentialID)
}

func TestRenewalEndpoint_NeverLeaksSecrets(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/certificates/renewal", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.NotContains(t, w.Body.String(), "secret-1")
	assert.NotContains(t, w.Body.String(), "PRIVATE KEY")
}

func TestQRDecodeEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	payload, err := qr.Encode(qr.Payload{
		SellerName: "Rezonia Trading Co",
		VATNumber:  "310122393500003",
		Timestamp:  "2026-08-15T14:30:00Z",
		Total:      decimal.NewFromFloat(115.00),
		VATAmount:  decimal.NewFromFloat(15.00),
	})
	require.NoError(t, err)

	w := postJSON(t, srv, "/api/v1/qr/decode", server.QRDecodeRequest{Payload: payload})

	assert.Equal(t, http.StatusOK, w.Code)

	var response server.QRDecodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Rezonia Trading Co", response.Payload.SellerName)
	assert.Equal(t, "310122393500003", response.Payload.VATNumber)
}

func TestQRDecodeEndpoint_InvalidPayload(t *testing.T) {
	srv := newTestServer(t, "")

	w := postJSON(t, srv, "/api/v1/qr/decode", server.QRDecodeRequest{Payload: "not-base64!"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

// Benchmark tests

func BenchmarkValidate(b *testing.B) {
	config := &server.Config{Address: ":8080", Logger: zerolog.Nop()}
	srv := server.NewServer(config)

	body, _ := json.Marshal(server.InvoiceRequest{Invoice: validInvoice()})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/validate", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
	}
}

func BenchmarkHealth(b *testing.B) {
	config := &server.Config{Address: ":8080", Logger: zerolog.Nop()}
	srv := server.NewServer(config)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
	}
}
