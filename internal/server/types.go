package server

import (
	"github.com/rezonia/clearance-engine/internal/model"
	"github.com/rezonia/clearance-engine/internal/qr"
)

// InvoiceRequest wraps an invoice for the validate, clearance and
// reporting endpoints
type InvoiceRequest struct {
	Invoice *model.Invoice `json:"invoice" binding:"required"`
}

// ValidationResponse is the response for the validate endpoint
type ValidationResponse struct {
	Valid    bool                      `json:"valid"`
	Errors   []model.ValidationMessage `json:"errors,omitempty"`
	Warnings []model.ValidationMessage `json:"warnings,omitempty"`
}

// SubmissionResponse is the response for clearance and reporting
// endpoints
type SubmissionResponse struct {
	Status             model.SubmissionStatus   `json:"status"`
	State              model.SubmissionState    `json:"state"`
	UUID               string                   `json:"uuid,omitempty"`
	InvoiceHash        string                   `json:"invoice_hash,omitempty"`
	AuthorityReference string                   `json:"authority_reference,omitempty"`
	QRPayload          string                   `json:"qr_payload,omitempty"`
	ClearedDocument    string                   `json:"cleared_document,omitempty"`
	Retryable          bool                     `json:"retryable"`
	Errors             []model.AuthorityMessage `json:"errors,omitempty"`
	Warnings           []model.AuthorityMessage `json:"warnings,omitempty"`
}

// RenewalResponse is the response for the certificate renewal endpoint.
// Secret material never leaves the server.
type RenewalResponse struct {
	CredentialID string `json:"credential_id"`
	Environment  string `json:"environment"`
	ExpiresAt    string `json:"expires_at"`
	Renewed      bool   `json:"renewed"`
}

// QRDecodeRequest carries a base64 TLV payload
type QRDecodeRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// QRDecodeResponse is the decoded TLV payload
type QRDecodeResponse struct {
	Payload qr.Payload `json:"payload"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
