// Package engine orchestrates the clearance pipeline: each invoice runs
// validate → build → sign → hash → submit as a single linear sequence.
// Pipelines for different invoices may run concurrently; the per-seller
// hash chain is the only shared state, and it lives behind the
// ChainStore contract.
package engine

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/clearance-engine/internal/authority"
	"github.com/rezonia/clearance-engine/internal/canonical"
	"github.com/rezonia/clearance-engine/internal/certs"
	"github.com/rezonia/clearance-engine/internal/hashing"
	"github.com/rezonia/clearance-engine/internal/model"
	"github.com/rezonia/clearance-engine/internal/qr"
	"github.com/rezonia/clearance-engine/internal/signing"
	"github.com/rezonia/clearance-engine/internal/validator"
)

// Engine ties the pipeline components together
type Engine struct {
	client      *authority.Client
	signer      signing.Signer
	certManager *certs.Manager
	chain       ChainStore
	renewAhead  time.Duration
	log         zerolog.Logger
}

// Option configures the engine
type Option func(*Engine)

// WithClient sets the authority client
func WithClient(client *authority.Client) Option {
	return func(e *Engine) {
		e.client = client
	}
}

// WithSigner overrides the signing strategy
func WithSigner(signer signing.Signer) Option {
	return func(e *Engine) {
		e.signer = signer
	}
}

// WithCertManager sets the certificate lifecycle manager
func WithCertManager(m *certs.Manager) Option {
	return func(e *Engine) {
		e.certManager = m
	}
}

// WithChainStore sets the per-seller hash chain store
func WithChainStore(store ChainStore) Option {
	return func(e *Engine) {
		e.chain = store
	}
}

// WithLogger sets the structured logger
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
		if fs, ok := e.signer.(*signing.FallbackSigner); ok {
			fs.SetLogger(log)
		}
	}
}

// New creates an engine. The default signing policy is embedded
// signature first with detached fallback.
func New(opts ...Option) *Engine {
	e := &Engine{
		signer:     signing.NewFallbackSigner(zerolog.Nop()),
		renewAhead: certs.DefaultRenewalThreshold,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateInvoice checks an invoice without touching the network
func (e *Engine) ValidateInvoice(inv *model.Invoice) *model.ValidationResult {
	return validator.Validate(inv)
}

// ClearInvoice runs the pre-issuance clearance workflow for a B2B
// invoice. Any failure resolves to a typed result, never a panic or a
// raw error.
func (e *Engine) ClearInvoice(ctx context.Context, inv *model.Invoice, cert *model.Certificate) *model.ClearanceResult {
	return e.submit(ctx, inv, cert, true)
}

// ReportInvoice runs the post-issuance reporting workflow for a B2C
// invoice.
func (e *Engine) ReportInvoice(ctx context.Context, inv *model.Invoice, cert *model.Certificate) *model.ReportingResult {
	return e.submit(ctx, inv, cert, false)
}

// RenewCertificate renews the signing credential when it approaches
// expiry, returning the input unchanged otherwise.
func (e *Engine) RenewCertificate(ctx context.Context, cert *model.Certificate) (*model.Certificate, error) {
	if e.certManager == nil {
		return nil, model.NewCertificateError(model.ErrCodeRenewalFail, credentialID(cert),
			"no certificate manager configured", nil)
	}
	return e.certManager.RenewIfNeeded(ctx, cert)
}

func (e *Engine) submit(ctx context.Context, inv *model.Invoice, cert *model.Certificate, clearance bool) *model.SubmissionResult {
	state := model.StateBuilt

	// Read the seller's chain head before anything else; accepted
	// submissions advance it from exactly this value.
	expectedPrevious := ""
	if e.chain != nil && inv != nil {
		if last, err := e.chain.LastHash(ctx, inv.Seller.VATNumber); err == nil {
			expectedPrevious = last
		} else {
			e.log.Warn().Err(err).Msg("chain store read failed, skipping linkage check")
		}
	}

	var validation *model.ValidationResult
	if inv != nil && inv.IsNote() {
		validation = validator.ValidateWithChain(inv, expectedPrevious)
	} else {
		validation = validator.Validate(inv)
	}
	if !validation.Valid {
		return pipelineError(state, "VALIDATION", validationMessages(validation), false)
	}
	state = transition(state, model.StateValidated)

	// Certificate gate: never submit with a certificate expected to
	// expire mid-flight. A retry after expiry re-runs this gate.
	if cert == nil || cert.Expired() {
		return pipelineError(state, "CERTIFICATE", []model.AuthorityMessage{{
			Code:     model.ErrCodeCertExpired,
			Category: "CERTIFICATE",
			Message:  "signing certificate is missing or expired",
		}}, false)
	}
	if cert.ExpiresWithin(e.renewAhead) && e.certManager != nil {
		renewed, err := e.certManager.RenewIfNeeded(ctx, cert)
		if err != nil {
			return pipelineError(state, "CERTIFICATE", []model.AuthorityMessage{{
				Code:     model.ErrCodeRenewalFail,
				Category: "CERTIFICATE",
				Message:  err.Error(),
			}}, false)
		}
		cert = renewed
	}

	document, id, err := canonical.Build(inv)
	if err != nil {
		return pipelineError(state, "DOCUMENT", []model.AuthorityMessage{{
			Code:     "BUILD_FAILED",
			Category: "DOCUMENT",
			Message:  err.Error(),
		}}, false)
	}

	// Signing failures are fatal here but are converted into a
	// submission-level result at this boundary.
	signed, err := e.signer.Sign(document, cert)
	if err != nil {
		e.log.Error().Str("invoice", inv.Number).Err(err).Msg("signing failed")
		return pipelineError(state, "SIGNING", []model.AuthorityMessage{{
			Code:     model.ErrCodeSignatureFail,
			Category: "SIGNING",
			Message:  err.Error(),
		}}, false)
	}
	state = transition(state, model.StateSigned)

	invoiceHash := hashing.Hash(signed)
	req := &authority.SubmissionRequest{
		InvoiceHash: invoiceHash,
		UUID:        id,
		Invoice:     base64.StdEncoding.EncodeToString([]byte(signed)),
	}

	if e.client == nil {
		return pipelineError(state, "CONFIG", []model.AuthorityMessage{{
			Code:     "NOT_CONFIGURED",
			Category: "CONFIG",
			Message:  "no authority client configured",
		}}, false)
	}

	state = transition(state, model.StateSubmitted)
	var result *model.SubmissionResult
	if clearance {
		result = e.client.Clear(ctx, req, cert)
	} else {
		result = e.client.Report(ctx, req, cert)
	}

	if result.Accepted() {
		if result.QRPayload == "" {
			result.QRPayload = e.localQRPayload(inv)
		}
		e.advanceChain(ctx, inv, expectedPrevious, invoiceHash, result)
	}

	e.log.Info().
		Str("invoice", inv.Number).
		Str("uuid", id).
		Str("status", string(result.Status)).
		Msg("submission finished")
	return result
}

// advanceChain moves the seller's chain head to the new hash. The store
// rejects stale advances, which is surfaced as a warning on the result.
func (e *Engine) advanceChain(ctx context.Context, inv *model.Invoice, expected, next string, result *model.SubmissionResult) {
	if e.chain == nil {
		return
	}
	if err := e.chain.AdvanceHash(ctx, inv.Seller.VATNumber, expected, next); err != nil {
		e.log.Warn().Str("seller", inv.Seller.VATNumber).Err(err).Msg("chain advance failed")
		result.Warnings = append(result.Warnings, model.AuthorityMessage{
			Code:     "CHAIN_STALE",
			Category: "CHAIN",
			Message:  "last-hash pointer moved concurrently; verify chain linkage",
		})
	}
}

// localQRPayload encodes the offline-verification summary when the
// authority response carries no code (the reporting workflow).
func (e *Engine) localQRPayload(inv *model.Invoice) string {
	payload, err := qr.Encode(qr.Payload{
		SellerName: inv.Seller.Name,
		VATNumber:  inv.Seller.VATNumber,
		Timestamp:  inv.IssueDate + "T" + inv.IssueTime + "Z",
		Total:      inv.Total,
		VATAmount:  inv.VATAmount,
	})
	if err != nil {
		e.log.Warn().Str("invoice", inv.Number).Err(err).Msg("QR payload encoding failed")
		return ""
	}
	return payload
}

func transition(from, to model.SubmissionState) model.SubmissionState {
	if from.CanTransition(to) {
		return to
	}
	return from
}

func pipelineError(state model.SubmissionState, category string, errs []model.AuthorityMessage, retryable bool) *model.SubmissionResult {
	now := time.Now().UTC()
	return &model.SubmissionResult{
		Status:      model.StatusError,
		State:       transition(state, model.StateError),
		SubmittedAt: &now,
		Errors:      errs,
		Retryable:   retryable,
	}
}

func validationMessages(v *model.ValidationResult) []model.AuthorityMessage {
	msgs := make([]model.AuthorityMessage, 0, len(v.Errors))
	for _, e := range v.Errors {
		msgs = append(msgs, model.AuthorityMessage{
			Type:     "ERROR",
			Code:     e.Code,
			Category: "VALIDATION",
			Message:  e.Message,
		})
	}
	return msgs
}

func credentialID(cert *model.Certificate) string {
	if cert == nil {
		return ""
	}
	return cert.CredentialID
}
