package clearancelib

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/rezonia/clearance-engine/internal/authority"
	"github.com/rezonia/clearance-engine/internal/canonical"
	"github.com/rezonia/clearance-engine/internal/certs"
	"github.com/rezonia/clearance-engine/internal/engine"
	"github.com/rezonia/clearance-engine/internal/hashing"
	"github.com/rezonia/clearance-engine/internal/parser"
	"github.com/rezonia/clearance-engine/internal/qr"
	"github.com/rezonia/clearance-engine/internal/signing"
)

// Options configures an Engine
type Options struct {
	// AuthorityURL is the base URL of the authority API. Leave empty for
	// offline use (validation, signing, QR encoding only).
	AuthorityURL string

	// APIVersion sets the Accept-Version header on authority calls
	APIVersion string

	// Certificate is the signing credential used for submissions
	Certificate *Certificate

	// Logger receives structured events; the zero value discards them
	Logger zerolog.Logger
}

// Engine is the public entry point wrapping the internal pipeline
type Engine struct {
	inner   *engine.Engine
	cert    *Certificate
	options Options
}

// NewEngine creates an engine from the given options
func NewEngine(opts Options) *Engine {
	engineOpts := []engine.Option{
		engine.WithChainStore(engine.NewMemoryChainStore()),
		engine.WithLogger(opts.Logger),
	}
	if opts.AuthorityURL != "" {
		client := authority.NewClient(authority.Config{
			BaseURL:    opts.AuthorityURL,
			APIVersion: opts.APIVersion,
			Logger:     opts.Logger,
		})
		engineOpts = append(engineOpts,
			engine.WithClient(client),
			engine.WithCertManager(certs.NewManager(client, opts.Logger)),
		)
	}

	return &Engine{
		inner:   engine.New(engineOpts...),
		cert:    opts.Certificate,
		options: opts,
	}
}

// Validate checks an invoice without touching the network
func (e *Engine) Validate(inv *Invoice) *ValidationResult {
	return e.inner.ValidateInvoice(inv)
}

// Clear submits a B2B invoice for pre-issuance clearance
func (e *Engine) Clear(ctx context.Context, inv *Invoice) *ClearanceResult {
	return e.inner.ClearInvoice(ctx, inv, e.cert)
}

// Report submits a B2C invoice for post-issuance reporting
func (e *Engine) Report(ctx context.Context, inv *Invoice) *ReportingResult {
	return e.inner.ReportInvoice(ctx, inv, e.cert)
}

// Sign builds the canonical document for an invoice and signs it,
// returning the signed document and its hash.
func (e *Engine) Sign(inv *Invoice) (document, hash string, err error) {
	doc, _, err := canonical.Build(inv)
	if err != nil {
		return "", "", err
	}

	signer := signing.NewFallbackSigner(e.options.Logger)
	signed, err := signer.Sign(doc, e.cert)
	if err != nil {
		return "", "", err
	}
	return signed, hashing.Hash(signed), nil
}

// ParseDocument reads a UBL invoice document back into the invoice model
func ParseDocument(r io.Reader) (*Invoice, error) {
	return parser.ParseUBL(r)
}

// QRPayload encodes the offline-verification TLV payload for an invoice
func (e *Engine) QRPayload(inv *Invoice) (string, error) {
	return qr.Encode(qr.Payload{
		SellerName: inv.Seller.Name,
		VATNumber:  inv.Seller.VATNumber,
		Timestamp:  inv.IssueDate + "T" + inv.IssueTime + "Z",
		Total:      inv.Total,
		VATAmount:  inv.VATAmount,
	})
}

// RenewCertificate renews the engine's credential when it approaches
// expiry, and keeps the renewed credential for later submissions.
func (e *Engine) RenewCertificate(ctx context.Context) (*Certificate, error) {
	renewed, err := e.inner.RenewCertificate(ctx, e.cert)
	if err != nil {
		return nil, err
	}
	e.cert = renewed
	return renewed, nil
}
