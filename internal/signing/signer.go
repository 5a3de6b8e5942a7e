// Package signing produces digital signatures over canonical invoice
// documents. Two strategies exist: an embedded enveloped XMLDSig
// signature backed by goxmldsig, and a hand-built detached signature
// used as fallback. Both canonicalize and digest the same way, so
// authority validation is agnostic to which path produced the signature.
package signing

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rezonia/clearance-engine/internal/canonical"
	"github.com/rezonia/clearance-engine/internal/model"
)

// Strategy names used in signing errors and logs
const (
	StrategyEmbedded = "embedded"
	StrategyDetached = "detached"
)

// Signer produces a signed document from a canonical document and the
// seller's signing certificate.
type Signer interface {
	Sign(document string, cert *model.Certificate) (string, error)
}

// FallbackSigner tries the primary strategy first and falls back to the
// secondary on failure. Selection lives here so try/catch-style control
// flow does not leak into callers.
type FallbackSigner struct {
	Primary  Signer
	Fallback Signer
	log      zerolog.Logger
}

// NewFallbackSigner creates the default policy: embedded first, then
// detached.
func NewFallbackSigner(log zerolog.Logger) *FallbackSigner {
	return &FallbackSigner{
		Primary:  NewEmbeddedSigner(),
		Fallback: NewDetachedSigner(),
		log:      log,
	}
}

// SetLogger replaces the logger without disturbing the configured
// strategies.
func (s *FallbackSigner) SetLogger(log zerolog.Logger) {
	s.log = log
}

// Sign attempts the primary strategy, then the fallback.
func (s *FallbackSigner) Sign(document string, cert *model.Certificate) (string, error) {
	signed, primaryErr := s.Primary.Sign(document, cert)
	if primaryErr == nil {
		return signed, nil
	}

	s.log.Warn().
		Str("strategy", StrategyEmbedded).
		Err(primaryErr).
		Msg("embedded signing failed, falling back to detached signature")

	signed, fallbackErr := s.Fallback.Sign(document, cert)
	if fallbackErr == nil {
		return signed, nil
	}

	return "", model.NewSigningError(model.ErrCodeSignatureFail, StrategyDetached,
		"both signing strategies failed", fallbackErr)
}

var interTagWhitespace = regexp.MustCompile(`>\s+<`)

// Canonicalize normalizes a document for digest computation: the
// signature placeholder is removed and whitespace between elements is
// collapsed. Both strategies digest this exact form.
func Canonicalize(document string) string {
	doc := strings.Replace(document, canonical.SignaturePlaceholder, "", 1)
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	doc = interTagWhitespace.ReplaceAllString(doc, "><")
	return strings.TrimSpace(doc)
}
