package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/rezonia/clearance-engine/internal/canonical"
	"github.com/rezonia/clearance-engine/internal/certs"
	"github.com/rezonia/clearance-engine/internal/model"
)

// EmbeddedSigner produces an enveloped XMLDSig signature over the whole
// document using goxmldsig, then splices the signature block into the
// placeholder location.
type EmbeddedSigner struct{}

// NewEmbeddedSigner creates the library-assisted signing strategy
func NewEmbeddedSigner() *EmbeddedSigner {
	return &EmbeddedSigner{}
}

// Sign implements Signer
func (s *EmbeddedSigner) Sign(document string, cert *model.Certificate) (string, error) {
	key, err := certs.ParsePrivateKey(cert.PrivateKeyPEM)
	if err != nil {
		return "", model.NewSigningError(model.ErrCodeKeyInvalid, StrategyEmbedded,
			"failed to parse signing key", err)
	}
	x509Cert, der, err := certs.ParseCertificate(cert.CertificatePEM)
	if err != nil {
		return "", model.NewSigningError(model.ErrCodeCertInvalid, StrategyEmbedded,
			"failed to parse signing certificate", err)
	}
	if !certs.KeyMatchesCertificate(key, x509Cert) {
		return "", model.NewSigningError(model.ErrCodeCertInvalid, StrategyEmbedded,
			"private key does not match certificate", nil)
	}

	canon := Canonicalize(document)
	doc := etree.NewDocument()
	if err := doc.ReadFromString(canon); err != nil {
		return "", model.NewSigningError(model.ErrCodeSignatureFail, StrategyEmbedded,
			"failed to parse canonical document", err)
	}
	root := doc.Root()
	if root == nil {
		return "", model.NewSigningError(model.ErrCodeSignatureFail, StrategyEmbedded,
			"canonical document has no root element", nil)
	}

	ctx, err := dsig.NewSigningContext(key, [][]byte{der})
	if err != nil {
		return "", model.NewSigningError(model.ErrCodeSignatureFail, StrategyEmbedded,
			"failed to create signing context", err)
	}
	ctx.Hash = crypto.SHA256
	ctx.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	if err := setSignatureMethod(ctx, key); err != nil {
		return "", model.NewSigningError(model.ErrCodeKeyInvalid, StrategyEmbedded,
			"unsupported key type", err)
	}

	signedRoot, err := ctx.SignEnveloped(root)
	if err != nil {
		return "", model.NewSigningError(model.ErrCodeSignatureFail, StrategyEmbedded,
			"enveloped signature computation failed", err)
	}

	sigElem := lastSignatureElement(signedRoot)
	if sigElem == nil {
		return "", model.NewSigningError(model.ErrCodeSignatureFail, StrategyEmbedded,
			"signed document carries no signature element", nil)
	}

	sigXML, err := elementToString(sigElem)
	if err != nil {
		return "", model.NewSigningError(model.ErrCodeSignatureFail, StrategyEmbedded,
			"failed to serialize signature block", err)
	}

	return spliceSignature(document, sigXML)
}

func setSignatureMethod(ctx *dsig.SigningContext, key crypto.Signer) error {
	switch key.Public().(type) {
	case *rsa.PublicKey:
		return ctx.SetSignatureMethod(dsig.RSASHA256SignatureMethod)
	case *ecdsa.PublicKey:
		return ctx.SetSignatureMethod(dsig.ECDSASHA256SignatureMethod)
	default:
		return fmt.Errorf("key type %T is not supported", key.Public())
	}
}

// lastSignatureElement finds the ds:Signature appended by SignEnveloped
func lastSignatureElement(root *etree.Element) *etree.Element {
	children := root.ChildElements()
	for i := len(children) - 1; i >= 0; i-- {
		if children[i].Tag == "Signature" {
			return children[i]
		}
	}
	return nil
}

func elementToString(elem *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(elem.Copy())
	return doc.WriteToString()
}

// spliceSignature replaces the placeholder token with the signature block
func spliceSignature(document, sigXML string) (string, error) {
	if !strings.Contains(document, canonical.SignaturePlaceholder) {
		return "", model.NewSigningError(model.ErrCodeSignatureFail, StrategyEmbedded,
			"document carries no signature placeholder", nil)
	}
	return strings.Replace(document, canonical.SignaturePlaceholder, sigXML, 1), nil
}
