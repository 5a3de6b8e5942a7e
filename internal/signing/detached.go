package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/rezonia/clearance-engine/internal/canonical"
	"github.com/rezonia/clearance-engine/internal/certs"
	"github.com/rezonia/clearance-engine/internal/model"
)

// XMLDSig algorithm identifiers used in the hand-built signature block
const (
	xmldsigNamespace     = "http://www.w3.org/2000/09/xmldsig#"
	c14nAlgorithm        = "http://www.w3.org/2001/10/xml-exc-c14n#"
	sha256Algorithm      = "http://www.w3.org/2001/04/xmlenc#sha256"
	envelopedTransform   = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	rsaSHA256Algorithm   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	ecdsaSHA256Algorithm = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"
)

// DetachedSigner builds the signature block by hand: it digests a
// whitespace-normalized copy of the document, signs the digest with the
// certificate key and splices the assembled ds:Signature into the
// placeholder. Used when the embedded strategy fails.
type DetachedSigner struct{}

// NewDetachedSigner creates the hand-rolled fallback strategy
func NewDetachedSigner() *DetachedSigner {
	return &DetachedSigner{}
}

// Sign implements Signer
func (s *DetachedSigner) Sign(document string, cert *model.Certificate) (string, error) {
	key, err := certs.ParsePrivateKey(cert.PrivateKeyPEM)
	if err != nil {
		return "", model.NewSigningError(model.ErrCodeKeyInvalid, StrategyDetached,
			"failed to parse signing key", err)
	}
	if _, _, err := certs.ParseCertificate(cert.CertificatePEM); err != nil {
		return "", model.NewSigningError(model.ErrCodeCertInvalid, StrategyDetached,
			"failed to parse signing certificate", err)
	}
	if !strings.Contains(document, canonical.SignaturePlaceholder) {
		return "", model.NewSigningError(model.ErrCodeSignatureFail, StrategyDetached,
			"document carries no signature placeholder", nil)
	}

	canon := Canonicalize(document)
	digest := sha256.Sum256([]byte(canon))
	digestValue := base64.StdEncoding.EncodeToString(digest[:])

	signatureValue, sigAlgorithm, err := signDigest(key, digest[:])
	if err != nil {
		return "", model.NewSigningError(model.ErrCodeSignatureFail, StrategyDetached,
			"signature computation failed", err)
	}

	sigXML, err := buildSignatureBlock(digestValue, signatureValue, sigAlgorithm,
		certs.StripPEMArmor(cert.CertificatePEM))
	if err != nil {
		return "", model.NewSigningError(model.ErrCodeSignatureFail, StrategyDetached,
			"failed to build signature block", err)
	}

	return strings.Replace(document, canonical.SignaturePlaceholder, sigXML, 1), nil
}

// signDigest signs a SHA-256 digest with the key, returning the base64
// signature value and the matching XMLDSig algorithm identifier.
func signDigest(key crypto.Signer, digest []byte) (string, string, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		sig, err := rsa.SignPKCS1v15(rand.Reader, k, crypto.SHA256, digest)
		if err != nil {
			return "", "", err
		}
		return base64.StdEncoding.EncodeToString(sig), rsaSHA256Algorithm, nil
	case *ecdsa.PrivateKey:
		sig, err := ecdsa.SignASN1(rand.Reader, k, digest)
		if err != nil {
			return "", "", err
		}
		return base64.StdEncoding.EncodeToString(sig), ecdsaSHA256Algorithm, nil
	default:
		return "", "", fmt.Errorf("key type %T is not supported", key)
	}
}

func buildSignatureBlock(digestValue, signatureValue, sigAlgorithm, certBody string) (string, error) {
	sig := etree.NewElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", xmldsigNamespace)

	signedInfo := sig.CreateElement("ds:SignedInfo")
	signedInfo.CreateElement("ds:CanonicalizationMethod").CreateAttr("Algorithm", c14nAlgorithm)
	signedInfo.CreateElement("ds:SignatureMethod").CreateAttr("Algorithm", sigAlgorithm)

	ref := signedInfo.CreateElement("ds:Reference")
	ref.CreateAttr("URI", "")
	transforms := ref.CreateElement("ds:Transforms")
	transforms.CreateElement("ds:Transform").CreateAttr("Algorithm", envelopedTransform)
	ref.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", sha256Algorithm)
	ref.CreateElement("ds:DigestValue").SetText(digestValue)

	sig.CreateElement("ds:SignatureValue").SetText(signatureValue)

	keyInfo := sig.CreateElement("ds:KeyInfo")
	x509Data := keyInfo.CreateElement("ds:X509Data")
	x509Data.CreateElement("ds:X509Certificate").SetText(certBody)

	doc := etree.NewDocument()
	doc.SetRoot(sig)
	return doc.WriteToString()
}
