package certs

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"
)

// ParsePrivateKey parses a PEM-encoded private key. PKCS#1, PKCS#8 and
// SEC1 EC encodings are accepted.
func ParsePrivateKey(pemData string) (crypto.Signer, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in private key data")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("unsupported private key type %T", key)
		}
		return signer, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	return nil, fmt.Errorf("private key is not PKCS#1, PKCS#8 or SEC1 encoded")
}

// ParseCertificate parses a PEM-encoded X.509 certificate and returns the
// certificate together with its raw DER bytes.
func ParseCertificate(pemData string) (*x509.Certificate, []byte, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, nil, fmt.Errorf("no PEM block found in certificate data")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, block.Bytes, nil
}

// StripPEMArmor removes PEM headers, footers and newlines, leaving the
// bare base64 body for embedding in a signature block.
func StripPEMArmor(pemData string) string {
	var b strings.Builder
	for _, line := range strings.Split(pemData, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-----") {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}

// KeyMatchesCertificate reports whether the private key corresponds to
// the certificate's public key.
func KeyMatchesCertificate(key crypto.Signer, cert *x509.Certificate) bool {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		priv, ok := key.Public().(*rsa.PublicKey)
		return ok && pub.Equal(priv)
	case *ecdsa.PublicKey:
		priv, ok := key.Public().(*ecdsa.PublicKey)
		return ok && pub.Equal(priv)
	}
	return false
}
