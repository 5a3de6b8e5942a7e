// Package hashing computes the authority-facing content hash of invoice
// documents. The same hash is what the next invoice in a seller's chain
// must reference as its previous-invoice hash; the caller owns storing it.
package hashing

import (
	"crypto/sha256"
	"encoding/base64"
)

// Hash returns the base64-encoded SHA-256 digest of the UTF-8 bytes of
// the document.
func Hash(document string) string {
	return HashBytes([]byte(document))
}

// HashBytes returns the base64-encoded SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}
