// Package qr builds the compact Tag-Length-Value summary embedded in the
// scannable code printed on invoices. The payload is not a security
// control; it is a deterministic, order-sensitive summary consumed by
// offline verification tools.
package qr

import (
	"encoding/base64"
	"fmt"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/clearance-engine/internal/decimal"
)

// TLV tags, in encoding order
const (
	TagSellerName = 1
	TagVATNumber  = 2
	TagTimestamp  = 3
	TagTotal      = 4
	TagVATAmount  = 5
)

// Payload holds the five authority-defined summary fields
type Payload struct {
	SellerName string          `json:"seller_name"`
	VATNumber  string          `json:"vat_number"`
	Timestamp  string          `json:"timestamp"`
	Total      decimal.Decimal `json:"total"`
	VATAmount  decimal.Decimal `json:"vat_amount"`
}

// Encode serializes the payload into base64-encoded TLV bytes. Fields are
// always written in tag order, so identical payloads encode identically.
func Encode(p Payload) (string, error) {
	fields := []struct {
		tag   byte
		value string
	}{
		{TagSellerName, p.SellerName},
		{TagVATNumber, p.VATNumber},
		{TagTimestamp, p.Timestamp},
		{TagTotal, money.Format(p.Total)},
		{TagVATAmount, money.Format(p.VATAmount)},
	}

	var buf []byte
	for _, f := range fields {
		b := []byte(f.value)
		if len(b) > 255 {
			return "", fmt.Errorf("tag %d value exceeds 255 bytes", f.tag)
		}
		buf = append(buf, f.tag, byte(len(b)))
		buf = append(buf, b...)
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}

// Decode parses a base64 TLV payload back into its five fields.
func Decode(encoded string) (Payload, error) {
	var p Payload

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return p, fmt.Errorf("payload is not valid base64: %w", err)
	}

	seen := make(map[byte]bool)
	for i := 0; i < len(data); {
		if i+2 > len(data) {
			return p, fmt.Errorf("truncated TLV header at offset %d", i)
		}
		tag := data[i]
		length := int(data[i+1])
		i += 2
		if i+length > len(data) {
			return p, fmt.Errorf("truncated TLV value for tag %d", tag)
		}
		value := string(data[i : i+length])
		i += length

		if seen[tag] {
			return p, fmt.Errorf("duplicate TLV tag %d", tag)
		}
		seen[tag] = true

		switch tag {
		case TagSellerName:
			p.SellerName = value
		case TagVATNumber:
			p.VATNumber = value
		case TagTimestamp:
			p.Timestamp = value
		case TagTotal:
			p.Total, err = decimal.NewFromString(value)
		case TagVATAmount:
			p.VATAmount, err = decimal.NewFromString(value)
		default:
			return p, fmt.Errorf("unknown TLV tag %d", tag)
		}
		if err != nil {
			return p, fmt.Errorf("invalid value for tag %d: %w", tag, err)
		}
	}

	for tag := byte(TagSellerName); tag <= TagVATAmount; tag++ {
		if !seen[tag] {
			return p, fmt.Errorf("missing TLV tag %d", tag)
		}
	}

	return p, nil
}
