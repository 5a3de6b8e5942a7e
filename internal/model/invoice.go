package model

import (
	"github.com/shopspring/decimal"
)

// InvoiceType represents the regulatory invoice type
type InvoiceType string

const (
	InvoiceTypeStandard InvoiceType = "Standard"
	InvoiceTypeCredit   InvoiceType = "Credit"
	InvoiceTypeDebit    InvoiceType = "Debit"
)

// TypeCode returns the UBL document type code for the invoice type
func (t InvoiceType) TypeCode() string {
	switch t {
	case InvoiceTypeCredit:
		return "381"
	case InvoiceTypeDebit:
		return "383"
	default:
		return "388"
	}
}

// Valid reports whether the type belongs to the supported set
func (t InvoiceType) Valid() bool {
	switch t {
	case InvoiceTypeStandard, InvoiceTypeCredit, InvoiceTypeDebit:
		return true
	}
	return false
}

// VATRate represents valid VAT rates (percent)
type VATRate int

const (
	VATRate0  VATRate = 0
	VATRate5  VATRate = 5
	VATRate15 VATRate = 15
)

// Valid reports whether the rate belongs to the closed set
func (r VATRate) Valid() bool {
	switch r {
	case VATRate0, VATRate5, VATRate15:
		return true
	}
	return false
}

// Invoice represents an invoice record prior to clearance or reporting
type Invoice struct {
	// Optional pre-assigned RFC-4122 identifier. Generated during document
	// build when absent.
	UUID string `json:"uuid,omitempty"`

	// Header
	Number    string      `json:"number"`     // Unique per seller
	Type      InvoiceType `json:"type"`       // Standard, Credit, Debit
	IssueDate string      `json:"issue_date"` // YYYY-MM-DD
	IssueTime string      `json:"issue_time"` // HH:mm:ss

	// Parties
	Seller Party `json:"seller"`
	Buyer  Party `json:"buyer"`

	// Line items
	Items []LineItem `json:"items"`

	// Totals (SAR, two decimals)
	Subtotal  decimal.Decimal `json:"subtotal"`
	VATAmount decimal.Decimal `json:"vat_amount"`
	Total     decimal.Decimal `json:"total"`

	// Hash-chain pointer to the signed content of the prior related
	// invoice. Mandatory for credit and debit notes.
	PreviousInvoiceHash string `json:"previous_invoice_hash,omitempty"`

	Currency string `json:"currency,omitempty"` // defaults to SAR
}

// CurrencyOrDefault returns the invoice currency, defaulting to SAR
func (inv *Invoice) CurrencyOrDefault() string {
	if inv.Currency == "" {
		return "SAR"
	}
	return inv.Currency
}

// IsNote reports whether the invoice is a credit or debit note
func (inv *Invoice) IsNote() bool {
	return inv.Type == InvoiceTypeCredit || inv.Type == InvoiceTypeDebit
}

// Party represents seller or buyer
type Party struct {
	Name string `json:"name"`

	// 15-digit tax registration number. Optional for consumer buyers.
	VATNumber string `json:"vat_number,omitempty"`

	Address Address `json:"address"`
}

// Address represents a party postal address
type Address struct {
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"` // 5 digits
	CountryCode string `json:"country_code,omitempty"`
}

// LineItem represents an invoice line item
type LineItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	VATRate     VATRate         `json:"vat_rate"`

	// Authority-verifiable derivations of quantity * unit price
	VATAmount decimal.Decimal `json:"vat_amount"`
	Total     decimal.Decimal `json:"total"`
}

// Calculate computes the line VAT amount and total from quantity and price
func (li *LineItem) Calculate() {
	net := li.Quantity.Mul(li.UnitPrice).Round(2)
	li.VATAmount = net.Mul(decimal.NewFromInt(int64(li.VATRate))).Div(decimal.NewFromInt(100)).Round(2)
	li.Total = net.Round(2)
}

// CalculateTotals computes invoice totals from line items
func (inv *Invoice) CalculateTotals() {
	subtotal := decimal.Zero
	vat := decimal.Zero

	for i := range inv.Items {
		inv.Items[i].Calculate()
		subtotal = subtotal.Add(inv.Items[i].Total)
		vat = vat.Add(inv.Items[i].VATAmount)
	}

	inv.Subtotal = subtotal.Round(2)
	inv.VATAmount = vat.Round(2)
	inv.Total = subtotal.Add(vat).Round(2)
}
