// Package clearancelib provides a public API for validating, signing and
// clearing e-invoices with the tax authority.
//
// Example usage:
//
//	eng := clearancelib.NewEngine(clearancelib.Options{
//	    AuthorityURL: "https://api.example.com",
//	    Certificate:  cert,
//	})
//	result := eng.Clear(ctx, invoice)
//	if result.Accepted() {
//	    fmt.Println(result.InvoiceHash)
//	}
package clearancelib

import "github.com/rezonia/clearance-engine/internal/model"

// Re-export core types for public API
type (
	Invoice           = model.Invoice
	LineItem          = model.LineItem
	Party             = model.Party
	Address           = model.Address
	Certificate       = model.Certificate
	Environment       = model.Environment
	VATRate           = model.VATRate
	InvoiceType       = model.InvoiceType
	ValidationResult  = model.ValidationResult
	ValidationMessage = model.ValidationMessage
	SubmissionResult  = model.SubmissionResult
	ClearanceResult   = model.ClearanceResult
	ReportingResult   = model.ReportingResult
	AuthorityMessage  = model.AuthorityMessage
	SubmissionStatus  = model.SubmissionStatus
	SubmissionState   = model.SubmissionState
)

// Re-export invoice types
const (
	InvoiceTypeStandard = model.InvoiceTypeStandard
	InvoiceTypeCredit   = model.InvoiceTypeCredit
	InvoiceTypeDebit    = model.InvoiceTypeDebit
)

// Re-export VAT rates
const (
	VATRate0  = model.VATRate0
	VATRate5  = model.VATRate5
	VATRate15 = model.VATRate15
)

// Re-export credential environments
const (
	EnvironmentSandbox    = model.EnvironmentSandbox
	EnvironmentSimulation = model.EnvironmentSimulation
	EnvironmentProduction = model.EnvironmentProduction
)

// Re-export submission statuses
const (
	StatusCleared  = model.StatusCleared
	StatusReported = model.StatusReported
	StatusRejected = model.StatusRejected
	StatusError    = model.StatusError
)

// Re-export error types
type (
	ParseError       = model.ParseError
	SigningError     = model.SigningError
	SubmissionError  = model.SubmissionError
	CertificateError = model.CertificateError
)
