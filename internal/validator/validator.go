// Package validator checks structural and business-rule correctness of an
// invoice before any document is built. Validation is pure: no I/O, no
// side effects, and it always returns a result object so callers can
// present all findings together instead of failing on the first one.
package validator

import (
	"fmt"
	"regexp"
	"time"

	money "github.com/rezonia/clearance-engine/internal/decimal"
	"github.com/rezonia/clearance-engine/internal/model"
)

// Stable validation codes, grouped by family
const (
	CodeNumberMissing = "INV-001"
	CodeTypeInvalid   = "INV-002"
	CodeDateInvalid   = "INV-003"
	CodeTimeInvalid   = "INV-004"

	CodeSellerNameMissing = "SEL-001"
	CodeSellerVATInvalid  = "SEL-002"
	CodeSellerPostalCode  = "SEL-003"

	CodeBuyerVATInvalid  = "BUY-001"
	CodeBuyerPostalCode  = "BUY-002"
	CodeBuyerNameMissing = "BUY-003" // warning on B2B invoices

	CodeNoLineItems     = "LIN-001"
	CodeLineIDMissing   = "LIN-002"
	CodeLineDescMissing = "LIN-003"
	CodeLineQuantity    = "LIN-004"
	CodeLineVATAmount   = "LIN-005"
	CodeLineVATRate     = "LIN-006"

	CodeTotalMismatch    = "TOT-001"
	CodeSubtotalMismatch = "TOT-002"
	CodeVATMismatch      = "TOT-003"

	CodeChainRefMissing  = "REF-001" // warning, see Open Question note in DESIGN.md
	CodeChainRefMismatch = "REF-002"
)

var (
	vatNumberPattern  = regexp.MustCompile(`^\d{15}$`)
	postalCodePattern = regexp.MustCompile(`^\d{5}$`)
)

// Validate checks an invoice and returns all findings. It never panics
// and never returns a Go error; failures are encoded in the result.
func Validate(inv *model.Invoice) *model.ValidationResult {
	return ValidateWithChain(inv, "")
}

// ValidateWithChain validates an invoice and, when expectedPreviousHash is
// non-empty, additionally enforces the hash-chain linkage: a credit or
// debit note's previous-invoice hash must equal the hash of the invoice it
// is linked to.
func ValidateWithChain(inv *model.Invoice, expectedPreviousHash string) *model.ValidationResult {
	result := model.NewValidationResult()
	if inv == nil {
		result.AddError(CodeNumberMissing, "", "invoice is nil")
		return result
	}

	validateHeader(inv, result)
	validateParties(inv, result)
	validateLines(inv, result)
	validateTotals(inv, result)
	validateChain(inv, expectedPreviousHash, result)

	return result
}

func validateHeader(inv *model.Invoice, result *model.ValidationResult) {
	if inv.Number == "" {
		result.AddError(CodeNumberMissing, "number", "invoice number is required")
	}
	if !inv.Type.Valid() {
		result.AddError(CodeTypeInvalid, "type",
			fmt.Sprintf("invoice type %q is not one of Standard, Credit, Debit", inv.Type))
	}
	if _, err := time.Parse("2006-01-02", inv.IssueDate); err != nil {
		result.AddError(CodeDateInvalid, "issue_date",
			fmt.Sprintf("issue date %q is not in YYYY-MM-DD format", inv.IssueDate))
	}
	if _, err := time.Parse("15:04:05", inv.IssueTime); err != nil {
		result.AddError(CodeTimeInvalid, "issue_time",
			fmt.Sprintf("issue time %q is not in HH:mm:ss format", inv.IssueTime))
	}
}

func validateParties(inv *model.Invoice, result *model.ValidationResult) {
	if inv.Seller.Name == "" {
		result.AddError(CodeSellerNameMissing, "seller.name", "seller name is required")
	}
	if !vatNumberPattern.MatchString(inv.Seller.VATNumber) {
		result.AddError(CodeSellerVATInvalid, "seller.vat_number",
			"seller tax registration number must be exactly 15 digits")
	}
	if inv.Seller.Address.PostalCode != "" && !postalCodePattern.MatchString(inv.Seller.Address.PostalCode) {
		result.AddError(CodeSellerPostalCode, "seller.address.postal_code",
			"seller postal code must be exactly 5 digits")
	}

	// Buyer tax number is optional (consumer sales) but must match the
	// pattern when present.
	if inv.Buyer.VATNumber != "" && !vatNumberPattern.MatchString(inv.Buyer.VATNumber) {
		result.AddError(CodeBuyerVATInvalid, "buyer.vat_number",
			"buyer tax registration number must be exactly 15 digits when present")
	}
	if inv.Buyer.Address.PostalCode != "" && !postalCodePattern.MatchString(inv.Buyer.Address.PostalCode) {
		result.AddError(CodeBuyerPostalCode, "buyer.address.postal_code",
			"buyer postal code must be exactly 5 digits")
	}
	if inv.Buyer.VATNumber != "" && inv.Buyer.Name == "" {
		result.AddWarning(CodeBuyerNameMissing, "buyer.name",
			"buyer name is missing on a business invoice")
	}
}

func validateLines(inv *model.Invoice, result *model.ValidationResult) {
	if len(inv.Items) == 0 {
		result.AddError(CodeNoLineItems, "items", "invoice must have at least one line item")
		return
	}

	for i, item := range inv.Items {
		field := fmt.Sprintf("items[%d]", i)
		if item.ID == "" {
			result.AddError(CodeLineIDMissing, field+".id", "line item identifier is required")
		}
		if item.Description == "" {
			result.AddError(CodeLineDescMissing, field+".description", "line item description is required")
		}
		if !money.IsPositive(item.Quantity) {
			result.AddError(CodeLineQuantity, field+".quantity", "line item quantity must be greater than zero")
		}
		if !item.VATRate.Valid() {
			result.AddError(CodeLineVATRate, field+".vat_rate",
				fmt.Sprintf("VAT rate %d is not one of 0, 5, 15", item.VATRate))
			continue
		}
		// VAT amount must be derivable from quantity * unit price at the
		// declared rate, within tolerance.
		expected := money.CalculateVAT(money.Mul(item.Quantity, item.UnitPrice), int(item.VATRate))
		if !money.WithinTolerance(item.VATAmount, expected) {
			result.AddError(CodeLineVATAmount, field+".vat_amount",
				fmt.Sprintf("line VAT amount %s does not match expected %s",
					money.Format(item.VATAmount), money.Format(expected)))
		}
	}
}

func validateTotals(inv *model.Invoice, result *model.ValidationResult) {
	if len(inv.Items) == 0 {
		return
	}

	lineTotals := money.Zero
	lineVAT := money.Zero
	for _, item := range inv.Items {
		lineTotals = lineTotals.Add(item.Total)
		lineVAT = lineVAT.Add(item.VATAmount)
	}

	if !money.WithinTolerance(inv.Subtotal, lineTotals) {
		result.AddError(CodeSubtotalMismatch, "subtotal",
			fmt.Sprintf("subtotal %s does not reconcile with line totals %s",
				money.Format(inv.Subtotal), money.Format(lineTotals)))
	}
	if !money.WithinTolerance(inv.VATAmount, lineVAT) {
		result.AddError(CodeVATMismatch, "vat_amount",
			fmt.Sprintf("VAT amount %s does not reconcile with line VAT %s",
				money.Format(inv.VATAmount), money.Format(lineVAT)))
	}
	if !money.WithinTolerance(inv.Total, inv.Subtotal.Add(inv.VATAmount)) {
		result.AddError(CodeTotalMismatch, "total",
			fmt.Sprintf("total %s does not equal subtotal %s plus VAT %s",
				money.Format(inv.Total), money.Format(inv.Subtotal), money.Format(inv.VATAmount)))
	}
}

func validateChain(inv *model.Invoice, expectedPreviousHash string, result *model.ValidationResult) {
	if inv.IsNote() && inv.PreviousInvoiceHash == "" {
		result.AddWarning(CodeChainRefMissing, "previous_invoice_hash",
			"credit and debit notes should reference the hash of the linked invoice")
	}
	if expectedPreviousHash != "" && inv.PreviousInvoiceHash != "" &&
		inv.PreviousInvoiceHash != expectedPreviousHash {
		result.AddError(CodeChainRefMismatch, "previous_invoice_hash",
			"previous invoice hash does not match the hash of the linked invoice")
	}
}
