package model_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/clearance-engine/internal/model"
)

func TestInvoice_Creation(t *testing.T) {
	inv := model.Invoice{
		Number:    "INV-0001",
		Type:      model.InvoiceTypeStandard,
		IssueDate: "2026-08-01",
		IssueTime: "10:30:00",
		Seller: model.Party{
			Name:      "Rezonia Trading Co",
			VATNumber: "310122393500003",
		},
		Buyer: model.Party{
			Name:      "Acme LLC",
			VATNumber: "311111111100003",
		},
		Currency: "SAR",
	}

	assert.Equal(t, "INV-0001", inv.Number)
	assert.Equal(t, model.InvoiceTypeStandard, inv.Type)
	assert.Equal(t, "310122393500003", inv.Seller.VATNumber)
	assert.Equal(t, "SAR", inv.CurrencyOrDefault())
	assert.False(t, inv.IsNote())
}

func TestInvoiceType_TypeCode(t *testing.T) {
	assert.Equal(t, "388", model.InvoiceTypeStandard.TypeCode())
	assert.Equal(t, "381", model.InvoiceTypeCredit.TypeCode())
	assert.Equal(t, "383", model.InvoiceTypeDebit.TypeCode())
}

func TestVATRate_Valid(t *testing.T) {
	assert.True(t, model.VATRate0.Valid())
	assert.True(t, model.VATRate5.Valid())
	assert.True(t, model.VATRate15.Valid())
	assert.False(t, model.VATRate(7).Valid())
	assert.False(t, model.VATRate(10).Valid())
}

func TestLineItem_Calculate(t *testing.T) {
	item := model.LineItem{
		ID:          "1",
		Description: "Consulting services",
		Quantity:    decimal.NewFromInt(4),
		UnitPrice:   decimal.NewFromFloat(250.00),
		VATRate:     model.VATRate15,
	}

	item.Calculate()

	assert.True(t, item.Total.Equal(decimal.NewFromInt(1000)),
		"expected total 1000, got %s", item.Total.String())
	assert.True(t, item.VATAmount.Equal(decimal.NewFromInt(150)),
		"expected VAT 150, got %s", item.VATAmount.String())
}

func TestInvoice_CalculateTotals(t *testing.T) {
	inv := model.Invoice{
		Items: []model.LineItem{
			{
				ID:          "1",
				Description: "Item A",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.NewFromFloat(100.00),
				VATRate:     model.VATRate15,
			},
			{
				ID:          "2",
				Description: "Item B",
				Quantity:    decimal.NewFromInt(3),
				UnitPrice:   decimal.NewFromFloat(50.00),
				VATRate:     model.VATRate5,
			},
		},
	}

	inv.CalculateTotals()

	// Item A: total=200.00, VAT=30.00; Item B: total=150.00, VAT=7.50
	assert.True(t, inv.Subtotal.Equal(decimal.NewFromFloat(350.00)),
		"expected subtotal 350.00, got %s", inv.Subtotal.String())
	assert.True(t, inv.VATAmount.Equal(decimal.NewFromFloat(37.50)),
		"expected VAT 37.50, got %s", inv.VATAmount.String())
	assert.True(t, inv.Total.Equal(decimal.NewFromFloat(387.50)),
		"expected total 387.50, got %s", inv.Total.String())
}

func TestCertificate_ExpiresWithin(t *testing.T) {
	cert := model.Certificate{
		CredentialID: "cred-1",
		Environment:  model.EnvironmentSandbox,
		ExpiresAt:    time.Now().Add(10 * 24 * time.Hour),
	}

	assert.True(t, cert.ExpiresWithin(30*24*time.Hour))
	assert.False(t, cert.ExpiresWithin(5*24*time.Hour))
	assert.False(t, cert.Expired())
}

func TestCertificate_BasicAuth(t *testing.T) {
	cert := model.Certificate{CredentialID: "user", Secret: "pass"}
	// base64("user:pass")
	assert.Equal(t, "Basic dXNlcjpwYXNz", cert.BasicAuth())
}

func TestSubmissionState_Transitions(t *testing.T) {
	tests := []struct {
		from, to model.SubmissionState
		ok       bool
	}{
		{model.StateBuilt, model.StateValidated, true},
		{model.StateValidated, model.StateSigned, true},
		{model.StateSigned, model.StateSubmitted, true},
		{model.StateSubmitted, model.StateAccepted, true},
		{model.StateSubmitted, model.StateRejected, true},
		{model.StateSubmitted, model.StateError, true},
		{model.StateBuilt, model.StateSigned, false},
		{model.StateAccepted, model.StateRejected, false},
		{model.StateError, model.StateSubmitted, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}

	assert.True(t, model.StateAccepted.Terminal())
	assert.True(t, model.StateError.Terminal())
	assert.False(t, model.StateSubmitted.Terminal())
}

func TestValidationResult_Accumulates(t *testing.T) {
	r := model.NewValidationResult()
	require.True(t, r.Valid)

	r.AddWarning("REF-001", "previous_invoice_hash", "missing chain reference")
	assert.True(t, r.Valid)

	r.AddError("TOT-001", "total", "total mismatch")
	assert.False(t, r.Valid)
	assert.True(t, r.HasErrorCode("TOT-001"))
	assert.True(t, r.HasWarningCode("REF-001"))
	assert.False(t, r.HasErrorCode("REF-001"))
}
