package parser_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/clearance-engine/internal/canonical"
	"github.com/rezonia/clearance-engine/internal/model"
	"github.com/rezonia/clearance-engine/internal/parser"
	"github.com/rezonia/clearance-engine/internal/validator"
)

func sampleInvoice() *model.Invoice {
	return &model.Invoice{
		UUID:      "16b7b281-3a49-4c04-9455-387b12e5a3d9",
		Number:    "INV-0001",
		Type:      model.InvoiceTypeStandard,
		IssueDate: "2026-08-15",
		IssueTime: "14:30:00",
		Seller: model.Party{
			Name:      "Rezonia Trading Co",
			VATNumber: "310122393500003",
			Address: model.Address{
				Street:      "King Fahd Road",
				City:        "Riyadh",
				PostalCode:  "12211",
				CountryCode: "SA",
			},
		},
		Buyer: model.Party{Name: "Acme LLC", VATNumber: "311111111100003"},
		Items: []model.LineItem{
			{
				ID:          "1",
				Description: "Consulting services",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.NewFromFloat(50.00),
				VATRate:     model.VATRate15,
				VATAmount:   decimal.NewFromFloat(15.00),
				Total:       decimal.NewFromFloat(100.00),
			},
		},
		Subtotal:  decimal.NewFromFloat(100.00),
		VATAmount: decimal.NewFromFloat(15.00),
		Total:     decimal.NewFromFloat(115.00),
	}
}

func TestParseUBL_RoundTrip(t *testing.T) {
	original := sampleInvoice()
	document, id, err := canonical.Build(original)
	require.NoError(t, err)

	parsed, err := parser.ParseUBL(strings.NewReader(document))
	require.NoError(t, err)

	assert.Equal(t, id, parsed.UUID)
	assert.Equal(t, original.Number, parsed.Number)
	assert.Equal(t, original.Type, parsed.Type)
	assert.Equal(t, original.IssueDate, parsed.IssueDate)
	assert.Equal(t, original.IssueTime, parsed.IssueTime)
	assert.Equal(t, original.Seller.Name, parsed.Seller.Name)
	assert.Equal(t, original.Seller.VATNumber, parsed.Seller.VATNumber)
	assert.Equal(t, original.Seller.Address.PostalCode, parsed.Seller.Address.PostalCode)
	assert.Equal(t, original.Buyer.Name, parsed.Buyer.Name)

	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "1", parsed.Items[0].ID)
	assert.Equal(t, "Consulting services", parsed.Items[0].Description)
	assert.Equal(t, model.VATRate15, parsed.Items[0].VATRate)
	assert.True(t, parsed.Items[0].Quantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, parsed.Items[0].UnitPrice.Equal(decimal.NewFromFloat(50.00)))

	assert.True(t, parsed.Subtotal.Equal(original.Subtotal))
	assert.True(t, parsed.VATAmount.Equal(original.VATAmount))
	assert.True(t, parsed.Total.Equal(original.Total))
}

func TestParseUBL_RoundTripValidates(t *testing.T) {
	document, _, err := canonical.Build(sampleInvoice())
	require.NoError(t, err)

	parsed, err := parser.ParseUBLBytes([]byte(document))
	require.NoError(t, err)

	result := validator.Validate(parsed)
	assert.True(t, result.Valid, "round-tripped invoice must validate: %v", result.Errors)
}

func TestParseUBL_ChainReference(t *testing.T) {
	inv := sampleInvoice()
	inv.Type = model.InvoiceTypeCredit
	inv.PreviousInvoiceHash = "Y3VycmVudC1oYXNo"

	document, _, err := canonical.Build(inv)
	require.NoError(t, err)

	parsed, err := parser.ParseUBLBytes([]byte(document))
	require.NoError(t, err)

	assert.Equal(t, model.InvoiceTypeCredit, parsed.Type)
	assert.Equal(t, "Y3VycmVudC1oYXNo", parsed.PreviousInvoiceHash)
}

func TestParseUBL_TypeCodes(t *testing.T) {
	tests := []struct {
		code     string
		expected model.InvoiceType
	}{
		{"388", model.InvoiceTypeStandard},
		{"381", model.InvoiceTypeCredit},
		{"383", model.InvoiceTypeDebit},
	}

	for _, tt := range tests {
		doc := `<Invoice><cbc:InvoiceTypeCode>` + tt.code + `</cbc:InvoiceTypeCode></Invoice>`
		parsed, err := parser.ParseUBLBytes([]byte(doc))
		require.NoError(t, err)
		assert.Equal(t, tt.expected, parsed.Type)
	}
}

func TestParseUBL_NotAnInvoice(t *testing.T) {
	_, err := parser.ParseUBLBytes([]byte(`<Receipt><ID>1</ID></Receipt>`))
	require.Error(t, err)

	var parseErr *model.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseUBL_MalformedXML(t *testing.T) {
	_, err := parser.ParseUBLBytes([]byte(`<Invoice><cbc:ID>unclosed`))
	require.Error(t, err)
}

func TestParseUBL_BadAmount(t *testing.T) {
	doc := `<Invoice><cac:LegalMonetaryTotal><cbc:PayableAmount currencyID="SAR">abc</cbc:PayableAmount></cac:LegalMonetaryTotal></Invoice>`
	_, err := parser.ParseUBLBytes([]byte(doc))
	require.Error(t, err)
}
