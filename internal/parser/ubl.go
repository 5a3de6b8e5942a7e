// Package parser reads UBL invoice documents back into the invoice
// model, the inverse of the canonical builder. Used to inspect cleared
// documents returned by the authority and to re-validate stored ones.
package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rezonia/clearance-engine/internal/model"
)

// UBL XML structures. Tags match by local name, which covers the
// cbc:/cac: namespace prefixes of the canonical form.
type ublInvoice struct {
	XMLName      xml.Name         `xml:"Invoice"`
	ID           string           `xml:"ID"`
	UUID         string           `xml:"UUID"`
	IssueDate    string           `xml:"IssueDate"`
	IssueTime    string           `xml:"IssueTime"`
	TypeCode     string           `xml:"InvoiceTypeCode"`
	CurrencyCode string           `xml:"DocumentCurrencyCode"`
	DocRefs      []ublDocRef      `xml:"AdditionalDocumentReference"`
	Supplier     ublPartyWrapper  `xml:"AccountingSupplierParty"`
	Customer     ublPartyWrapper  `xml:"AccountingCustomerParty"`
	TaxTotal     ublTaxTotal      `xml:"TaxTotal"`
	Totals       ublMonetaryTotal `xml:"LegalMonetaryTotal"`
	Lines        []ublLine        `xml:"InvoiceLine"`
}

type ublDocRef struct {
	ID         string `xml:"ID"`
	Attachment struct {
		Binary struct {
			MimeCode string `xml:"mimeCode,attr"`
			Value    string `xml:",chardata"`
		} `xml:"EmbeddedDocumentBinaryObject"`
	} `xml:"Attachment"`
}

type ublPartyWrapper struct {
	Party ublParty `xml:"Party"`
}

type ublParty struct {
	Address struct {
		Street     string `xml:"StreetName"`
		City       string `xml:"CityName"`
		PostalZone string `xml:"PostalZone"`
		Country    struct {
			Code string `xml:"IdentificationCode"`
		} `xml:"Country"`
	} `xml:"PostalAddress"`
	TaxScheme struct {
		CompanyID string `xml:"CompanyID"`
	} `xml:"PartyTaxScheme"`
	Legal struct {
		RegistrationName string `xml:"RegistrationName"`
	} `xml:"PartyLegalEntity"`
}

type ublAmount struct {
	Currency string `xml:"currencyID,attr"`
	Value    string `xml:",chardata"`
}

type ublTaxTotal struct {
	TaxAmount ublAmount `xml:"TaxAmount"`
}

type ublMonetaryTotal struct {
	LineExtensionAmount ublAmount `xml:"LineExtensionAmount"`
	TaxExclusiveAmount  ublAmount `xml:"TaxExclusiveAmount"`
	TaxInclusiveAmount  ublAmount `xml:"TaxInclusiveAmount"`
	PayableAmount       ublAmount `xml:"PayableAmount"`
}

type ublLine struct {
	ID       string `xml:"ID"`
	Quantity struct {
		UnitCode string `xml:"unitCode,attr"`
		Value    string `xml:",chardata"`
	} `xml:"InvoicedQuantity"`
	LineExtensionAmount ublAmount   `xml:"LineExtensionAmount"`
	TaxTotal            ublTaxTotal `xml:"TaxTotal"`
	Item                struct {
		Name     string `xml:"Name"`
		Category struct {
			Percent string `xml:"Percent"`
		} `xml:"ClassifiedTaxCategory"`
	} `xml:"Item"`
	Price struct {
		PriceAmount ublAmount `xml:"PriceAmount"`
	} `xml:"Price"`
}

// ParseUBL reads a UBL invoice document into the invoice model. Signature
// blocks and extension content are ignored; the returned invoice carries
// only the business fields and can be re-validated or re-built.
func ParseUBL(r io.Reader) (*model.Invoice, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError("content", "failed to read document", err)
	}
	return ParseUBLBytes(content)
}

// ParseUBLBytes is ParseUBL over a byte slice
func ParseUBLBytes(content []byte) (*model.Invoice, error) {
	if !bytes.Contains(content, []byte("<Invoice")) {
		return nil, model.NewParseError("root", "document has no Invoice root element", nil)
	}

	var doc ublInvoice
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, model.NewParseError("xml", "failed to parse document", err)
	}

	var err error
	inv := &model.Invoice{
		UUID:      doc.UUID,
		Number:    doc.ID,
		Type:      typeFromCode(doc.TypeCode),
		IssueDate: doc.IssueDate,
		IssueTime: doc.IssueTime,
		Currency:  doc.CurrencyCode,
		Seller:    partyFromUBL(&doc.Supplier.Party),
		Buyer:     partyFromUBL(&doc.Customer.Party),
	}

	for _, ref := range doc.DocRefs {
		if ref.ID == "PIH" {
			inv.PreviousInvoiceHash = strings.TrimSpace(ref.Attachment.Binary.Value)
		}
	}

	if inv.Subtotal, err = parseAmount(doc.Totals.LineExtensionAmount, "subtotal"); err != nil {
		return nil, err
	}
	if inv.VATAmount, err = parseAmount(doc.TaxTotal.TaxAmount, "vat_amount"); err != nil {
		return nil, err
	}
	if inv.Total, err = parseAmount(doc.Totals.PayableAmount, "total"); err != nil {
		return nil, err
	}

	for i := range doc.Lines {
		item, err := lineFromUBL(&doc.Lines[i], i)
		if err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, item)
	}

	return inv, nil
}

func lineFromUBL(line *ublLine, idx int) (model.LineItem, error) {
	field := fmt.Sprintf("items[%d]", idx)

	item := model.LineItem{
		ID:          line.ID,
		Description: line.Item.Name,
	}

	var err error
	if item.Quantity, err = parseDecimal(line.Quantity.Value, field+".quantity"); err != nil {
		return item, err
	}
	if item.UnitPrice, err = parseAmount(line.Price.PriceAmount, field+".unit_price"); err != nil {
		return item, err
	}
	if item.VATAmount, err = parseAmount(line.TaxTotal.TaxAmount, field+".vat_amount"); err != nil {
		return item, err
	}
	if item.Total, err = parseAmount(line.LineExtensionAmount, field+".total"); err != nil {
		return item, err
	}

	if line.Item.Category.Percent != "" {
		rate, err := strconv.Atoi(line.Item.Category.Percent)
		if err != nil {
			return item, model.NewParseError(field+".vat_rate",
				"invalid VAT percent "+line.Item.Category.Percent, err)
		}
		item.VATRate = model.VATRate(rate)
	}

	return item, nil
}

func partyFromUBL(p *ublParty) model.Party {
	return model.Party{
		Name:      p.Legal.RegistrationName,
		VATNumber: p.TaxScheme.CompanyID,
		Address: model.Address{
			Street:      p.Address.Street,
			City:        p.Address.City,
			PostalCode:  p.Address.PostalZone,
			CountryCode: p.Address.Country.Code,
		},
	}
}

func typeFromCode(code string) model.InvoiceType {
	switch code {
	case "388":
		return model.InvoiceTypeStandard
	case "381":
		return model.InvoiceTypeCredit
	case "383":
		return model.InvoiceTypeDebit
	default:
		return model.InvoiceType(code)
	}
}

func parseAmount(a ublAmount, field string) (decimal.Decimal, error) {
	return parseDecimal(a.Value, field)
}

func parseDecimal(value, field string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, model.NewParseError(field, "invalid amount "+value, err)
	}
	return d, nil
}
