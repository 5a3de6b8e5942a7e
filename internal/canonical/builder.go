// Package canonical deterministically serializes a validated invoice into
// a UBL 2.1 document. Identical invoice input always yields byte-identical
// output except for the signature placeholder token, which is spliced in
// later by the signing engine.
package canonical

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	money "github.com/rezonia/clearance-engine/internal/decimal"
	"github.com/rezonia/clearance-engine/internal/model"
)

// SignaturePlaceholder is the single token the signing engine replaces
// with the computed signature block.
const SignaturePlaceholder = "%%SIGNATURE_PLACEHOLDER%%"

// UBL namespaces
const (
	NamespaceInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NamespaceCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NamespaceCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NamespaceEXT     = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
)

// Build serializes the invoice into its canonical document form. The
// invoice UUID is embedded at a fixed location; when the invoice carries
// none, a fresh RFC-4122 identifier is generated. The assigned UUID is
// returned alongside the document for correlation.
func Build(inv *model.Invoice) (string, string, error) {
	if inv == nil {
		return "", "", fmt.Errorf("cannot build document from nil invoice")
	}

	id := inv.UUID
	if id == "" {
		id = uuid.NewString()
	}

	doc := etree.NewDocument()
	doc.WriteSettings = etree.WriteSettings{
		CanonicalEndTags: true,
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}

	root := doc.CreateElement("Invoice")
	root.CreateAttr("xmlns", NamespaceInvoice)
	root.CreateAttr("xmlns:cac", NamespaceCAC)
	root.CreateAttr("xmlns:cbc", NamespaceCBC)
	root.CreateAttr("xmlns:ext", NamespaceEXT)

	// Element order is fixed: header, identifiers, trading parties,
	// tax totals, monetary totals, line items.
	writeSignaturePlaceholder(root)
	writeHeader(root, inv, id)
	writeParty(root, "cac:AccountingSupplierParty", &inv.Seller)
	writeParty(root, "cac:AccountingCustomerParty", &inv.Buyer)
	writeTaxTotal(root, inv)
	writeMonetaryTotal(root, inv)
	for i := range inv.Items {
		writeLine(root, inv, &inv.Items[i])
	}

	out, err := doc.WriteToString()
	if err != nil {
		return "", "", fmt.Errorf("failed to serialize invoice document: %w", err)
	}
	return out, id, nil
}

func writeSignaturePlaceholder(root *etree.Element) {
	exts := root.CreateElement("ext:UBLExtensions")
	ext := exts.CreateElement("ext:UBLExtension")
	ext.CreateElement("ext:ExtensionURI").SetText("urn:oasis:names:specification:ubl:dsig:enveloped:xades")
	ext.CreateElement("ext:ExtensionContent").SetText(SignaturePlaceholder)
}

func writeHeader(root *etree.Element, inv *model.Invoice, id string) {
	root.CreateElement("cbc:ID").SetText(inv.Number)
	root.CreateElement("cbc:UUID").SetText(id)
	root.CreateElement("cbc:IssueDate").SetText(inv.IssueDate)
	root.CreateElement("cbc:IssueTime").SetText(inv.IssueTime)
	root.CreateElement("cbc:InvoiceTypeCode").SetText(inv.Type.TypeCode())
	root.CreateElement("cbc:DocumentCurrencyCode").SetText(inv.CurrencyOrDefault())

	// Chain-link reference only when present
	if inv.PreviousInvoiceHash != "" {
		ref := root.CreateElement("cac:AdditionalDocumentReference")
		ref.CreateElement("cbc:ID").SetText("PIH")
		attachment := ref.CreateElement("cac:Attachment")
		binary := attachment.CreateElement("cbc:EmbeddedDocumentBinaryObject")
		binary.CreateAttr("mimeCode", "text/plain")
		binary.SetText(inv.PreviousInvoiceHash)
	}
}

func writeParty(root *etree.Element, tag string, party *model.Party) {
	wrapper := root.CreateElement(tag)
	p := wrapper.CreateElement("cac:Party")

	addr := p.CreateElement("cac:PostalAddress")
	if party.Address.Street != "" {
		addr.CreateElement("cbc:StreetName").SetText(party.Address.Street)
	}
	if party.Address.City != "" {
		addr.CreateElement("cbc:CityName").SetText(party.Address.City)
	}
	if party.Address.PostalCode != "" {
		addr.CreateElement("cbc:PostalZone").SetText(party.Address.PostalCode)
	}
	if party.Address.CountryCode != "" {
		country := addr.CreateElement("cac:Country")
		country.CreateElement("cbc:IdentificationCode").SetText(party.Address.CountryCode)
	}

	if party.VATNumber != "" {
		scheme := p.CreateElement("cac:PartyTaxScheme")
		scheme.CreateElement("cbc:CompanyID").SetText(party.VATNumber)
		scheme.CreateElement("cac:TaxScheme").CreateElement("cbc:ID").SetText("VAT")
	}

	legal := p.CreateElement("cac:PartyLegalEntity")
	legal.CreateElement("cbc:RegistrationName").SetText(party.Name)
}

func writeTaxTotal(root *etree.Element, inv *model.Invoice) {
	taxTotal := root.CreateElement("cac:TaxTotal")
	writeAmount(taxTotal, "cbc:TaxAmount", inv.VATAmount, inv.CurrencyOrDefault())
}

func writeMonetaryTotal(root *etree.Element, inv *model.Invoice) {
	totals := root.CreateElement("cac:LegalMonetaryTotal")
	currency := inv.CurrencyOrDefault()
	writeAmount(totals, "cbc:LineExtensionAmount", inv.Subtotal, currency)
	writeAmount(totals, "cbc:TaxExclusiveAmount", inv.Subtotal, currency)
	writeAmount(totals, "cbc:TaxInclusiveAmount", inv.Total, currency)
	writeAmount(totals, "cbc:PayableAmount", inv.Total, currency)
}

func writeLine(root *etree.Element, inv *model.Invoice, item *model.LineItem) {
	currency := inv.CurrencyOrDefault()
	line := root.CreateElement("cac:InvoiceLine")
	line.CreateElement("cbc:ID").SetText(item.ID)

	qty := line.CreateElement("cbc:InvoicedQuantity")
	qty.CreateAttr("unitCode", "PCE")
	qty.SetText(item.Quantity.String())

	writeAmount(line, "cbc:LineExtensionAmount", item.Total, currency)

	taxTotal := line.CreateElement("cac:TaxTotal")
	writeAmount(taxTotal, "cbc:TaxAmount", item.VATAmount, currency)
	writeAmount(taxTotal, "cbc:RoundingAmount", item.Total.Add(item.VATAmount), currency)

	itemElem := line.CreateElement("cac:Item")
	itemElem.CreateElement("cbc:Name").SetText(item.Description)
	category := itemElem.CreateElement("cac:ClassifiedTaxCategory")
	category.CreateElement("cbc:Percent").SetText(fmt.Sprintf("%d", item.VATRate))
	category.CreateElement("cac:TaxScheme").CreateElement("cbc:ID").SetText("VAT")

	price := line.CreateElement("cac:Price")
	writeAmount(price, "cbc:PriceAmount", item.UnitPrice, currency)
}

func writeAmount(parent *etree.Element, tag string, amount decimal.Decimal, currency string) {
	elem := parent.CreateElement(tag)
	elem.CreateAttr("currencyID", currency)
	elem.SetText(money.Format(amount))
}

// ExtractUUID re-extracts the embedded UUID from a built or signed
// document for correlation with the authority response.
func ExtractUUID(document string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(document); err != nil {
		return "", fmt.Errorf("failed to parse document: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("empty document")
	}
	elem := root.FindElement("cbc:UUID")
	if elem == nil {
		for _, child := range root.ChildElements() {
			if child.Tag == "UUID" {
				elem = child
				break
			}
		}
	}
	if elem == nil || elem.Text() == "" {
		return "", fmt.Errorf("no UUID element found in document")
	}
	return elem.Text(), nil
}
