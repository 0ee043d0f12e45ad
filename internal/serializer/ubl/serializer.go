// Package ubl serializes invoices as UBL 2.1 Invoice XML conforming to the
// XRechnung standard.
package ubl

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/rezonia/xrechnung-converter/internal/model"
)

// XML namespaces of the UBL 2.1 invoice schema.
const (
	NsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NsCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NsCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
)

// Serializer renders an aggregated invoice as XRechnung UBL. Serialization is
// pure: the same invoice always yields byte-identical output.
type Serializer struct{}

// New creates a UBL serializer.
func New() *Serializer {
	return &Serializer{}
}

// Format returns the output format this serializer produces.
func (s *Serializer) Format() model.OutputFormat {
	return model.FormatUBL
}

// Serialize renders inv as a complete UBL invoice. The invoice must already
// carry aggregated trade taxes and monetary summation.
func (s *Serializer) Serialize(inv *model.Invoice) ([]byte, error) {
	if err := checkExemptionReasons(inv); err != nil {
		return nil, err
	}
	data := buildDocData(inv)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Invoice")
	root.CreateAttr("xmlns", NsInvoice)
	root.CreateAttr("xmlns:cac", NsCAC)
	root.CreateAttr("xmlns:cbc", NsCBC)

	writeHeader(root, &data)
	writeParties(root, &data)
	writeDelivery(root, &data)
	writePaymentMeans(root, &data)
	writePaymentTerms(root, &data)
	writeAllowanceCharges(root, &data)
	writeTaxTotal(root, &data)
	writeMonetaryTotal(root, &data)
	writeLines(root, &data)

	doc.Indent(2)
	return doc.WriteToBytes()
}

func checkExemptionReasons(inv *model.Invoice) error {
	for _, tax := range inv.Trade.Settlement.TradeTaxes {
		if tax.RequiresExemptionReason() && tax.ExemptionReasonCode == "" {
			return model.NewSerializationError(model.FormatUBL,
				"trade.settlement.trade_tax",
				"tax category "+tax.Category+" requires an exemption reason code")
		}
	}
	return nil
}

func writeHeader(root *etree.Element, d *docData) {
	writeCbc(root, "cbc:CustomizationID", d.CustomizationID)
	writeCbc(root, "cbc:ProfileID", d.ProfileID)
	writeCbc(root, "cbc:ID", d.ID)
	writeCbc(root, "cbc:IssueDate", d.IssueDate.Format("2006-01-02"))
	if !d.DueDate.IsZero() {
		writeCbc(root, "cbc:DueDate", d.DueDate.Format("2006-01-02"))
	}
	writeCbc(root, "cbc:InvoiceTypeCode", d.TypeCode)
	if d.Note != "" {
		writeCbc(root, "cbc:Note", d.Note)
	}
	writeCbc(root, "cbc:DocumentCurrencyCode", d.Currency)
	if d.BuyerRef != "" {
		writeCbc(root, "cbc:BuyerReference", d.BuyerRef)
	}

	if d.Period != nil {
		period := root.CreateElement("cac:InvoicePeriod")
		if !d.Period.Start.IsZero() {
			writeCbc(period, "cbc:StartDate", d.Period.Start.Format("2006-01-02"))
		}
		if !d.Period.End.IsZero() {
			writeCbc(period, "cbc:EndDate", d.Period.End.Format("2006-01-02"))
		}
	}
	if d.OrderRef != "" {
		order := root.CreateElement("cac:OrderReference")
		writeCbc(order, "cbc:ID", d.OrderRef)
	}
	if d.PrevBillingRef != "" {
		billing := root.CreateElement("cac:BillingReference")
		ref := billing.CreateElement("cac:InvoiceDocumentReference")
		writeCbc(ref, "cbc:ID", d.PrevBillingRef)
		if !d.PrevBillingDate.IsZero() {
			writeCbc(ref, "cbc:IssueDate", d.PrevBillingDate.Format("2006-01-02"))
		}
	}
	if d.ContractRef != "" {
		contract := root.CreateElement("cac:ContractDocumentReference")
		writeCbc(contract, "cbc:ID", d.ContractRef)
	}
	for _, ref := range d.DocumentRefs {
		add := root.CreateElement("cac:AdditionalDocumentReference")
		writeCbc(add, "cbc:ID", ref)
	}
	if d.ObjectRef != "" {
		// Invoiced object identifier carries UNCL1001 code 130.
		add := root.CreateElement("cac:AdditionalDocumentReference")
		writeCbc(add, "cbc:ID", d.ObjectRef)
		writeCbc(add, "cbc:DocumentTypeCode", "130")
	}
	if d.DocumentRef != "" {
		add := root.CreateElement("cac:AdditionalDocumentReference")
		writeCbc(add, "cbc:ID", d.DocumentRef)
	}
	if d.ProjectRef != "" {
		project := root.CreateElement("cac:ProjectReference")
		writeCbc(project, "cbc:ID", d.ProjectRef)
	}
}

func writeParties(root *etree.Element, d *docData) {
	supplier := root.CreateElement("cac:AccountingSupplierParty")
	writeParty(supplier, &d.Seller, true)

	customer := root.CreateElement("cac:AccountingCustomerParty")
	writeParty(customer, &d.Buyer, false)
}

func writeParty(parent *etree.Element, p *model.Party, withTax bool) {
	party := parent.CreateElement("cac:Party")

	if p.ID != "" {
		ident := party.CreateElement("cac:PartyIdentification")
		writeCbc(ident, "cbc:ID", p.ID)
	}

	name := party.CreateElement("cac:PartyName")
	writeCbc(name, "cbc:Name", p.Name)

	addr := party.CreateElement("cac:PostalAddress")
	if p.Address.Street != "" {
		writeCbc(addr, "cbc:StreetName", p.Address.Street)
	}
	if p.Address.Street2 != "" {
		writeCbc(addr, "cbc:AdditionalStreetName", p.Address.Street2)
	}
	writeCbc(addr, "cbc:CityName", p.Address.City)
	writeCbc(addr, "cbc:PostalZone", p.Address.PostalCode)
	if p.Address.Subdivision != "" {
		writeCbc(addr, "cbc:CountrySubentity", p.Address.Subdivision)
	}
	country := addr.CreateElement("cac:Country")
	writeCbc(country, "cbc:IdentificationCode", p.Address.CountryCode)

	if withTax && p.TaxID() != "" {
		scheme := party.CreateElement("cac:PartyTaxScheme")
		writeCbc(scheme, "cbc:CompanyID", p.TaxID())
		tax := scheme.CreateElement("cac:TaxScheme")
		writeCbc(tax, "cbc:ID", "VAT")
	}

	legal := party.CreateElement("cac:PartyLegalEntity")
	writeCbc(legal, "cbc:RegistrationName", p.Name)
	if p.RegisterNumber != "" {
		writeCbc(legal, "cbc:CompanyID", p.RegisterNumber)
	}
	if p.LegalForm != "" {
		writeCbc(legal, "cbc:CompanyLegalForm", p.LegalForm)
	}

	if p.ContactName != "" || p.Phone != "" || p.Email != "" {
		contact := party.CreateElement("cac:Contact")
		if p.ContactName != "" {
			writeCbc(contact, "cbc:Name", p.ContactName)
		}
		if p.Phone != "" {
			writeCbc(contact, "cbc:Telephone", p.Phone)
		}
		if p.Email != "" {
			writeCbc(contact, "cbc:ElectronicMail", p.Email)
		}
	}
}

func writeDelivery(root *etree.Element, d *docData) {
	if d.Delivery == nil {
		return
	}
	delivery := root.CreateElement("cac:Delivery")
	if !d.Delivery.Date.IsZero() {
		writeCbc(delivery, "cbc:ActualDeliveryDate", d.Delivery.Date.Format("2006-01-02"))
	}
	if d.Delivery.PartyName != "" || d.Delivery.LocationID != "" {
		location := delivery.CreateElement("cac:DeliveryLocation")
		if d.Delivery.LocationID != "" {
			writeCbc(location, "cbc:ID", d.Delivery.LocationID)
		}
		addr := location.CreateElement("cac:Address")
		if d.Delivery.Address.Street != "" {
			writeCbc(addr, "cbc:StreetName", d.Delivery.Address.Street)
		}
		if d.Delivery.Address.City != "" {
			writeCbc(addr, "cbc:CityName", d.Delivery.Address.City)
		}
		if d.Delivery.Address.PostalCode != "" {
			writeCbc(addr, "cbc:PostalZone", d.Delivery.Address.PostalCode)
		}
		if d.Delivery.Address.CountryCode != "" {
			country := addr.CreateElement("cac:Country")
			writeCbc(country, "cbc:IdentificationCode", d.Delivery.Address.CountryCode)
		}
	}
	if d.Delivery.PartyName != "" {
		party := delivery.CreateElement("cac:DeliveryParty")
		name := party.CreateElement("cac:PartyName")
		writeCbc(name, "cbc:Name", d.Delivery.PartyName)
	}
}

func writePaymentMeans(root *etree.Element, d *docData) {
	means := root.CreateElement("cac:PaymentMeans")
	writeCbc(means, "cbc:PaymentMeansCode", d.PaymentMeansCode)
	if d.PaymentRef != "" {
		writeCbc(means, "cbc:PaymentID", d.PaymentRef)
	}
	if d.IBAN != "" {
		account := means.CreateElement("cac:PayeeFinancialAccount")
		writeCbc(account, "cbc:ID", d.IBAN)
		if d.AccountName != "" {
			writeCbc(account, "cbc:Name", d.AccountName)
		}
		if d.BIC != "" {
			branch := account.CreateElement("cac:FinancialInstitutionBranch")
			writeCbc(branch, "cbc:ID", d.BIC)
		}
	}
}

func writePaymentTerms(root *etree.Element, d *docData) {
	note := d.PaymentTerms
	if note == "" {
		if days := d.DueDays(); days > 0 {
			note = fmt.Sprintf("Zahlbar innerhalb von %d Tagen ohne Abzug.", days)
		}
	}
	if note == "" {
		return
	}
	terms := root.CreateElement("cac:PaymentTerms")
	writeCbc(terms, "cbc:Note", note)
}

func writeAllowanceCharges(root *etree.Element, d *docData) {
	for i := range d.AllowanceCharges {
		ac := &d.AllowanceCharges[i]
		elem := root.CreateElement("cac:AllowanceCharge")
		if ac.Charge {
			writeCbc(elem, "cbc:ChargeIndicator", "true")
		} else {
			writeCbc(elem, "cbc:ChargeIndicator", "false")
		}
		if ac.Reason != "" {
			writeCbc(elem, "cbc:AllowanceChargeReason", ac.Reason)
		}
		if !ac.Percent.IsZero() {
			writeCbc(elem, "cbc:MultiplierFactorNumeric", ac.Percent.StringFixed(2))
		}
		writeAmount(elem, "cbc:Amount", ac.Amount, d.Currency)
		if !ac.Basis.IsZero() {
			writeAmount(elem, "cbc:BaseAmount", ac.Basis, d.Currency)
		}
		if ac.TaxCategory != "" {
			category := elem.CreateElement("cac:TaxCategory")
			writeCbc(category, "cbc:ID", ac.TaxCategory)
			writeCbc(category, "cbc:Percent", ac.TaxRate.StringFixed(2))
			scheme := category.CreateElement("cac:TaxScheme")
			writeCbc(scheme, "cbc:ID", "VAT")
		}
	}
}

func writeTaxTotal(root *etree.Element, d *docData) {
	total := root.CreateElement("cac:TaxTotal")
	writeAmount(total, "cbc:TaxAmount", d.TaxTotal, d.Currency)

	for i := range d.Subtotals {
		t := &d.Subtotals[i]
		sub := total.CreateElement("cac:TaxSubtotal")
		writeAmount(sub, "cbc:TaxableAmount", t.Basis, d.Currency)
		writeAmount(sub, "cbc:TaxAmount", t.Amount, d.Currency)
		category := sub.CreateElement("cac:TaxCategory")
		writeCbc(category, "cbc:ID", t.Category)
		writeCbc(category, "cbc:Percent", t.Rate.StringFixed(2))
		if t.ExemptionReasonCode != "" {
			writeCbc(category, "cbc:TaxExemptionReasonCode", t.ExemptionReasonCode)
		}
		scheme := category.CreateElement("cac:TaxScheme")
		writeCbc(scheme, "cbc:ID", "VAT")
	}
}

func writeMonetaryTotal(root *etree.Element, d *docData) {
	total := root.CreateElement("cac:LegalMonetaryTotal")
	writeAmount(total, "cbc:LineExtensionAmount", d.LineExtension, d.Currency)
	writeAmount(total, "cbc:TaxExclusiveAmount", d.TaxExclusive, d.Currency)
	writeAmount(total, "cbc:TaxInclusiveAmount", d.TaxInclusive, d.Currency)
	if !d.AllowanceTotal.IsZero() {
		writeAmount(total, "cbc:AllowanceTotalAmount", d.AllowanceTotal, d.Currency)
	}
	if !d.ChargeTotal.IsZero() {
		writeAmount(total, "cbc:ChargeTotalAmount", d.ChargeTotal, d.Currency)
	}
	if d.Prepaid.Valid {
		writeAmount(total, "cbc:PrepaidAmount", d.Prepaid.Decimal, d.Currency)
	}
	if d.Rounding.Valid {
		writeAmount(total, "cbc:PayableRoundingAmount", d.Rounding.Decimal, d.Currency)
	}
	writeAmount(total, "cbc:PayableAmount", d.Payable, d.Currency)
}

func writeLines(root *etree.Element, d *docData) {
	for i := range d.Lines {
		item := &d.Lines[i]
		line := root.CreateElement("cac:InvoiceLine")
		writeCbc(line, "cbc:ID", item.ID)

		qty := line.CreateElement("cbc:InvoicedQuantity")
		qty.CreateAttr("unitCode", item.UnitCode)
		qty.SetText(item.Quantity.String())

		writeAmount(line, "cbc:LineExtensionAmount", item.Total, d.Currency)

		if !item.PeriodStart.IsZero() || !item.PeriodEnd.IsZero() {
			period := line.CreateElement("cac:InvoicePeriod")
			if !item.PeriodStart.IsZero() {
				writeCbc(period, "cbc:StartDate", item.PeriodStart.Format("2006-01-02"))
			}
			if !item.PeriodEnd.IsZero() {
				writeCbc(period, "cbc:EndDate", item.PeriodEnd.Format("2006-01-02"))
			}
		}
		if item.OrderPosition != "" {
			orderLine := line.CreateElement("cac:OrderLineReference")
			writeCbc(orderLine, "cbc:LineID", item.OrderPosition)
		}

		itemElem := line.CreateElement("cac:Item")
		if item.Description != "" {
			writeCbc(itemElem, "cbc:Description", item.Description)
		}
		writeCbc(itemElem, "cbc:Name", item.Name)
		if item.ArticleID != "" {
			ident := itemElem.CreateElement("cac:SellersItemIdentification")
			writeCbc(ident, "cbc:ID", item.ArticleID)
		}
		category := itemElem.CreateElement("cac:ClassifiedTaxCategory")
		writeCbc(category, "cbc:ID", item.Tax.Category)
		writeCbc(category, "cbc:Percent", item.Tax.Rate.StringFixed(2))
		scheme := category.CreateElement("cac:TaxScheme")
		writeCbc(scheme, "cbc:ID", "VAT")

		price := line.CreateElement("cac:Price")
		writeAmount(price, "cbc:PriceAmount", item.NetPrice, d.Currency)
	}
}

func writeCbc(parent *etree.Element, tag, text string) {
	parent.CreateElement(tag).SetText(text)
}

func writeAmount(parent *etree.Element, tag string, d decimal.Decimal, currency string) {
	elem := parent.CreateElement(tag)
	elem.CreateAttr("currencyID", currency)
	elem.SetText(d.StringFixed(2))
}
