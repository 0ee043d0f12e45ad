// Package cii serializes invoices as UN/CEFACT Cross Industry Invoice XML,
// profile Factur-X extended.
package cii

import (
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/rezonia/xrechnung-converter/internal/model"
)

// XML namespaces of the CII D16B schema set.
const (
	NsRSM = "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
	NsRAM = "urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100"
	NsQDT = "urn:un:unece:uncefact:data:standard:QualifiedDataType:100"
	NsUDT = "urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100"
)

// DefaultDocumentName is emitted when the header carries no document name.
const DefaultDocumentName = "RECHNUNG"

// dateFormatCalendar is UNCL2379 code 102, calendar date as YYYYMMDD.
const dateFormatCalendar = "102"

// Serializer renders an aggregated invoice as CII XML. Serialization is pure:
// the same invoice always yields byte-identical output.
type Serializer struct{}

// New creates a CII serializer.
func New() *Serializer {
	return &Serializer{}
}

// Format returns the output format this serializer produces.
func (s *Serializer) Format() model.OutputFormat {
	return model.FormatCII
}

// Serialize renders inv as a complete CII document. The invoice must already
// carry aggregated trade taxes and monetary summation.
func (s *Serializer) Serialize(inv *model.Invoice) ([]byte, error) {
	if err := checkExemptionReasons(inv); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("rsm:CrossIndustryInvoice")
	root.CreateAttr("xmlns:rsm", NsRSM)
	root.CreateAttr("xmlns:ram", NsRAM)
	root.CreateAttr("xmlns:qdt", NsQDT)
	root.CreateAttr("xmlns:udt", NsUDT)

	writeContext(root, inv)
	writeExchangedDocument(root, inv)
	writeTransaction(root, inv)

	doc.Indent(2)
	return doc.WriteToBytes()
}

// checkExemptionReasons rejects invoices whose tax subtotals use an exemption
// category without a reason code. The aggregator defaults reverse-charge
// subtotals, so a missing code here is an input defect.
func checkExemptionReasons(inv *model.Invoice) error {
	for _, tax := range inv.Trade.Settlement.TradeTaxes {
		if tax.RequiresExemptionReason() && tax.ExemptionReasonCode == "" {
			return model.NewSerializationError(model.FormatCII,
				"trade.settlement.trade_tax",
				"tax category "+tax.Category+" requires an exemption reason code")
		}
	}
	return nil
}

func writeContext(root *etree.Element, inv *model.Invoice) {
	ctx := root.CreateElement("rsm:ExchangedDocumentContext")
	guideline := ctx.CreateElement("ram:GuidelineSpecifiedDocumentContextParameter")
	guideline.CreateElement("ram:ID").SetText(inv.GuidelineID)
}

func writeExchangedDocument(root *etree.Element, inv *model.Invoice) {
	doc := root.CreateElement("rsm:ExchangedDocument")
	doc.CreateElement("ram:ID").SetText(inv.Header.ID)

	name := inv.Header.Name
	if name == "" {
		name = DefaultDocumentName
	}
	doc.CreateElement("ram:Name").SetText(name)
	doc.CreateElement("ram:TypeCode").SetText(inv.Header.TypeCode)
	writeDate(doc, "ram:IssueDateTime", inv.Header.IssueDate)
	if inv.Header.LanguageID != "" {
		doc.CreateElement("ram:LanguageID").SetText(inv.Header.LanguageID)
	}

	if inv.IntroText != "" {
		note := doc.CreateElement("ram:IncludedNote")
		note.CreateElement("ram:Content").SetText(inv.IntroText)
	}
	for _, text := range inv.Header.Notes {
		note := doc.CreateElement("ram:IncludedNote")
		note.CreateElement("ram:Content").SetText(text)
	}
}

func writeTransaction(root *etree.Element, inv *model.Invoice) {
	tx := root.CreateElement("rsm:SupplyChainTradeTransaction")

	// Schema order: line items first, then the header agreement, delivery
	// and settlement aggregates.
	for i := range inv.Trade.Items {
		writeLineItem(tx, &inv.Trade.Items[i])
	}
	writeHeaderAgreement(tx, inv)
	writeHeaderDelivery(tx, inv)
	writeHeaderSettlement(tx, inv)
}

func writeLineItem(tx *etree.Element, item *model.LineItem) {
	line := tx.CreateElement("ram:IncludedSupplyChainTradeLineItem")

	lineDoc := line.CreateElement("ram:AssociatedDocumentLineDocument")
	lineDoc.CreateElement("ram:LineID").SetText(item.ID)

	product := line.CreateElement("ram:SpecifiedTradeProduct")
	if item.ArticleID != "" {
		product.CreateElement("ram:SellerAssignedID").SetText(item.ArticleID)
	}
	product.CreateElement("ram:Name").SetText(item.Name)
	if item.Description != "" {
		product.CreateElement("ram:Description").SetText(item.Description)
	}

	agreement := line.CreateElement("ram:SpecifiedLineTradeAgreement")
	if item.OrderPosition != "" {
		orderRef := agreement.CreateElement("ram:BuyerOrderReferencedDocument")
		orderRef.CreateElement("ram:LineID").SetText(item.OrderPosition)
	}
	price := agreement.CreateElement("ram:NetPriceProductTradePrice")
	writeAmount(price, "ram:ChargeAmount", item.NetPrice)

	delivery := line.CreateElement("ram:SpecifiedLineTradeDelivery")
	qty := delivery.CreateElement("ram:BilledQuantity")
	qty.CreateAttr("unitCode", item.UnitCode)
	qty.SetText(item.Quantity.StringFixed(4))

	settlement := line.CreateElement("ram:SpecifiedLineTradeSettlement")
	tax := settlement.CreateElement("ram:ApplicableTradeTax")
	tax.CreateElement("ram:TypeCode").SetText("VAT")
	if item.Tax.ExemptionReasonCode != "" {
		tax.CreateElement("ram:ExemptionReasonCode").SetText(item.Tax.ExemptionReasonCode)
	}
	tax.CreateElement("ram:CategoryCode").SetText(item.Tax.Category)
	tax.CreateElement("ram:RateApplicablePercent").SetText(item.Tax.Rate.StringFixed(2))

	if !item.PeriodStart.IsZero() || !item.PeriodEnd.IsZero() {
		period := settlement.CreateElement("ram:BillingSpecifiedPeriod")
		if !item.PeriodStart.IsZero() {
			writeDate(period, "ram:StartDateTime", item.PeriodStart)
		}
		if !item.PeriodEnd.IsZero() {
			writeDate(period, "ram:EndDateTime", item.PeriodEnd)
		}
	}

	sum := settlement.CreateElement("ram:SpecifiedTradeSettlementLineMonetarySummation")
	writeAmount(sum, "ram:LineTotalAmount", item.Total)
}

func writeHeaderAgreement(tx *etree.Element, inv *model.Invoice) {
	agreement := tx.CreateElement("ram:ApplicableHeaderTradeAgreement")
	a := &inv.Trade.Agreement

	if inv.Header.LeitwegID != "" {
		agreement.CreateElement("ram:BuyerReference").SetText(inv.Header.LeitwegID)
	}
	writeTradeParty(agreement, "ram:SellerTradeParty", &a.Seller, true)
	writeTradeParty(agreement, "ram:BuyerTradeParty", &a.Buyer, false)

	if a.SellerOrderID != "" {
		ref := agreement.CreateElement("ram:SellerOrderReferencedDocument")
		ref.CreateElement("ram:IssuerAssignedID").SetText(a.SellerOrderID)
	}
	if a.BuyerOrderID != "" {
		ref := agreement.CreateElement("ram:BuyerOrderReferencedDocument")
		ref.CreateElement("ram:IssuerAssignedID").SetText(a.BuyerOrderID)
		if len(a.OrderDates) > 0 {
			writeFormattedDate(ref, "ram:FormattedIssueDateTime", a.OrderDates[0])
		}
	}
	if a.ContractReference != "" {
		ref := agreement.CreateElement("ram:ContractReferencedDocument")
		ref.CreateElement("ram:IssuerAssignedID").SetText(a.ContractReference)
	}
	for _, docRef := range inv.DocumentReferences {
		ref := agreement.CreateElement("ram:AdditionalReferencedDocument")
		ref.CreateElement("ram:IssuerAssignedID").SetText(docRef)
		ref.CreateElement("ram:TypeCode").SetText("916")
	}
	if a.ObjectReference != "" {
		ref := agreement.CreateElement("ram:AdditionalReferencedDocument")
		ref.CreateElement("ram:IssuerAssignedID").SetText(a.ObjectReference)
		ref.CreateElement("ram:TypeCode").SetText("130")
	}
	if a.DocumentReference != "" {
		ref := agreement.CreateElement("ram:AdditionalReferencedDocument")
		ref.CreateElement("ram:IssuerAssignedID").SetText(a.DocumentReference)
		ref.CreateElement("ram:TypeCode").SetText("916")
	}
	if a.ProjectReference != "" {
		project := agreement.CreateElement("ram:SpecifiedProcuringProject")
		project.CreateElement("ram:ID").SetText(a.ProjectReference)
		project.CreateElement("ram:Name").SetText(a.ProjectReference)
	}
}

// writeTradeParty renders a party aggregate. Tax registrations are emitted for
// the seller only; scheme VA marks a VAT id, FC a national tax number.
func writeTradeParty(parent *etree.Element, tag string, p *model.Party, withTax bool) {
	party := parent.CreateElement(tag)
	if p.ID != "" {
		party.CreateElement("ram:ID").SetText(p.ID)
	}
	party.CreateElement("ram:Name").SetText(p.Name)

	if p.RegisterName != "" || p.RegisterNumber != "" {
		legal := party.CreateElement("ram:SpecifiedLegalOrganization")
		if p.RegisterNumber != "" {
			legal.CreateElement("ram:ID").SetText(p.RegisterNumber)
		}
		if p.RegisterName != "" {
			legal.CreateElement("ram:TradingBusinessName").SetText(p.RegisterName)
		}
	}

	if p.ContactName != "" || p.Phone != "" || p.Fax != "" || p.Email != "" {
		contact := party.CreateElement("ram:DefinedTradeContact")
		if p.ContactName != "" {
			contact.CreateElement("ram:PersonName").SetText(p.ContactName)
		}
		if p.Phone != "" {
			tel := contact.CreateElement("ram:TelephoneUniversalCommunication")
			tel.CreateElement("ram:CompleteNumber").SetText(p.Phone)
		}
		if p.Fax != "" {
			fax := contact.CreateElement("ram:FaxUniversalCommunication")
			fax.CreateElement("ram:CompleteNumber").SetText(p.Fax)
		}
		if p.Email != "" {
			mail := contact.CreateElement("ram:EmailURIUniversalCommunication")
			mail.CreateElement("ram:URIID").SetText(p.Email)
		}
	}

	writeAddress(party, &p.Address)

	if withTax {
		if p.VATID != "" {
			reg := party.CreateElement("ram:SpecifiedTaxRegistration")
			id := reg.CreateElement("ram:ID")
			id.CreateAttr("schemeID", "VA")
			id.SetText(p.VATID)
		}
		if p.TaxNumber != "" {
			reg := party.CreateElement("ram:SpecifiedTaxRegistration")
			id := reg.CreateElement("ram:ID")
			id.CreateAttr("schemeID", "FC")
			id.SetText(p.TaxNumber)
		}
	}
}

func writeAddress(party *etree.Element, a *model.Address) {
	addr := party.CreateElement("ram:PostalTradeAddress")
	addr.CreateElement("ram:PostcodeCode").SetText(a.PostalCode)
	addr.CreateElement("ram:LineOne").SetText(a.Street)
	if a.Street2 != "" {
		addr.CreateElement("ram:LineTwo").SetText(a.Street2)
	}
	addr.CreateElement("ram:CityName").SetText(a.City)
	addr.CreateElement("ram:CountryID").SetText(a.CountryCode)
	if a.Subdivision != "" {
		addr.CreateElement("ram:CountrySubDivisionName").SetText(a.Subdivision)
	}
}

func writeHeaderDelivery(tx *etree.Element, inv *model.Invoice) {
	delivery := tx.CreateElement("ram:ApplicableHeaderTradeDelivery")
	d := inv.Trade.Delivery
	if d == nil {
		return
	}

	if d.PartyName != "" {
		shipTo := delivery.CreateElement("ram:ShipToTradeParty")
		shipTo.CreateElement("ram:Name").SetText(d.PartyName)
		if d.LocationID != "" {
			shipTo.CreateElement("ram:ID").SetText(d.LocationID)
		}
		writeAddress(shipTo, &d.Address)
	}
	if !d.Date.IsZero() {
		event := delivery.CreateElement("ram:ActualDeliverySupplyChainEvent")
		writeDate(event, "ram:OccurrenceDateTime", d.Date)
	}
	if d.NoteID != "" {
		note := delivery.CreateElement("ram:DeliveryNoteReferencedDocument")
		note.CreateElement("ram:IssuerAssignedID").SetText(d.NoteID)
	}
}

func writeHeaderSettlement(tx *etree.Element, inv *model.Invoice) {
	settlement := tx.CreateElement("ram:ApplicableHeaderTradeSettlement")
	st := &inv.Trade.Settlement

	if st.PaymentReference != "" {
		settlement.CreateElement("ram:PaymentReference").SetText(st.PaymentReference)
	}
	settlement.CreateElement("ram:InvoiceCurrencyCode").SetText(st.CurrencyCode)

	if st.PayeeName != "" && st.PayeeName != inv.Trade.Agreement.Seller.Name {
		payee := settlement.CreateElement("ram:PayeeTradeParty")
		payee.CreateElement("ram:Name").SetText(st.PayeeName)
	}
	if st.InvoiceeName != "" && st.InvoiceeName != inv.Trade.Agreement.Buyer.Name {
		invoicee := settlement.CreateElement("ram:InvoiceeTradeParty")
		invoicee.CreateElement("ram:Name").SetText(st.InvoiceeName)
	}

	writePaymentMeans(settlement, &st.PaymentMeans)

	for i := range st.TradeTaxes {
		writeTradeTax(settlement, &st.TradeTaxes[i])
	}

	if bp := inv.Trade.BillingPeriod; bp != nil {
		period := settlement.CreateElement("ram:BillingSpecifiedPeriod")
		if !bp.Start.IsZero() {
			writeDate(period, "ram:StartDateTime", bp.Start)
		}
		if !bp.End.IsZero() {
			writeDate(period, "ram:EndDateTime", bp.End)
		}
	}

	for i := range inv.Trade.AllowanceCharges {
		writeAllowanceCharge(settlement, &inv.Trade.AllowanceCharges[i])
	}

	if st.PaymentTerms != "" || !st.AdvancePaymentDate.IsZero() {
		terms := settlement.CreateElement("ram:SpecifiedTradePaymentTerms")
		if st.PaymentTerms != "" {
			terms.CreateElement("ram:Description").SetText(st.PaymentTerms)
		}
		if !st.AdvancePaymentDate.IsZero() {
			writeDate(terms, "ram:DueDateDateTime", st.AdvancePaymentDate)
		}
	}

	writeSummation(settlement, inv)

	if inv.Trade.Agreement.PreviousBillingReference != "" {
		ref := settlement.CreateElement("ram:InvoiceReferencedDocument")
		ref.CreateElement("ram:IssuerAssignedID").SetText(inv.Trade.Agreement.PreviousBillingReference)
		if !inv.Trade.Agreement.PreviousBillingDate.IsZero() {
			writeFormattedDate(ref, "ram:FormattedIssueDateTime", inv.Trade.Agreement.PreviousBillingDate)
		}
	}
}

// DefaultPaymentMeansCode is UNCL4461 "ZZZ", mutually agreed.
const DefaultPaymentMeansCode = "ZZZ"

func writePaymentMeans(settlement *etree.Element, pm *model.PaymentMeans) {
	means := settlement.CreateElement("ram:SpecifiedTradeSettlementPaymentMeans")
	code := pm.TypeCode
	if code == "" {
		code = DefaultPaymentMeansCode
	}
	means.CreateElement("ram:TypeCode").SetText(code)
	if pm.IBAN != "" {
		account := means.CreateElement("ram:PayeePartyCreditorFinancialAccount")
		account.CreateElement("ram:IBANID").SetText(pm.IBAN)
		if pm.AccountName != "" {
			account.CreateElement("ram:AccountName").SetText(pm.AccountName)
		}
	}
	if pm.BIC != "" {
		institution := means.CreateElement("ram:PayeeSpecifiedCreditorFinancialInstitution")
		institution.CreateElement("ram:BICID").SetText(pm.BIC)
	}
}

func writeTradeTax(settlement *etree.Element, t *model.TradeTax) {
	tax := settlement.CreateElement("ram:ApplicableTradeTax")
	writeAmount(tax, "ram:CalculatedAmount", t.Amount)
	tax.CreateElement("ram:TypeCode").SetText("VAT")
	if t.ExemptionReasonCode != "" {
		tax.CreateElement("ram:ExemptionReasonCode").SetText(t.ExemptionReasonCode)
	}
	writeAmount(tax, "ram:BasisAmount", t.Basis)
	tax.CreateElement("ram:CategoryCode").SetText(t.Category)
	tax.CreateElement("ram:RateApplicablePercent").SetText(t.Rate.StringFixed(2))
}

func writeAllowanceCharge(settlement *etree.Element, ac *model.AllowanceCharge) {
	elem := settlement.CreateElement("ram:SpecifiedTradeAllowanceCharge")
	indicator := elem.CreateElement("ram:ChargeIndicator")
	if ac.Charge {
		indicator.CreateElement("udt:Indicator").SetText("true")
	} else {
		indicator.CreateElement("udt:Indicator").SetText("false")
	}
	if !ac.Percent.IsZero() {
		elem.CreateElement("ram:CalculationPercent").SetText(ac.Percent.StringFixed(2))
	}
	if !ac.Basis.IsZero() {
		writeAmount(elem, "ram:BasisAmount", ac.Basis)
	}
	writeAmount(elem, "ram:ActualAmount", ac.Amount)
	if ac.Reason != "" {
		elem.CreateElement("ram:Reason").SetText(ac.Reason)
	}
	if ac.TaxCategory != "" {
		tax := elem.CreateElement("ram:CategoryTradeTax")
		tax.CreateElement("ram:TypeCode").SetText("VAT")
		tax.CreateElement("ram:CategoryCode").SetText(ac.TaxCategory)
		tax.CreateElement("ram:RateApplicablePercent").SetText(ac.TaxRate.StringFixed(2))
	}
}

func writeSummation(settlement *etree.Element, inv *model.Invoice) {
	sum := &inv.Trade.Settlement.Summation
	currency := inv.Trade.Settlement.CurrencyCode

	elem := settlement.CreateElement("ram:SpecifiedTradeSettlementHeaderMonetarySummation")
	writeAmount(elem, "ram:LineTotalAmount", lineTotal(inv))

	allowances, charges := allowanceChargeTotals(inv.Trade.AllowanceCharges)
	if !allowances.IsZero() {
		writeAmount(elem, "ram:AllowanceTotalAmount", allowances)
	}
	if !charges.IsZero() {
		writeAmount(elem, "ram:ChargeTotalAmount", charges)
	}

	writeAmount(elem, "ram:TaxBasisTotalAmount", sum.NetTotal)
	taxTotal := elem.CreateElement("ram:TaxTotalAmount")
	taxTotal.CreateAttr("currencyID", currency)
	taxTotal.SetText(sum.TaxTotal.StringFixed(2))
	writeAmount(elem, "ram:GrandTotalAmount", sum.GrandTotal)
	if sum.PaidAmount.Valid {
		writeAmount(elem, "ram:TotalPrepaidAmount", sum.PaidAmount.Decimal)
	}
	if sum.RoundingAmount.Valid {
		writeAmount(elem, "ram:RoundingAmount", sum.RoundingAmount.Decimal)
	}
	if sum.DueAmount.Valid {
		writeAmount(elem, "ram:DuePayableAmount", sum.DueAmount.Decimal)
	}
}

func lineTotal(inv *model.Invoice) decimal.Decimal {
	total := decimal.Zero
	for _, item := range inv.Trade.Items {
		total = total.Add(item.Total)
	}
	return total.Round(2)
}

func allowanceChargeTotals(acs []model.AllowanceCharge) (allowances, charges decimal.Decimal) {
	for _, ac := range acs {
		if ac.Charge {
			charges = charges.Add(ac.Amount)
		} else {
			allowances = allowances.Add(ac.Amount)
		}
	}
	return allowances.Round(2), charges.Round(2)
}

func writeAmount(parent *etree.Element, tag string, d decimal.Decimal) {
	parent.CreateElement(tag).SetText(d.StringFixed(2))
}

// writeDate emits a qualified date as <tag><udt:DateTimeString format="102">.
func writeDate(parent *etree.Element, tag string, t time.Time) {
	elem := parent.CreateElement(tag)
	str := elem.CreateElement("udt:DateTimeString")
	str.CreateAttr("format", dateFormatCalendar)
	str.SetText(t.Format("20060102"))
}

// writeFormattedDate is the qdt variant used by referenced-document dates.
func writeFormattedDate(parent *etree.Element, tag string, t time.Time) {
	elem := parent.CreateElement(tag)
	str := elem.CreateElement("qdt:DateTimeString")
	str.CreateAttr("format", dateFormatCalendar)
	str.SetText(t.Format("20060102"))
}
