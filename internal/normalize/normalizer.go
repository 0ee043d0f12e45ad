package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/xrechnung-converter/internal/model"
)

// Per-field candidate key paths, ordered newest upstream shape first.
var (
	headerID        = paths("header.id", "header.@id", "header.invoice_number")
	headerIssueDate = paths("header.issue_date_time", "header.issue_date", "header.date")
	headerTypeCode  = paths("header.type_code")
	headerName      = paths("header.name", "header.document_name")
	headerLanguage  = paths("header.languages", "header.language", "header.language_code")
	headerLeitweg   = paths("header.leitweg_id", "header.routing_id", "header.buyer_reference")

	partyName      = paths("name", "company_name")
	partyContact   = paths("contact_name", "contact")
	partyVATID     = paths("vat_id", "company_id", "umsatzsteuer_id")
	partyTaxID     = paths("tax_id", "tax_number", "tax_registrations.0.id")
	partyEmail     = paths("email", "contact_email")
	partyPhone     = paths("phone", "contact_phone")
	partyFax       = paths("fax", "contact_fax")
	partyRegName   = paths("handels_register_name", "register_name")
	partyRegNumber = paths("handels_register_number", "register_number", "register_id")

	addrCountry     = paths("country")
	addrCountryCode = paths("country_code", "country_id")
	addrState       = paths("state", "country_subdivision", "region")
	addrStreet      = paths("street_name", "street")
	addrStreet2     = paths("street_name2", "additional_street_name")
	addrCity        = paths("city_name", "city")
	addrPostal      = paths("postal_zone", "postal_code", "zipcode")

	itemNetPrice = paths("agreement_net_price", "net_price", "price")
	itemTotal    = paths("total_amount", "delivery_details")
	itemUnit     = paths("quantity_unit", "unit_code", "unit")

	summationNet = paths("net_total", "total")
)

// Normalize resolves a raw invoice record (parsed JSON, ideally decoded with
// json.Number) into a validated Invoice. It fails with a NormalizationError
// naming the field path when a required value is absent or unparsable.
func Normalize(raw map[string]any) (*model.Invoice, error) {
	header, err := normalizeHeader(raw)
	if err != nil {
		return nil, err
	}

	trade := model.Trade{}

	agreement, err := normalizeAgreement(raw)
	if err != nil {
		return nil, err
	}
	trade.Agreement = *agreement

	settlement, err := normalizeSettlement(raw)
	if err != nil {
		return nil, err
	}
	trade.Settlement = *settlement

	items, err := normalizeItems(raw)
	if err != nil {
		return nil, err
	}
	trade.Items = items

	trade.Delivery, err = normalizeDelivery(raw)
	if err != nil {
		return nil, err
	}

	trade.BillingPeriod, err = normalizeBillingPeriod(raw)
	if err != nil {
		return nil, err
	}

	trade.AllowanceCharges, err = normalizeAllowanceCharges(raw)
	if err != nil {
		return nil, err
	}

	inv, err := model.New(*header, trade)
	if err != nil {
		return nil, err
	}

	for _, ref := range list(raw, "document_references") {
		if s := asString(ref); s != "" {
			inv.DocumentReferences = append(inv.DocumentReferences, s)
		}
	}
	if v, ok := valueAt(raw, "intro_text"); ok {
		inv.IntroText = asString(v)
	}
	if v, ok := paths("context.guideline_parameter.id", "context.guideline_parameter").resolve(raw); ok {
		if s := asString(v); s != "" {
			inv.GuidelineID = s
		}
	}

	return inv, nil
}

func normalizeHeader(raw map[string]any) (*model.Header, error) {
	id, ok := headerID.resolve(raw)
	if !ok {
		return nil, model.NewNormalizationError(headerID.first(), "invoice id is required", nil)
	}

	issueDate, err := requiredDate(raw, headerIssueDate)
	if err != nil {
		return nil, err
	}

	header := &model.Header{
		ID:         asString(id),
		IssueDate:  issueDate,
		TypeCode:   optionalString(raw, headerTypeCode),
		Name:       optionalString(raw, headerName),
		LanguageID: optionalString(raw, headerLanguage),
		LeitwegID:  optionalString(raw, headerLeitweg),
		Notes:      normalizeNotes(list(raw, "header.notes")),
	}
	// "eInvoice" is a historical upstream alias for the UNCL1001 commercial
	// invoice code.
	if header.TypeCode == "" || header.TypeCode == "eInvoice" {
		header.TypeCode = "380"
	}
	return header, nil
}

// normalizeNotes accepts both plain strings and the historical
// {"content": [...]} note objects.
func normalizeNotes(rawNotes []any) []string {
	var notes []string
	for _, n := range rawNotes {
		switch note := n.(type) {
		case string:
			if note != "" {
				notes = append(notes, note)
			}
		case map[string]any:
			switch content := note["content"].(type) {
			case string:
				if content != "" {
					notes = append(notes, content)
				}
			case []any:
				for _, c := range content {
					if s := asString(c); s != "" {
						notes = append(notes, s)
					}
				}
			}
		}
	}
	return notes
}

func normalizeAgreement(raw map[string]any) (*model.Agreement, error) {
	sellerMap := section(raw, "trade.agreement.seller")
	if sellerMap == nil {
		return nil, model.NewNormalizationError("trade.agreement.seller", "seller is required", nil)
	}
	seller, err := normalizeParty(sellerMap, "trade.agreement.seller")
	if err != nil {
		return nil, err
	}

	buyerMap := section(raw, "trade.agreement.buyer")
	if buyerMap == nil {
		return nil, model.NewNormalizationError("trade.agreement.buyer", "buyer is required", nil)
	}
	buyer, err := normalizeParty(buyerMap, "trade.agreement.buyer")
	if err != nil {
		return nil, err
	}

	agreement := &model.Agreement{
		Seller:                   *seller,
		Buyer:                    *buyer,
		BuyerOrderID:             optionalString(raw, paths("trade.agreement.purchase_order_reference", "trade.agreement.buyer.order_number", "trade.agreement.buyer.order_id")),
		SellerOrderID:            optionalString(raw, paths("trade.agreement.sales_order_reference", "trade.agreement.seller.order_id")),
		ContractReference:        optionalString(raw, paths("trade.agreement.contract_reference")),
		ProjectReference:         optionalString(raw, paths("trade.agreement.project_reference")),
		ObjectReference:          optionalString(raw, paths("trade.agreement.object_reference")),
		DocumentReference:        optionalString(raw, paths("trade.agreement.document_reference")),
		PreviousBillingReference: optionalString(raw, paths("trade.agreement.previous_billing_reference")),
	}

	if d, err := optionalDate(raw, paths("trade.agreement.previous_billing_date")); err != nil {
		return nil, model.NewNormalizationError("trade.agreement.previous_billing_date", "unparsable date", err)
	} else if !d.IsZero() {
		agreement.PreviousBillingDate = d
	}

	for i, o := range list(raw, "trade.agreement.orders") {
		orderMap, ok := o.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := valueAt(orderMap, "date"); ok {
			d, err := parseDate(asString(v))
			if err != nil {
				return nil, model.NewNormalizationError(fmt.Sprintf("trade.agreement.orders.%d.date", i), "unparsable order date", err)
			}
			agreement.OrderDates = append(agreement.OrderDates, d)
		}
	}

	return agreement, nil
}

func normalizeParty(partyMap map[string]any, basePath string) (*model.Party, error) {
	name, ok := partyName.resolve(partyMap)
	if !ok {
		return nil, model.NewNormalizationError(basePath+".name", "party name is required", nil)
	}

	party := &model.Party{
		Name:           asString(name),
		ID:             optionalString(partyMap, paths("id")),
		VATID:          optionalString(partyMap, partyVATID),
		TaxNumber:      optionalString(partyMap, partyTaxID),
		ContactName:    optionalString(partyMap, partyContact),
		Email:          optionalString(partyMap, partyEmail),
		Phone:          optionalString(partyMap, partyPhone),
		Fax:            optionalString(partyMap, partyFax),
		RegisterName:   optionalString(partyMap, partyRegName),
		RegisterNumber: optionalString(partyMap, partyRegNumber),
		LegalForm:      optionalString(partyMap, paths("legal_form")),
	}

	// A bare VAT-shaped tax id ("DE...") under tax_id is a VAT id from older
	// upstream shapes that had no separate vat_id key.
	if party.VATID == "" && looksLikeVATID(party.TaxNumber) {
		party.VATID = party.TaxNumber
		party.TaxNumber = ""
	}

	if addrMap := section(partyMap, "address"); addrMap != nil {
		party.Address = normalizeAddress(addrMap)
	}
	return party, nil
}

func looksLikeVATID(id string) bool {
	if len(id) < 4 {
		return false
	}
	c0, c1 := id[0], id[1]
	return c0 >= 'A' && c0 <= 'Z' && c1 >= 'A' && c1 <= 'Z'
}

func normalizeAddress(addrMap map[string]any) model.Address {
	return model.Address{
		Country:     optionalString(addrMap, addrCountry),
		CountryCode: optionalString(addrMap, addrCountryCode),
		Subdivision: optionalString(addrMap, addrState),
		Street:      optionalString(addrMap, addrStreet),
		Street2:     optionalString(addrMap, addrStreet2),
		City:        optionalString(addrMap, addrCity),
		PostalCode:  optionalString(addrMap, addrPostal),
	}
}

func normalizeSettlement(raw map[string]any) (*model.Settlement, error) {
	settlement := &model.Settlement{
		CurrencyCode:     optionalString(raw, paths("trade.settlement.currency_code", "trade.settlement.currency")),
		PayeeName:        optionalString(raw, paths("trade.settlement.payee.name")),
		InvoiceeName:     optionalString(raw, paths("trade.settlement.invoicee.name")),
		PaymentTerms:     optionalString(raw, paths("trade.settlement.payment_terms")),
		PaymentReference: optionalString(raw, paths("trade.settlement.payment_reference")),
	}
	if settlement.CurrencyCode == "" {
		settlement.CurrencyCode = "EUR"
	}

	if pmMap := section(raw, "trade.settlement.payment_means"); pmMap != nil {
		settlement.PaymentMeans = model.PaymentMeans{
			TypeCode:    optionalString(pmMap, paths("type_code")),
			AccountName: optionalString(pmMap, paths("account_name", "account_owner")),
			IBAN:        optionalString(pmMap, paths("iban")),
			BIC:         optionalString(pmMap, paths("bic")),
			BankName:    optionalString(pmMap, paths("bank_name")),
		}
	}
	// Seller-level IBAN predates the payment_means object.
	if settlement.PaymentMeans.IBAN == "" {
		settlement.PaymentMeans.IBAN = optionalString(raw, paths("trade.agreement.seller.iban"))
	}

	if d, err := optionalDate(raw, paths("trade.settlement.advance_payment_date", "trade.settlement.advance_payment.received_date", "trade.settlement.due_date")); err != nil {
		return nil, model.NewNormalizationError("trade.settlement.advance_payment_date", "unparsable date", err)
	} else if !d.IsZero() {
		settlement.AdvancePaymentDate = d
	}

	for i, t := range list(raw, "trade.settlement.trade_tax") {
		taxMap, ok := t.(map[string]any)
		if !ok {
			continue
		}
		base := fmt.Sprintf("trade.settlement.trade_tax.%d", i)
		category := optionalString(taxMap, paths("category", "category_code"))
		if category == "" {
			return nil, model.NewNormalizationError(base+".category", "tax category is required", nil)
		}
		tax := model.TradeTax{
			Category:            category,
			ExemptionReasonCode: optionalString(taxMap, paths("exemption_reason_code")),
		}
		var err error
		if tax.Rate, err = optionalDecimal(taxMap, paths("rate", "rate_applicable_percent"), base+".rate"); err != nil {
			return nil, err
		}
		if tax.Amount, err = optionalDecimal(taxMap, paths("amount", "calculated_amount"), base+".amount"); err != nil {
			return nil, err
		}
		if tax.Basis, err = optionalDecimal(taxMap, paths("basis_amount", "basis"), base+".basis_amount"); err != nil {
			return nil, err
		}
		settlement.TradeTaxes = append(settlement.TradeTaxes, tax)
	}

	if sumMap := section(raw, "trade.settlement.monetary_summation"); sumMap != nil {
		base := "trade.settlement.monetary_summation"
		var err error
		sum := model.MonetarySummation{}
		if sum.NetTotal, err = optionalDecimal(sumMap, summationNet, base+".net_total"); err != nil {
			return nil, err
		}
		if sum.TaxTotal, err = optionalDecimal(sumMap, paths("tax_total"), base+".tax_total"); err != nil {
			return nil, err
		}
		if sum.GrandTotal, err = optionalDecimal(sumMap, paths("grand_total"), base+".grand_total"); err != nil {
			return nil, err
		}
		if sum.PaidAmount, err = optionalNullDecimal(sumMap, paths("paid_amount"), base+".paid_amount"); err != nil {
			return nil, err
		}
		if sum.RoundingAmount, err = optionalNullDecimal(sumMap, paths("rounding_amount"), base+".rounding_amount"); err != nil {
			return nil, err
		}
		if sum.DueAmount, err = optionalNullDecimal(sumMap, paths("due_amount"), base+".due_amount"); err != nil {
			return nil, err
		}
		settlement.Summation = sum
	}

	return settlement, nil
}

func normalizeItems(raw map[string]any) ([]model.LineItem, error) {
	rawItems := list(raw, "trade.items")
	items := make([]model.LineItem, 0, len(rawItems))

	for i, it := range rawItems {
		itemMap, ok := it.(map[string]any)
		if !ok {
			return nil, model.NewNormalizationError(fmt.Sprintf("trade.items.%d", i), "line item must be an object", nil)
		}
		base := fmt.Sprintf("trade.items.%d", i)

		item := model.LineItem{
			ID:            optionalString(itemMap, paths("line_id", "id")),
			Name:          optionalString(itemMap, paths("product_name", "name")),
			Description:   optionalString(itemMap, paths("description")),
			ArticleID:     optionalString(itemMap, paths("article_id", "product_id")),
			OrderPosition: optionalString(itemMap, paths("order_position")),
			UnitCode:      optionalString(itemMap, itemUnit),
		}

		var err error
		if item.NetPrice, err = optionalDecimal(itemMap, itemNetPrice, base+".agreement_net_price"); err != nil {
			return nil, err
		}
		if item.Quantity, err = optionalDecimal(itemMap, paths("quantity"), base+".quantity"); err != nil {
			return nil, err
		}
		if v, ok := itemTotal.resolve(itemMap); ok {
			total, err := parseDecimal(v)
			if err != nil {
				return nil, model.NewNormalizationError(base+".total_amount", "unparsable amount", err)
			}
			item.Total = total.Round(2)
			item.TotalExplicit = true
		}
		if item.PeriodStart, err = optionalDate(itemMap, paths("period_start")); err != nil {
			return nil, model.NewNormalizationError(base+".period_start", "unparsable date", err)
		}
		if item.PeriodEnd, err = optionalDate(itemMap, paths("period_end")); err != nil {
			return nil, model.NewNormalizationError(base+".period_end", "unparsable date", err)
		}

		taxMap := section(itemMap, "settlement_tax")
		if taxMap == nil {
			taxMap = section(itemMap, "tax")
		}
		if taxMap != nil {
			item.Tax.Category = optionalString(taxMap, paths("category", "category_code"))
			item.Tax.ExemptionReasonCode = optionalString(taxMap, paths("exemption_reason_code"))
			if item.Tax.Rate, err = optionalDecimal(taxMap, paths("rate", "rate_applicable_percent"), base+".settlement_tax.rate"); err != nil {
				return nil, err
			}
			if item.Tax.Amount, err = optionalDecimal(taxMap, paths("amount", "calculated_amount"), base+".settlement_tax.amount"); err != nil {
				return nil, err
			}
		}
		if item.Tax.Category == "" {
			return nil, model.NewNormalizationError(base+".settlement_tax.category", "tax category is required and never defaulted", nil)
		}

		items = append(items, item)
	}

	return items, nil
}

func normalizeDelivery(raw map[string]any) (*model.Delivery, error) {
	deliveryMap := section(raw, "trade.delivery")
	if deliveryMap == nil {
		return nil, nil
	}

	delivery := &model.Delivery{
		PartyName:  optionalString(deliveryMap, paths("recipient_name", "delivery_party.name")),
		NoteID:     optionalString(deliveryMap, paths("delivery_note_id")),
		LocationID: optionalString(deliveryMap, paths("location_id")),
	}
	d, err := optionalDate(deliveryMap, paths("date"))
	if err != nil {
		return nil, model.NewNormalizationError("trade.delivery.date", "unparsable date", err)
	}
	delivery.Date = d

	addrMap := section(deliveryMap, "address")
	if addrMap == nil {
		addrMap = section(deliveryMap, "delivery_party.address")
	}
	if addrMap != nil {
		delivery.Address = normalizeAddress(addrMap)
	}
	return delivery, nil
}

func normalizeBillingPeriod(raw map[string]any) (*model.BillingPeriod, error) {
	start, err := optionalDate(raw, paths("trade.billing_period.start_date", "trade.start_date"))
	if err != nil {
		return nil, model.NewNormalizationError("trade.billing_period.start_date", "unparsable date", err)
	}
	end, err := optionalDate(raw, paths("trade.billing_period.end_date", "trade.end_date"))
	if err != nil {
		return nil, model.NewNormalizationError("trade.billing_period.end_date", "unparsable date", err)
	}
	if start.IsZero() && end.IsZero() {
		return nil, nil
	}
	return &model.BillingPeriod{Start: start, End: end}, nil
}

func normalizeAllowanceCharges(raw map[string]any) ([]model.AllowanceCharge, error) {
	var result []model.AllowanceCharge

	appendAll := func(path string, charge bool) error {
		for i, a := range list(raw, path) {
			acMap, ok := a.(map[string]any)
			if !ok {
				continue
			}
			base := fmt.Sprintf("%s.%d", path, i)
			ac := model.AllowanceCharge{
				Charge:      charge,
				Reason:      optionalString(acMap, paths("reason")),
				TaxCategory: optionalString(acMap, paths("tax_category", "tax.category")),
			}
			var err error
			if ac.Percent, err = optionalDecimal(acMap, paths("percent"), base+".percent"); err != nil {
				return err
			}
			if ac.Basis, err = optionalDecimal(acMap, paths("basis_amount", "basis"), base+".basis_amount"); err != nil {
				return err
			}
			if ac.Amount, err = optionalDecimal(acMap, paths("amount"), base+".amount"); err != nil {
				return err
			}
			if ac.TaxRate, err = optionalDecimal(acMap, paths("tax_rate", "tax.rate"), base+".tax_rate"); err != nil {
				return err
			}
			result = append(result, ac)
		}
		return nil
	}

	if err := appendAll("trade.allowances", false); err != nil {
		return nil, err
	}
	if err := appendAll("trade.charges", true); err != nil {
		return nil, err
	}
	return result, nil
}

// Typed field helpers. Optional fields collapse to zero values when absent,
// required ones surface a NormalizationError with the primary path.

func optionalString(raw map[string]any, l lookup) string {
	if v, ok := l.resolve(raw); ok {
		return asString(v)
	}
	return ""
}

func optionalDecimal(raw map[string]any, l lookup, path string) (decimal.Decimal, error) {
	v, ok := l.resolve(raw)
	if !ok {
		return decimal.Zero, nil
	}
	d, err := parseDecimal(v)
	if err != nil {
		return decimal.Zero, model.NewNormalizationError(path, "unparsable number", err)
	}
	return d, nil
}

func optionalNullDecimal(raw map[string]any, l lookup, path string) (decimal.NullDecimal, error) {
	v, ok := l.resolve(raw)
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(v)
	if err != nil {
		return decimal.NullDecimal{}, model.NewNormalizationError(path, "unparsable number", err)
	}
	return decimal.NewNullDecimal(d), nil
}

func optionalDate(raw map[string]any, l lookup) (time.Time, error) {
	v, ok := l.resolve(raw)
	if !ok {
		return time.Time{}, nil
	}
	return parseDate(asString(v))
}

func requiredDate(raw map[string]any, l lookup) (time.Time, error) {
	v, ok := l.resolve(raw)
	if !ok {
		return time.Time{}, model.NewNormalizationError(l.first(), "date is required", nil)
	}
	d, err := parseDate(asString(v))
	if err != nil {
		return time.Time{}, model.NewNormalizationError(l.first(), "unparsable date", err)
	}
	return d, nil
}

// Strings that the upstream may emit instead of an absent value.
var absentMarkers = map[string]bool{
	"null": true, "none": true, "n/a": true, "-": true,
}

// IsAbsent reports whether a raw string value counts as absent.
func IsAbsent(s string) bool {
	return s == "" || absentMarkers[strings.ToLower(strings.TrimSpace(s))]
}
