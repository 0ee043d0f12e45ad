package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// OutputFormat identifies a target serialization profile.
type OutputFormat string

const (
	FormatCII OutputFormat = "cii"
	FormatUBL OutputFormat = "ubl"
)

// Exemption categories per UNCL5305 that require an exemption reason code.
const (
	TaxCategoryStandard      = "S"
	TaxCategoryZeroRated     = "Z"
	TaxCategoryExempt        = "E"
	TaxCategoryReverseCharge = "AE"
	TaxCategoryOutOfScope    = "O"
)

// DefaultGuidelineID is the EN16931 Factur-X extended conformance guideline.
const DefaultGuidelineID = "urn:cen.eu:en16931:2017#conformant#urn:factur-x.eu:1p0:extended"

// DefaultUnitCode is UN/ECE Rec.20 "C62" (piece).
const DefaultUnitCode = "C62"

// Invoice is the root aggregate. It is built once per conversion request via
// New, which validates required fields, and is read-only afterwards.
type Invoice struct {
	GuidelineID        string   `json:"guideline_id"`
	Header             Header   `json:"header"`
	Trade              Trade    `json:"trade"`
	DocumentReferences []string `json:"document_references,omitempty"`
	IntroText          string   `json:"intro_text,omitempty"`
}

// Header carries the document-level identification fields.
type Header struct {
	ID         string    `json:"id"`
	LeitwegID  string    `json:"leitweg_id,omitempty"`
	TypeCode   string    `json:"type_code"`
	Name       string    `json:"name,omitempty"`
	IssueDate  time.Time `json:"issue_date"`
	LanguageID string    `json:"language_id,omitempty"`
	Notes      []string  `json:"notes,omitempty"`
}

// Trade groups agreement, settlement, delivery and line items.
type Trade struct {
	Agreement        Agreement         `json:"agreement"`
	Settlement       Settlement        `json:"settlement"`
	Items            []LineItem        `json:"items"`
	Delivery         *Delivery         `json:"delivery,omitempty"`
	BillingPeriod    *BillingPeriod    `json:"billing_period,omitempty"`
	AllowanceCharges []AllowanceCharge `json:"allowance_charges,omitempty"`
}

// Agreement ties the invoice to the purchase process.
type Agreement struct {
	Seller                   Party       `json:"seller"`
	Buyer                    Party       `json:"buyer"`
	OrderDates               []time.Time `json:"order_dates,omitempty"`
	BuyerOrderID             string      `json:"buyer_order_id,omitempty"`
	SellerOrderID            string      `json:"seller_order_id,omitempty"`
	ContractReference        string      `json:"contract_reference,omitempty"`
	ProjectReference         string      `json:"project_reference,omitempty"`
	ObjectReference          string      `json:"object_reference,omitempty"`
	DocumentReference        string      `json:"document_reference,omitempty"`
	PreviousBillingReference string      `json:"previous_billing_reference,omitempty"`
	PreviousBillingDate      time.Time   `json:"previous_billing_date,omitempty"`
}

// Party represents the seller or buyer.
type Party struct {
	ID             string  `json:"id,omitempty"`
	Name           string  `json:"name"`
	Address        Address `json:"address"`
	VATID          string  `json:"vat_id,omitempty"`
	TaxNumber      string  `json:"tax_number,omitempty"`
	ContactName    string  `json:"contact_name,omitempty"`
	Email          string  `json:"email,omitempty"`
	Phone          string  `json:"phone,omitempty"`
	Fax            string  `json:"fax,omitempty"`
	RegisterName   string  `json:"register_name,omitempty"`
	RegisterNumber string  `json:"register_number,omitempty"`
	LegalForm      string  `json:"legal_form,omitempty"`
}

// TaxID returns the preferred tax identifier (VAT id over national tax number).
func (p Party) TaxID() string {
	if p.VATID != "" {
		return p.VATID
	}
	return p.TaxNumber
}

// Address holds a postal address. All fields are tolerated empty; country is
// required for legal validity but the serializers emit blank elements rather
// than failing.
type Address struct {
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Subdivision string `json:"subdivision,omitempty"`
	Street      string `json:"street,omitempty"`
	Street2     string `json:"street2,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
}

// Settlement carries payment and monetary data.
type Settlement struct {
	CurrencyCode       string            `json:"currency_code"`
	PayeeName          string            `json:"payee_name,omitempty"`
	InvoiceeName       string            `json:"invoicee_name,omitempty"`
	PaymentMeans       PaymentMeans      `json:"payment_means"`
	AdvancePaymentDate time.Time         `json:"advance_payment_date,omitempty"`
	TradeTaxes         []TradeTax        `json:"trade_taxes,omitempty"`
	Summation          MonetarySummation `json:"monetary_summation"`
	PaymentTerms       string            `json:"payment_terms,omitempty"`
	PaymentReference   string            `json:"payment_reference,omitempty"`
}

// PaymentMeans describes how the invoice is paid.
type PaymentMeans struct {
	TypeCode    string `json:"type_code"`
	AccountName string `json:"account_name,omitempty"`
	IBAN        string `json:"iban,omitempty"`
	BIC         string `json:"bic,omitempty"`
	BankName    string `json:"bank_name,omitempty"`
}

// TradeTax is one tax subtotal per category/rate pair.
type TradeTax struct {
	Category            string          `json:"category"`
	Rate                decimal.Decimal `json:"rate"`
	Amount              decimal.Decimal `json:"amount"`
	Basis               decimal.Decimal `json:"basis"`
	ExemptionReasonCode string          `json:"exemption_reason_code,omitempty"`
}

// RequiresExemptionReason reports whether the category must carry an
// exemption reason code in the serialized output.
func (t TradeTax) RequiresExemptionReason() bool {
	return IsExemptionCategory(t.Category)
}

// IsExemptionCategory reports whether code is a UNCL5305 exemption category.
func IsExemptionCategory(code string) bool {
	switch code {
	case TaxCategoryExempt, TaxCategoryReverseCharge, TaxCategoryOutOfScope:
		return true
	default:
		return false
	}
}

// MonetarySummation holds document totals. PaidAmount, RoundingAmount and
// DueAmount distinguish "absent" from zero so serializers can omit the
// corresponding elements entirely.
type MonetarySummation struct {
	NetTotal       decimal.Decimal     `json:"net_total"`
	TaxTotal       decimal.Decimal     `json:"tax_total"`
	GrandTotal     decimal.Decimal     `json:"grand_total"`
	PaidAmount     decimal.NullDecimal `json:"paid_amount,omitempty"`
	RoundingAmount decimal.NullDecimal `json:"rounding_amount,omitempty"`
	DueAmount      decimal.NullDecimal `json:"due_amount,omitempty"`
}

// LineItem is one invoice position.
type LineItem struct {
	ID            string          `json:"line_id"`
	Name          string          `json:"product_name"`
	Description   string          `json:"description,omitempty"`
	ArticleID     string          `json:"article_id,omitempty"`
	OrderPosition string          `json:"order_position,omitempty"`
	PeriodStart   time.Time       `json:"period_start,omitempty"`
	PeriodEnd     time.Time       `json:"period_end,omitempty"`
	NetPrice      decimal.Decimal `json:"net_price"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCode      string          `json:"unit_code"`
	Total         decimal.Decimal `json:"total_amount"`
	TotalExplicit bool            `json:"-"`
	Tax           Tax             `json:"tax"`
}

// Tax is the line-level tax designation.
type Tax struct {
	Category            string          `json:"category"`
	Rate                decimal.Decimal `json:"rate"`
	Amount              decimal.Decimal `json:"amount"`
	ExemptionReasonCode string          `json:"exemption_reason_code,omitempty"`
}

// Delivery holds optional delivery information.
type Delivery struct {
	Date       time.Time `json:"date,omitempty"`
	PartyName  string    `json:"party_name,omitempty"`
	Address    Address   `json:"address,omitempty"`
	NoteID     string    `json:"delivery_note_id,omitempty"`
	LocationID string    `json:"location_id,omitempty"`
}

// BillingPeriod covers recurring/period invoices.
type BillingPeriod struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// AllowanceCharge is a trade-level discount (allowance) or surcharge (charge).
type AllowanceCharge struct {
	Charge      bool            `json:"charge"`
	Reason      string          `json:"reason,omitempty"`
	Percent     decimal.Decimal `json:"percent,omitempty"`
	Basis       decimal.Decimal `json:"basis,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	TaxCategory string          `json:"tax_category,omitempty"`
	TaxRate     decimal.Decimal `json:"tax_rate,omitempty"`
}

// New builds an Invoice and validates required fields. Line ids are assigned
// sequentially when empty, and line totals without an explicit override are
// computed as net price times quantity, rounded to 2 decimals.
func New(header Header, trade Trade) (*Invoice, error) {
	if header.ID == "" {
		return nil, NewValidationError("header.id", nil, "required", "invoice id is required")
	}
	if header.IssueDate.IsZero() {
		return nil, NewValidationError("header.issue_date_time", nil, "required", "issue date is required")
	}
	if header.TypeCode == "" {
		header.TypeCode = "380"
	}
	if trade.Agreement.Seller.Name == "" {
		return nil, NewValidationError("trade.agreement.seller.name", nil, "required", "seller name is required")
	}
	if trade.Agreement.Buyer.Name == "" {
		return nil, NewValidationError("trade.agreement.buyer.name", nil, "required", "buyer name is required")
	}
	if trade.Agreement.Seller.TaxID() == "" {
		return nil, NewValidationError("trade.agreement.seller.tax_id", nil, "required", "seller needs a VAT id or tax number")
	}
	if trade.Settlement.CurrencyCode == "" {
		trade.Settlement.CurrencyCode = "EUR"
	}
	if trade.Settlement.PayeeName == "" {
		trade.Settlement.PayeeName = trade.Agreement.Seller.Name
	}
	if trade.Settlement.InvoiceeName == "" {
		trade.Settlement.InvoiceeName = trade.Agreement.Buyer.Name
	}

	seen := make(map[string]bool, len(trade.Items))
	for i := range trade.Items {
		item := &trade.Items[i]
		if item.ID == "" {
			item.ID = strconv.Itoa(i + 1)
		}
		if seen[item.ID] {
			return nil, NewValidationError("trade.items."+strconv.Itoa(i)+".line_id", item.ID, "unique", "duplicate line id")
		}
		seen[item.ID] = true
		if item.UnitCode == "" {
			item.UnitCode = DefaultUnitCode
		}
		if item.Tax.Category == "" {
			return nil, NewValidationError("trade.items."+strconv.Itoa(i)+".settlement_tax.category", nil, "required", "tax category is never defaulted")
		}
		if !item.TotalExplicit {
			item.Total = item.NetPrice.Mul(item.Quantity).Round(2)
		}
	}

	inv := &Invoice{
		GuidelineID: DefaultGuidelineID,
		Header:      header,
		Trade:       trade,
	}
	return inv, nil
}
