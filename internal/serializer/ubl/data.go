package ubl

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/xrechnung-converter/internal/model"
)

// docData is the flattened view of an invoice that the UBL renderer walks.
// All derived values (due date, joined notes, allowance totals) are computed
// here so the rendering stage stays a plain tree walk.
type docData struct {
	CustomizationID string
	ProfileID       string

	ID           string
	IssueDate    time.Time
	DueDate      time.Time
	TypeCode     string
	Note         string
	Currency     string
	BuyerRef     string
	OrderRef        string
	ContractRef     string
	ProjectRef      string
	ObjectRef       string
	DocumentRef     string
	DocumentRefs    []string
	PrevBillingRef  string
	PrevBillingDate time.Time
	PaymentRef      string
	PaymentTerms    string

	Period *model.BillingPeriod

	Seller model.Party
	Buyer  model.Party

	Delivery *model.Delivery

	PaymentMeansCode string
	IBAN             string
	AccountName      string
	BIC              string

	AllowanceCharges []model.AllowanceCharge
	AllowanceTotal   decimal.Decimal
	ChargeTotal      decimal.Decimal

	TaxTotal  decimal.Decimal
	Subtotals []model.TradeTax

	LineExtension decimal.Decimal
	TaxExclusive  decimal.Decimal
	TaxInclusive  decimal.Decimal
	Prepaid       decimal.NullDecimal
	Rounding      decimal.NullDecimal
	Payable       decimal.Decimal

	Lines []model.LineItem
}

// XRechnung 3.0 conformance identifiers.
const (
	CustomizationID = "urn:cen.eu:en16931:2017#compliant#urn:xeinkauf.de:kosit:xrechnung_3.0"
	ProfileID       = "urn:fdc:peppol.eu:2017:poacc:billing:01:1.0"
)

// DefaultPaymentMeansCode is UNCL4461 "58", SEPA credit transfer.
const DefaultPaymentMeansCode = "58"

func buildDocData(inv *model.Invoice) docData {
	st := &inv.Trade.Settlement
	sum := &st.Summation

	data := docData{
		CustomizationID: CustomizationID,
		ProfileID:       ProfileID,

		ID:           inv.Header.ID,
		IssueDate:    inv.Header.IssueDate,
		DueDate:      st.AdvancePaymentDate,
		TypeCode:     inv.Header.TypeCode,
		Note:         joinNotes(inv),
		Currency:     st.CurrencyCode,
		BuyerRef:     inv.Header.LeitwegID,
		OrderRef:        inv.Trade.Agreement.BuyerOrderID,
		ContractRef:     inv.Trade.Agreement.ContractReference,
		ProjectRef:      inv.Trade.Agreement.ProjectReference,
		ObjectRef:       inv.Trade.Agreement.ObjectReference,
		DocumentRef:     inv.Trade.Agreement.DocumentReference,
		DocumentRefs:    inv.DocumentReferences,
		PrevBillingRef:  inv.Trade.Agreement.PreviousBillingReference,
		PrevBillingDate: inv.Trade.Agreement.PreviousBillingDate,
		PaymentRef:      st.PaymentReference,
		PaymentTerms:    st.PaymentTerms,

		Period:   inv.Trade.BillingPeriod,
		Seller:   inv.Trade.Agreement.Seller,
		Buyer:    inv.Trade.Agreement.Buyer,
		Delivery: inv.Trade.Delivery,

		PaymentMeansCode: st.PaymentMeans.TypeCode,
		IBAN:             st.PaymentMeans.IBAN,
		AccountName:      st.PaymentMeans.AccountName,
		BIC:              st.PaymentMeans.BIC,

		AllowanceCharges: inv.Trade.AllowanceCharges,

		TaxTotal:  sum.TaxTotal,
		Subtotals: st.TradeTaxes,

		TaxExclusive: sum.NetTotal,
		TaxInclusive: sum.GrandTotal,
		Prepaid:      sum.PaidAmount,
		Rounding:     sum.RoundingAmount,
		Payable:      sum.GrandTotal,

		Lines: inv.Trade.Items,
	}
	if data.PaymentMeansCode == "" {
		data.PaymentMeansCode = DefaultPaymentMeansCode
	}
	if sum.DueAmount.Valid {
		data.Payable = sum.DueAmount.Decimal
	}

	lineTotal := decimal.Zero
	for _, item := range inv.Trade.Items {
		lineTotal = lineTotal.Add(item.Total)
	}
	data.LineExtension = lineTotal.Round(2)

	for _, ac := range inv.Trade.AllowanceCharges {
		if ac.Charge {
			data.ChargeTotal = data.ChargeTotal.Add(ac.Amount)
		} else {
			data.AllowanceTotal = data.AllowanceTotal.Add(ac.Amount)
		}
	}
	data.AllowanceTotal = data.AllowanceTotal.Round(2)
	data.ChargeTotal = data.ChargeTotal.Round(2)

	return data
}

// DueDays returns the payment window length in whole days, 0 when no due date
// is known.
func (d docData) DueDays() int {
	if d.DueDate.IsZero() {
		return 0
	}
	return int(d.DueDate.Sub(d.IssueDate).Hours() / 24)
}

// joinNotes flattens intro text and header notes into the single cbc:Note.
func joinNotes(inv *model.Invoice) string {
	var parts []string
	if inv.IntroText != "" {
		parts = append(parts, inv.IntroText)
	}
	parts = append(parts, inv.Header.Notes...)
	return strings.Join(parts, " ")
}
