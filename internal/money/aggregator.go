package money

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rezonia/xrechnung-converter/internal/model"
)

// Discrepancy records a supplied total that disagrees with the value computed
// from line items beyond Tolerance. The computed value is substituted and the
// conversion proceeds; discrepancies are warning-level, never fatal.
type Discrepancy struct {
	Field    string
	Supplied decimal.Decimal
	Computed decimal.Decimal
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: supplied %s, computed %s", d.Field, d.Supplied.StringFixed(2), d.Computed.StringFixed(2))
}

// DefaultReverseChargeExemption is emitted for "AE" subtotals that carry no
// exemption reason of their own.
const DefaultReverseChargeExemption = "VATEX-EU-AE"

type taxGroup struct {
	category string
	rate     decimal.Decimal
	basis    decimal.Decimal
}

// Aggregate derives the per-category tax subtotals and the monetary summation
// for inv. It runs exactly once, between construction and serialization; the
// serializers never recompute monetary values.
func Aggregate(inv *model.Invoice) []Discrepancy {
	var warnings []Discrepancy
	settlement := &inv.Trade.Settlement

	groups := groupLineTaxes(inv.Trade.Items, inv.Trade.AllowanceCharges)

	exemptions := exemptionReasons(settlement.TradeTaxes, inv.Trade.Items)

	taxes := make([]model.TradeTax, 0, len(groups))
	netTotal := Zero
	taxTotal := Zero
	for _, g := range groups {
		amount := TaxAmount(g.basis, g.rate)
		tax := model.TradeTax{
			Category: g.category,
			Rate:     g.rate,
			Basis:    g.basis,
			Amount:   amount,
		}
		if tax.RequiresExemptionReason() {
			tax.ExemptionReasonCode = exemptions[g.category]
			if tax.ExemptionReasonCode == "" && g.category == model.TaxCategoryReverseCharge {
				tax.ExemptionReasonCode = DefaultReverseChargeExemption
			}
		}
		taxes = append(taxes, tax)
		netTotal = netTotal.Add(g.basis)
		taxTotal = taxTotal.Add(amount)
	}
	settlement.TradeTaxes = taxes

	netTotal = netTotal.Round(2)
	taxTotal = taxTotal.Round(2)
	grandTotal := netTotal.Add(taxTotal)

	sum := &settlement.Summation
	if sum.NetTotal.IsZero() && sum.TaxTotal.IsZero() && sum.GrandTotal.IsZero() {
		sum.NetTotal = netTotal
		sum.TaxTotal = taxTotal
		sum.GrandTotal = grandTotal
	} else {
		// Supplied totals are verified against the computed ones; beyond
		// tolerance the computed value wins and the mismatch is reported.
		if sum.GrandTotal.IsZero() {
			sum.GrandTotal = sum.NetTotal.Add(sum.TaxTotal)
		}
		if !WithinTolerance(sum.NetTotal, netTotal) {
			warnings = append(warnings, Discrepancy{Field: "monetary_summation.net_total", Supplied: sum.NetTotal, Computed: netTotal})
			sum.NetTotal = netTotal
		}
		if !WithinTolerance(sum.TaxTotal, taxTotal) {
			warnings = append(warnings, Discrepancy{Field: "monetary_summation.tax_total", Supplied: sum.TaxTotal, Computed: taxTotal})
			sum.TaxTotal = taxTotal
		}
		if !WithinTolerance(sum.GrandTotal, sum.NetTotal.Add(sum.TaxTotal)) {
			warnings = append(warnings, Discrepancy{Field: "monetary_summation.grand_total", Supplied: sum.GrandTotal, Computed: sum.NetTotal.Add(sum.TaxTotal)})
			sum.GrandTotal = sum.NetTotal.Add(sum.TaxTotal)
		}
	}

	if !sum.DueAmount.Valid {
		due := sum.GrandTotal
		if sum.PaidAmount.Valid {
			due = due.Sub(sum.PaidAmount.Decimal)
		}
		if sum.RoundingAmount.Valid {
			due = due.Add(sum.RoundingAmount.Decimal)
		}
		sum.DueAmount = decimal.NewNullDecimal(due)
	}

	return warnings
}

// groupLineTaxes buckets line totals by tax category and rate. Trade-level
// allowances subtract from, and charges add to, the basis of their category.
func groupLineTaxes(items []model.LineItem, acs []model.AllowanceCharge) []taxGroup {
	index := make(map[string]int)
	var groups []taxGroup

	add := func(category string, rate, amount decimal.Decimal) {
		key := category + "/" + rate.String()
		i, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, taxGroup{category: category, rate: rate})
			i = len(groups) - 1
		}
		groups[i].basis = groups[i].basis.Add(amount)
	}

	for _, item := range items {
		add(item.Tax.Category, item.Tax.Rate, item.Total)
	}
	for _, ac := range acs {
		if ac.TaxCategory == "" {
			continue
		}
		amount := ac.Amount
		if !ac.Charge {
			amount = amount.Neg()
		}
		add(ac.TaxCategory, ac.TaxRate, amount)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].category != groups[j].category {
			return groups[i].category < groups[j].category
		}
		return groups[i].rate.LessThan(groups[j].rate)
	})
	return groups
}

// exemptionReasons collects supplied exemption reason codes per category, from
// both the supplied trade-tax entries and the line-level taxes.
func exemptionReasons(supplied []model.TradeTax, items []model.LineItem) map[string]string {
	reasons := make(map[string]string)
	for _, item := range items {
		if item.Tax.ExemptionReasonCode != "" {
			reasons[item.Tax.Category] = item.Tax.ExemptionReasonCode
		}
	}
	for _, t := range supplied {
		if t.ExemptionReasonCode != "" {
			reasons[t.Category] = t.ExemptionReasonCode
		}
	}
	return reasons
}
