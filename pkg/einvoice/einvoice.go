// Package einvoice provides a public API for converting raw invoice records
// into EN16931-conformant e-invoice XML.
//
// A raw JSON record is normalized into the domain model, monetary values are
// aggregated and verified, and the result is serialized as Factur-X CII
// and/or XRechnung UBL.
//
// Example usage:
//
//	result, err := einvoice.Convert(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("invoice-cii.xml", result.CII, 0644)
//	os.WriteFile("invoice-ubl.xml", result.UBL, 0644)
package einvoice

import (
	"github.com/rezonia/xrechnung-converter/internal/converter"
	"github.com/rezonia/xrechnung-converter/internal/model"
	"github.com/rezonia/xrechnung-converter/internal/money"
	"github.com/rezonia/xrechnung-converter/internal/normalize"
)

// Re-export core types for public API
type (
	Invoice           = model.Invoice
	Header            = model.Header
	Trade             = model.Trade
	Agreement         = model.Agreement
	Settlement        = model.Settlement
	Party             = model.Party
	Address           = model.Address
	LineItem          = model.LineItem
	TradeTax          = model.TradeTax
	MonetarySummation = model.MonetarySummation
	OutputFormat      = model.OutputFormat
	Result            = converter.Result
	Discrepancy       = money.Discrepancy
)

// Re-export output formats
const (
	FormatCII = model.FormatCII
	FormatUBL = model.FormatUBL
)

// Re-export tax categories
const (
	TaxCategoryStandard      = model.TaxCategoryStandard
	TaxCategoryZeroRated     = model.TaxCategoryZeroRated
	TaxCategoryExempt        = model.TaxCategoryExempt
	TaxCategoryReverseCharge = model.TaxCategoryReverseCharge
	TaxCategoryOutOfScope    = model.TaxCategoryOutOfScope
)

// Re-export error types
type (
	NormalizationError = model.NormalizationError
	SerializationError = model.SerializationError
	ValidationError    = model.ValidationError
)

// Convert runs the full pipeline on a raw JSON record. With no formats given,
// both CII and UBL are produced.
func Convert(data []byte, formats ...OutputFormat) (*Result, error) {
	return converter.New().Convert(data, formats...)
}

// Normalize resolves a decoded raw record into a validated Invoice without
// serializing it.
func Normalize(raw map[string]any) (*Invoice, error) {
	return normalize.Normalize(raw)
}

// Aggregate computes tax subtotals and document totals in place and returns
// the detected discrepancies.
func Aggregate(inv *Invoice) []Discrepancy {
	return money.Aggregate(inv)
}
