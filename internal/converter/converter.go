// Package converter drives the conversion pipeline: decode the raw record,
// normalize it into the domain model, aggregate monetary values, then
// serialize into the requested target formats.
package converter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rezonia/xrechnung-converter/internal/logger"
	"github.com/rezonia/xrechnung-converter/internal/model"
	"github.com/rezonia/xrechnung-converter/internal/money"
	"github.com/rezonia/xrechnung-converter/internal/normalize"
	"github.com/rezonia/xrechnung-converter/internal/serializer/cii"
	"github.com/rezonia/xrechnung-converter/internal/serializer/ubl"
)

// Result carries the output of one conversion. The two serializations fail
// independently: a schema violation in one format does not block the other.
type Result struct {
	Invoice  *model.Invoice
	CII      []byte
	UBL      []byte
	CIIErr   error
	UBLErr   error
	Warnings []string
}

// OK reports whether at least one requested serialization succeeded.
func (r *Result) OK() bool {
	return r.CII != nil || r.UBL != nil
}

// Converter owns the serializers and runs the pipeline.
type Converter struct {
	cii    *cii.Serializer
	ubl    *ubl.Serializer
	logger zerolog.Logger
}

// New creates a converter with both serializers wired.
func New() *Converter {
	return &Converter{
		cii:    cii.New(),
		ubl:    ubl.New(),
		logger: logger.WithComponent("converter"),
	}
}

// Convert runs the full pipeline for the requested formats. Normalization and
// aggregation failures abort the conversion; serialization failures are
// captured per format in the result.
func (c *Converter) Convert(data []byte, formats ...model.OutputFormat) (*Result, error) {
	raw, err := decode(data)
	if err != nil {
		return nil, err
	}
	return c.ConvertRaw(raw, formats...)
}

// ConvertRaw is Convert for an already-decoded record.
func (c *Converter) ConvertRaw(raw map[string]any, formats ...model.OutputFormat) (*Result, error) {
	inv, err := normalize.Normalize(raw)
	if err != nil {
		return nil, err
	}

	discrepancies := money.Aggregate(inv)

	result := &Result{Invoice: inv}
	for _, d := range discrepancies {
		c.logger.Warn().Str("field", d.Field).Msg("total mismatch, computed value substituted")
		result.Warnings = append(result.Warnings, d.String())
	}

	if len(formats) == 0 {
		formats = []model.OutputFormat{model.FormatCII, model.FormatUBL}
	}
	for _, f := range formats {
		switch f {
		case model.FormatCII:
			result.CII, result.CIIErr = c.cii.Serialize(inv)
		case model.FormatUBL:
			result.UBL, result.UBLErr = c.ubl.Serialize(inv)
		default:
			return nil, fmt.Errorf("unknown output format: %q", f)
		}
	}

	c.logger.Info().
		Str("invoice_id", inv.Header.ID).
		Int("lines", len(inv.Trade.Items)).
		Int("warnings", len(result.Warnings)).
		Msg("conversion finished")
	return result, nil
}

// decode parses the raw JSON record. UseNumber keeps amounts as their exact
// textual form instead of float64.
func decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode invoice record: %w", err)
	}
	return raw, nil
}
