package server

import "github.com/rezonia/xrechnung-converter/internal/validator"

// ConvertResponse is the payload of the convert endpoints. The XML documents
// are returned as strings; a format that failed carries its error instead.
type ConvertResponse struct {
	InvoiceID string   `json:"invoice_id"`
	CII       string   `json:"cii,omitempty"`
	UBL       string   `json:"ubl,omitempty"`
	CIIError  string   `json:"cii_error,omitempty"`
	UBLError  string   `json:"ubl_error,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// ValidateResponse wraps a KoSIT validation result.
type ValidateResponse struct {
	Status     validator.Status `json:"status"`
	Conformant bool             `json:"conformant"`
	ExitCode   int              `json:"exit_code"`
	ReportXML  string           `json:"report_xml,omitempty"`
	ReportHTML string           `json:"report_html,omitempty"`
	Detail     string           `json:"detail,omitempty"`
}

// ExtractResponse returns the raw record recovered from text or a hybrid PDF.
type ExtractResponse struct {
	Record map[string]any `json:"record,omitempty"`
	XML    string         `json:"xml,omitempty"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Warnings []string `json:"warnings,omitempty"`
}
