package llm

import (
	"regexp"
	"strings"
)

// germanNumber matches amounts written with German separators, e.g. "1.005,55"
// or "845,00".
var germanNumber = regexp.MustCompile(`\b\d{1,3}(?:\.\d{3})*,\d{2}\b`)

// PreprocessInvoiceText rewrites German-formatted amounts to canonical form
// before the text is handed to the extraction model. Everything else is left
// untouched; models transcribe canonical numbers far more reliably than they
// convert separator conventions.
func PreprocessInvoiceText(text string) string {
	return germanNumber.ReplaceAllStringFunc(text, func(m string) string {
		m = strings.ReplaceAll(m, ".", "")
		return strings.Replace(m, ",", ".", 1)
	})
}
