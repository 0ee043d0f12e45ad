// Package pdf extracts embedded e-invoice XML from hybrid PDF documents
// (ZUGFeRD / Factur-X).
package pdf

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Well-known attachment names carrying the structured invoice.
var invoiceAttachmentNames = []string{
	"factur-x.xml",
	"zugferd-invoice.xml",
	"ZUGFeRD-invoice.xml",
	"xrechnung.xml",
}

// ErrNoInvoiceAttachment is returned when the PDF carries no recognized
// e-invoice attachment.
var ErrNoInvoiceAttachment = fmt.Errorf("no embedded e-invoice attachment found")

// ExtractInvoiceXML returns the embedded invoice XML of a hybrid PDF.
// Attachment names are matched case-insensitively against the well-known
// ZUGFeRD and Factur-X names; as a fallback the only XML attachment wins.
func ExtractInvoiceXML(rs io.ReadSeeker) ([]byte, error) {
	stubs, err := api.Attachments(rs, pdfmodel.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	names := make([]string, 0, len(stubs))
	for _, a := range stubs {
		names = append(names, a.FileName)
	}

	target := matchAttachment(names)
	if target == "" {
		return nil, ErrNoInvoiceAttachment
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	attachments, err := api.ExtractAttachmentsRaw(rs, "", []string{target}, pdfmodel.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("extract attachment %q: %w", target, err)
	}
	if len(attachments) == 0 {
		return nil, ErrNoInvoiceAttachment
	}
	return io.ReadAll(attachments[0].Reader)
}

// ExtractInvoiceXMLFile is ExtractInvoiceXML for a file path.
func ExtractInvoiceXMLFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ExtractInvoiceXML(f)
}

func matchAttachment(names []string) string {
	for _, want := range invoiceAttachmentNames {
		for _, name := range names {
			// ListAttachments may append a description after the name.
			candidate := strings.Fields(name)
			if len(candidate) > 0 && strings.EqualFold(candidate[0], want) {
				return candidate[0]
			}
		}
	}
	var xmlNames []string
	for _, name := range names {
		fields := strings.Fields(name)
		if len(fields) > 0 && strings.HasSuffix(strings.ToLower(fields[0]), ".xml") {
			xmlNames = append(xmlNames, fields[0])
		}
	}
	if len(xmlNames) == 1 {
		return xmlNames[0]
	}
	return ""
}
