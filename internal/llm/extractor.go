package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rezonia/xrechnung-converter/internal/logger"
)

// Extractor turns unstructured invoice text or images into the raw record
// shape the normalizer consumes.
type Extractor struct {
	client *Client
	model  string
	logger zerolog.Logger
}

// NewExtractor creates an extractor on top of client. An empty model selects
// the client default.
func NewExtractor(client *Client, model string) *Extractor {
	return &Extractor{
		client: client,
		model:  model,
		logger: logger.WithComponent("llm"),
	}
}

// ExtractFromText extracts a raw invoice record from plain text.
func (e *Extractor) ExtractFromText(ctx context.Context, text string) (map[string]any, error) {
	text = PreprocessInvoiceText(text)
	prompt := fmt.Sprintf(UserPromptTextExtraction, text)

	response, err := e.client.ChatText(ctx, e.model, SystemPromptInvoiceExtractor, prompt)
	if err != nil {
		return nil, err
	}
	return e.decodeRecord(response)
}

// ExtractFromImage extracts a raw invoice record from a scanned invoice.
func (e *Extractor) ExtractFromImage(ctx context.Context, imageData []byte, mimeType string) (map[string]any, error) {
	response, err := e.client.ChatWithImage(ctx, e.model, SystemPromptInvoiceExtractor, UserPromptImageExtraction, imageData, mimeType)
	if err != nil {
		return nil, err
	}
	return e.decodeRecord(response)
}

func (e *Extractor) decodeRecord(response string) (map[string]any, error) {
	payload := ExtractJSON(response)

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()

	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		e.logger.Debug().Str("payload", payload).Msg("model returned malformed JSON")
		return nil, fmt.Errorf("decode extracted record: %w", err)
	}
	return record, nil
}
