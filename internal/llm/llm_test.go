package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json code block",
			input:    "Here is the data:\n```json\n{\"header\": {\"id\": \"RE-1\"}}\n```\nDone.",
			expected: `{"header": {"id": "RE-1"}}`,
		},
		{
			name:     "generic code block",
			input:    "```\n{\"header\": {\"id\": \"RE-1\"}}\n```",
			expected: `{"header": {"id": "RE-1"}}`,
		},
		{
			name:     "raw json object",
			input:    `  {"header": {"id": "RE-1"}}  `,
			expected: `{"header": {"id": "RE-1"}}`,
		},
		{
			name:     "raw json array",
			input:    `[1, 2, 3]`,
			expected: `[1, 2, 3]`,
		},
		{
			name:     "plain text passthrough",
			input:    "no json here",
			expected: "no json here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSON(tt.input))
		})
	}
}

func TestPreprocessInvoiceText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "german amount with thousands separator",
			input:    "Gesamtbetrag: 1.005,55 EUR",
			expected: "Gesamtbetrag: 1005.55 EUR",
		},
		{
			name:     "plain decimal comma",
			input:    "Netto 845,00 zzgl. USt. 160,55",
			expected: "Netto 845.00 zzgl. USt. 160.55",
		},
		{
			name:     "dates and ids untouched",
			input:    "Rechnung RE-2024-0815 vom 15.03.2024",
			expected: "Rechnung RE-2024-0815 vom 15.03.2024",
		},
		{
			name:     "canonical numbers untouched",
			input:    "Betrag: 845.00",
			expected: "Betrag: 845.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PreprocessInvoiceText(tt.input))
		})
	}
}

func TestNewClientOptions(t *testing.T) {
	client := NewClient("test-key",
		WithBaseURL("http://localhost:9999/v1"),
		WithDefaultModel(ModelGPT4oMini),
	)
	assert.NotNil(t, client)
	assert.Equal(t, ModelGPT4oMini, client.defaultModel)
}
