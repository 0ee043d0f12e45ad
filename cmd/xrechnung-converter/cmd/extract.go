package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/xrechnung-converter/internal/llm"
	"github.com/rezonia/xrechnung-converter/internal/pdf"
)

var extractOutput string

var extractCmd = &cobra.Command{
	Use:   "extract <invoice.pdf|invoice.txt>",
	Short: "Extract a raw invoice record from a PDF or plain text",
	Long: `Extract invoice data from an input document.

For hybrid PDFs (ZUGFeRD / Factur-X) the embedded XML attachment is
extracted directly. For plain text files an LLM extracts a raw JSON
record which can then be fed into "convert"; this needs --api-key or
LLM_API_KEY.

Examples:
  # Embedded XML from a hybrid PDF
  xrechnung-converter extract invoice.pdf -o invoice.xml

  # Raw record from OCR text
  xrechnung-converter extract invoice.txt --api-key <key> -o record.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Output file (default: stdout)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	var out []byte
	if bytes.HasPrefix(data, []byte("%PDF")) {
		out, err = pdf.ExtractInvoiceXMLFile(inputPath)
		if err != nil {
			return err
		}
	} else {
		if apiKey == "" {
			return fmt.Errorf("text extraction needs an LLM API key (--api-key or LLM_API_KEY)")
		}
		var clientOpts []llm.ClientOption
		if llmBaseURL != "" {
			clientOpts = append(clientOpts, llm.WithBaseURL(llmBaseURL))
		}
		extractor := llm.NewExtractor(llm.NewClient(apiKey, clientOpts...), llmModel)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		record, err := extractor.ExtractFromText(ctx, string(data))
		if err != nil {
			return err
		}
		out, err = json.MarshalIndent(record, "", "  ")
		if err != nil {
			return err
		}
	}

	if extractOutput == "" {
		fmt.Println(string(out))
		return nil
	}
	return os.WriteFile(extractOutput, out, 0644)
}
