package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rezonia/xrechnung-converter/internal/logger"
)

var (
	version = "1.0.0"

	// Global flags
	verbose    bool
	apiKey     string
	llmBaseURL string
	llmModel   string
)

var rootCmd = &cobra.Command{
	Use:   "xrechnung-converter",
	Short: "Convert raw invoice records into EN16931 e-invoice XML",
	Long: `XRechnung Converter turns loosely structured invoice records into
EN16931-conformant electronic invoices.

Supports:
  - Factur-X / ZUGFeRD CII output (extended profile)
  - XRechnung UBL output
  - KoSIT validation of generated documents
  - Extraction of embedded XML from hybrid PDFs
  - LLM-based extraction from plain invoice text

Examples:
  # Convert a record to both formats
  xrechnung-converter convert invoice.json -o out/

  # Convert to UBL only
  xrechnung-converter convert invoice.json --format ubl

  # Validate a generated document
  xrechnung-converter validate out/invoice-ubl.xml --jar validationtool.jar --scenarios scenarios.xml

  # Extract the embedded XML from a hybrid PDF
  xrechnung-converter extract invoice.pdf`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for LLM provider (env: LLM_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&llmBaseURL, "llm-base-url", "", "LLM API base URL (env: LLM_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&llmModel, "llm-model", "", "LLM model for extraction (env: LLM_MODEL)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if apiKey == "" {
		apiKey = os.Getenv("LLM_API_KEY")
	}
	if llmBaseURL == "" {
		llmBaseURL = os.Getenv("LLM_BASE_URL")
	}
	if llmModel == "" {
		llmModel = os.Getenv("LLM_MODEL")
	}

	logCfg := logger.DefaultConfig()
	if verbose {
		logCfg.Level = "debug"
	}
	if err := logger.Setup(logCfg); err != nil {
		panic(err)
	}
}
