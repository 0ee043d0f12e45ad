package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/xrechnung-converter/internal/server"
	"github.com/rezonia/xrechnung-converter/internal/validator"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for converting invoices.

The API provides endpoints for:
  - POST /api/v1/convert        - Convert to both formats
  - POST /api/v1/convert/cii    - Convert to Factur-X CII
  - POST /api/v1/convert/ubl    - Convert to XRechnung UBL
  - POST /api/v1/validate       - Validate XML with the KoSIT tool
  - POST /api/v1/extract/text   - LLM extraction from plain text
  - POST /api/v1/extract/pdf    - Embedded XML from a hybrid PDF
  - GET  /health                - Health check

Examples:
  # Start server on default port
  xrechnung-converter serve

  # Custom port with LLM extraction enabled
  xrechnung-converter serve --address :8080 --api-key <key>`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 5*time.Minute, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	config := &server.Config{
		Address:    serverAddr,
		APIKey:     apiKey,
		LLMBaseURL: llmBaseURL,
		LLMModel:   llmModel,
		Validator: validator.Config{
			JarPath:        os.Getenv("KOSIT_JAR"),
			ScenarioConfig: os.Getenv("KOSIT_SCENARIOS"),
			Repository:     os.Getenv("KOSIT_REPOSITORY"),
		},
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        serverDebug,
	}

	fmt.Printf("Starting server on %s\n", config.Address)
	return server.NewServer(config).Run()
}
