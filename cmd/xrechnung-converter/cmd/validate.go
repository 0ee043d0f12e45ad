package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/xrechnung-converter/internal/logger"
	"github.com/rezonia/xrechnung-converter/internal/validator"
)

var (
	validateJar        string
	validateScenarios  string
	validateRepository string
	validateOutputDir  string
	validateJavaBin    string
	validateTimeout    time.Duration
)

var validateCmd = &cobra.Command{
	Use:   "validate <invoice.xml>",
	Short: "Validate an e-invoice document with the KoSIT validator",
	Long: `Validate a serialized e-invoice against the XRechnung scenario rules.

The KoSIT validation tool is run as a subprocess; its jar and scenario
configuration must be installed locally.

Examples:
  xrechnung-converter validate invoice-ubl.xml \
    --jar validationtool-1.5.0-standalone.jar \
    --scenarios xrechnung-configuration/scenarios.xml \
    --repository xrechnung-configuration`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateJar, "jar", "", "Path to the KoSIT validationtool jar (env: KOSIT_JAR)")
	validateCmd.Flags().StringVar(&validateScenarios, "scenarios", "", "Path to scenarios.xml (env: KOSIT_SCENARIOS)")
	validateCmd.Flags().StringVar(&validateRepository, "repository", "", "Scenario repository directory (env: KOSIT_REPOSITORY)")
	validateCmd.Flags().StringVar(&validateOutputDir, "output-directory", "", "Directory for validation reports")
	validateCmd.Flags().StringVar(&validateJavaBin, "java", "", "Java executable (default: java)")
	validateCmd.Flags().DurationVar(&validateTimeout, "timeout", 60*time.Second, "Validation timeout")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg := validator.Config{
		JavaBin:        validateJavaBin,
		JarPath:        envFallback(validateJar, "KOSIT_JAR"),
		ScenarioConfig: envFallback(validateScenarios, "KOSIT_SCENARIOS"),
		Repository:     envFallback(validateRepository, "KOSIT_REPOSITORY"),
		OutputDir:      validateOutputDir,
		Timeout:        validateTimeout,
	}
	if cfg.JarPath == "" || cfg.ScenarioConfig == "" {
		return fmt.Errorf("--jar and --scenarios are required (or KOSIT_JAR / KOSIT_SCENARIOS)")
	}

	kosit := validator.NewKoSIT(cfg, logger.WithComponent("validator"))
	result, err := kosit.Validate(context.Background(), args[0])
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	switch result.Status {
	case validator.StatusValid:
		return nil
	case validator.StatusInvalid:
		return fmt.Errorf("document is not conformant (exit code %d)", result.ExitCode)
	default:
		return fmt.Errorf("validator tool failure: %s", result.Detail)
	}
}

func envFallback(value, key string) string {
	if value != "" {
		return value
	}
	return os.Getenv(key)
}
