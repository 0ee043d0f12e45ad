package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rezonia/xrechnung-converter/internal/converter"
	"github.com/rezonia/xrechnung-converter/internal/model"
)

var (
	convertFormat string
	convertOutDir string
)

var convertCmd = &cobra.Command{
	Use:   "convert <record.json>",
	Short: "Convert a raw invoice record to e-invoice XML",
	Long: `Convert a raw JSON invoice record into EN16931 XML.

The record is normalized, totals are recomputed and verified, and the
result is written as Factur-X CII and/or XRechnung UBL.

Examples:
  # Both formats next to the input file
  xrechnung-converter convert invoice.json

  # UBL only, into a target directory
  xrechnung-converter convert invoice.json --format ubl -o out/`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "all", "Output format (cii, ubl, all)")
	convertCmd.Flags().StringVarP(&convertOutDir, "output", "o", "", "Output directory (default: input directory)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	var formats []model.OutputFormat
	switch strings.ToLower(convertFormat) {
	case "cii":
		formats = []model.OutputFormat{model.FormatCII}
	case "ubl":
		formats = []model.OutputFormat{model.FormatUBL}
	case "all", "":
		formats = []model.OutputFormat{model.FormatCII, model.FormatUBL}
	default:
		return fmt.Errorf("unknown format %q (expected cii, ubl or all)", convertFormat)
	}

	result, err := converter.New().Convert(data, formats...)
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	outDir := convertOutDir
	if outDir == "" {
		outDir = filepath.Dir(inputPath)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))

	if result.CIIErr != nil {
		fmt.Fprintf(os.Stderr, "cii: %v\n", result.CIIErr)
	}
	if result.UBLErr != nil {
		fmt.Fprintf(os.Stderr, "ubl: %v\n", result.UBLErr)
	}

	if result.CII != nil {
		path := filepath.Join(outDir, base+"-cii.xml")
		if err := os.WriteFile(path, result.CII, 0644); err != nil {
			return err
		}
		fmt.Println(path)
	}
	if result.UBL != nil {
		path := filepath.Join(outDir, base+"-ubl.xml")
		if err := os.WriteFile(path, result.UBL, 0644); err != nil {
			return err
		}
		fmt.Println(path)
	}

	if !result.OK() {
		return fmt.Errorf("no output produced")
	}
	return nil
}
