package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	profileName  string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "facturx",
	Short: "Generate Factur-X compliant invoices (EN 16931)",
	Long: `Factur-X is a CLI tool for producing hybrid electronic invoices.

It maps stored invoice data onto the EN 16931 canonical model, serializes
it as UN/CEFACT Cross-Industry Invoice XML and embeds the XML into a
rendered PDF as a PDF/A-3 attachment named factur-x.xml.

Examples:
  # Generate a compliant PDF from invoice data and a rendered base PDF
  facturx generate invoice.json --base invoice.pdf -o facture.pdf

  # Produce the CII XML only
  facturx generate invoice.json --xml-only -o factur-x.xml

  # Check invoice data without producing output
  facturx validate invoice.json

  # Read the XML back out of a generated PDF
  facturx inspect facture.pdf`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Compliance profile (env: FACTURX_PROFILE, default EN16931)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (env: FACTURX_LOG_LEVEL, default info)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env is optional, absence is not an error
	_ = godotenv.Load()

	if profileName == "" {
		profileName = os.Getenv("FACTURX_PROFILE")
	}
	if logLevel == "" {
		logLevel = os.Getenv("FACTURX_LOG_LEVEL")
	}
	if logLevel == "" {
		logLevel = "info"
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
