package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-service/internal/model"
	"github.com/rezonia/facturx-service/internal/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate [invoice.json...]",
	Short: "Validate invoice data against the canonical model",
	Long: `Validate one or more invoice data files without producing output.

Checks performed:
  - Document number and issue date present
  - VAT rates within 0-100
  - Line totals consistent with quantity and unit price
  - Stored totals consistent with line-derived totals (warning on mismatch)
  - Net plus tax equals gross

Examples:
  facturx validate invoice.json
  facturx validate invoices/*.json -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	profile, err := model.ParseProfile(profileName)
	if err != nil {
		return err
	}

	p := pipeline.NewPipeline()
	reports := make([]*ValidationReport, 0, len(args))
	allValid := true

	for _, path := range args {
		report := validateFile(p, path, profile)
		reports = append(reports, report)
		if !report.Valid {
			allValid = false
		}
	}

	if outputFormat == "json" {
		if err := outputJSON(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			if r.Valid {
				fmt.Printf("✓ %s: VALID (%s, total %s %s)\n", r.Input, r.DocumentNumber, r.TotalInclTax, r.Currency)
			} else {
				fmt.Printf("✗ %s: INVALID\n", r.Input)
				for _, e := range r.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}
			for _, w := range r.Warnings {
				fmt.Printf("  ⚠ %s\n", w)
			}
		}
	}

	if !allValid {
		return fmt.Errorf("validation failed for some files")
	}
	return nil
}

func validateFile(p *pipeline.Pipeline, path string, profile model.Profile) *ValidationReport {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report := &ValidationReport{Input: path}

	file, err := readInvoiceFile(path)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	result := p.Validate(ctx, pipeline.Input{
		Invoice:   file.Invoice,
		LineItems: file.LineItems,
		Seller:    file.Seller,
		Buyer:     file.Buyer,
		Profile:   profile,
	})
	report.Warnings = result.Warnings

	if result.Error != nil {
		report.Errors = append(report.Errors, result.Error.Error())
		return report
	}

	inv := result.Invoice
	report.Valid = true
	report.DocumentNumber = inv.DocumentNumber
	report.TotalExclTax = inv.Summary.TaxExclusive.StringFixed(2)
	report.TotalTax = inv.Summary.Tax.StringFixed(2)
	report.TotalInclTax = inv.Summary.TaxInclusive.StringFixed(2)
	report.Currency = inv.Currency
	return report
}
