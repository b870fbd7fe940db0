package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-service/internal/logger"
	"github.com/rezonia/facturx-service/internal/model"
	"github.com/rezonia/facturx-service/internal/pipeline"
)

var (
	basePDFPath string
	outputPath  string
	xmlOnly     bool
	genTimeout  time.Duration
)

var generateCmd = &cobra.Command{
	Use:   "generate [invoice.json]",
	Short: "Generate a Factur-X PDF or CII XML from invoice data",
	Long: `Generate a compliant invoice document from stored invoice data.

The input file carries the invoice row, its line items and the seller and
buyer records as JSON. With --base, the CII XML is embedded into the given
rendered PDF as a PDF/A-3 attachment; with --xml-only, just the XML is
written.

Examples:
  facturx generate invoice.json --base invoice.pdf -o facture.pdf
  facturx generate invoice.json --xml-only -o factur-x.xml
  facturx generate invoice.json --xml-only`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&basePDFPath, "base", "", "Rendered base PDF to embed into")
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: stdout for XML, derived name for PDF)")
	generateCmd.Flags().BoolVar(&xmlOnly, "xml-only", false, "Produce the CII XML without a PDF container")
	generateCmd.Flags().DurationVar(&genTimeout, "timeout", 30*time.Second, "Generation timeout")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if !xmlOnly && basePDFPath == "" {
		return fmt.Errorf("either --base or --xml-only is required")
	}

	file, err := readInvoiceFile(args[0])
	if err != nil {
		return err
	}

	profile, err := model.ParseProfile(profileName)
	if err != nil {
		return err
	}

	log, err := logger.Setup(logger.Config{Level: logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), genTimeout)
	defer cancel()

	p := pipeline.NewPipeline(pipeline.WithLogger(log))
	in := pipeline.Input{
		Invoice:   file.Invoice,
		LineItems: file.LineItems,
		Seller:    file.Seller,
		Buyer:     file.Buyer,
		Profile:   profile,
	}

	var result *pipeline.Result
	if xmlOnly {
		result = p.BuildXML(ctx, in)
	} else {
		basePDF, err := os.ReadFile(basePDFPath)
		if err != nil {
			return fmt.Errorf("failed to read base PDF: %w", err)
		}
		result = p.Generate(ctx, in, basePDF)
	}

	if result.Error != nil {
		return result.Error
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	payload := result.PDF
	if xmlOnly {
		payload = result.XML
	}

	out := outputPath
	if out == "" {
		if xmlOnly {
			_, err := os.Stdout.Write(payload)
			return err
		}
		out = pipeline.AttachmentFilename(result.Invoice.DocumentNumber)
	}

	if err := os.WriteFile(out, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	printVerbose("Wrote %d bytes to %s\n", len(payload), out)

	if outputFormat == "json" && verbose {
		return outputJSON(&GenerateReport{
			Input:          args[0],
			Output:         out,
			DocumentNumber: result.Invoice.DocumentNumber,
			Profile:        string(result.Invoice.Profile),
			Bytes:          len(payload),
			Warnings:       result.Warnings,
		})
	}
	return nil
}
