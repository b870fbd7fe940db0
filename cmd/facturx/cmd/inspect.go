package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-service/internal/pdfa"
)

var extractPath string

var inspectCmd = &cobra.Command{
	Use:   "inspect [document.pdf]",
	Short: "Read the embedded invoice XML back out of a PDF",
	Long: `Inspect a generated PDF and print its embedded factur-x.xml payload.

Examples:
  facturx inspect facture.pdf
  facturx inspect facture.pdf --extract factur-x.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&extractPath, "extract", "", "Write the embedded XML to this file instead of stdout")
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	name, xml, err := pdfa.ExtractXML(data)
	if err != nil {
		return err
	}

	printVerbose("Attachment: %s (%d bytes)\n", name, len(xml))
	if level := pdfa.ConformanceLevel(data); level != "" {
		printVerbose("Conformance level: %s\n", level)
	}

	if extractPath != "" {
		if err := os.WriteFile(extractPath, xml, 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Printf("Extracted %s to %s\n", name, extractPath)
		return nil
	}

	_, err = os.Stdout.Write(xml)
	return err
}
