package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rezonia/facturx-service/internal/record"
)

// InvoiceFile is the on-disk input shape consumed by generate and validate.
// It mirrors the storage rows the service receives over HTTP.
type InvoiceFile struct {
	Invoice   record.InvoiceRecord    `json:"invoice"`
	LineItems []record.LineItemRecord `json:"line_items"`
	Seller    record.SellerProfile    `json:"seller"`
	Buyer     record.BuyerRecord      `json:"buyer"`
}

// GenerateReport summarizes one generation run for CLI output
type GenerateReport struct {
	Input          string   `json:"input"`
	Output         string   `json:"output,omitempty"`
	DocumentNumber string   `json:"document_number,omitempty"`
	Profile        string   `json:"profile,omitempty"`
	Bytes          int      `json:"bytes,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// ValidationReport summarizes one validation run for CLI output
type ValidationReport struct {
	Input          string   `json:"input"`
	Valid          bool     `json:"valid"`
	DocumentNumber string   `json:"document_number,omitempty"`
	TotalExclTax   string   `json:"total_excluding_tax,omitempty"`
	TotalTax       string   `json:"total_tax,omitempty"`
	TotalInclTax   string   `json:"total_including_tax,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

func readInvoiceFile(path string) (*InvoiceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file InvoiceFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &file, nil
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
