package server

import (
	"github.com/rezonia/facturx-service/internal/record"
)

// GenerateRequest is the body for the generate and xml endpoints. BasePDF is
// base64 in JSON and only required by generate.
type GenerateRequest struct {
	Invoice   record.InvoiceRecord    `json:"invoice"`
	LineItems []record.LineItemRecord `json:"line_items"`
	Seller    record.SellerProfile    `json:"seller"`
	Buyer     record.BuyerRecord      `json:"buyer"`
	Profile   string                  `json:"profile,omitempty"`
	BasePDF   []byte                  `json:"base_pdf,omitempty"`
}

// InvoiceSummary is the canonical-model digest returned by validate.
type InvoiceSummary struct {
	DocumentNumber    string `json:"document_number"`
	IssueDate         string `json:"issue_date"`
	DueDate           string `json:"due_date,omitempty"`
	SellerName        string `json:"seller_name"`
	BuyerName         string `json:"buyer_name"`
	Lines             int    `json:"lines"`
	TotalExcludingTax string `json:"total_excluding_tax"`
	TotalTax          string `json:"total_tax"`
	TotalIncludingTax string `json:"total_including_tax"`
	Currency          string `json:"currency"`
	Profile           string `json:"profile"`
}

// ValidateResponse is the response for the validate endpoint
type ValidateResponse struct {
	Valid    bool            `json:"valid"`
	Invoice  *InvoiceSummary `json:"invoice,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
	Errors   []string        `json:"errors,omitempty"`
}

// InspectResponse is the response for the inspect endpoint
type InspectResponse struct {
	Filename string `json:"filename"`
	Profile  string `json:"profile,omitempty"`
	XML      string `json:"xml"`
}

// ErrorResponse is the standard error response. Code lets callers tell
// invalid invoice data apart from a broken upstream PDF without string
// matching.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Warnings []string `json:"warnings,omitempty"`
}

// machine-readable error codes
const (
	CodeBadRequest    = "bad_request"
	CodeValidation    = "validation_error"
	CodeSerialization = "serialization_error"
	CodeEmbedding     = "embedding_error"
	CodeNoAttachment  = "no_attachment"
	CodeInternal      = "internal_error"
)
