// Package record holds the loosely-typed application rows the core consumes.
// These mirror what the storage layer hands over: nullable numerics, free
// text, dates as strings. The mapper is the only consumer; nothing past it
// ever sees these shapes.
package record

// InvoiceRecord is an invoice row as read from persistent storage.
type InvoiceRecord struct {
	ID            string   `json:"id,omitempty"`
	InvoiceNumber string   `json:"invoice_number"`
	IssueDate     string   `json:"issue_date"`
	DueDate       string   `json:"due_date,omitempty"`
	Subtotal      *float64 `json:"subtotal,omitempty"`
	TaxAmount     *float64 `json:"tax_amount,omitempty"`
	Total         *float64 `json:"total,omitempty"`
	TaxRate       *float64 `json:"tax_rate,omitempty"`
	Currency      string   `json:"currency,omitempty"`
}

// LineItemRecord is one stored line item. Total is what the application
// persisted at edit time; the mapper recomputes it and never trusts it.
type LineItemRecord struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Total       *float64 `json:"total,omitempty"`
	VATRate     *float64 `json:"vat_rate,omitempty"`
}

// SellerProfile is the issuing company profile.
type SellerProfile struct {
	CompanyName string `json:"company_name,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Address     string `json:"address,omitempty"`
	SIRET       string `json:"siret,omitempty"`
	VATNumber   string `json:"vat_number,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// BuyerRecord is the invoiced client row.
type BuyerRecord struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Email   string `json:"email,omitempty"`
	SIRET   string `json:"siret,omitempty"`
}
