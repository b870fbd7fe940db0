package mapper

import (
	"github.com/shopspring/decimal"

	"github.com/rezonia/facturx-service/internal/record"
)

// Default-resolution rules. Each optional input resolves through an explicit
// ordered chain so the construction logic is auditable in one place instead
// of scattered through the mapping code.

// FallbackSellerName is used when the seller profile carries neither a
// company name nor a personal name.
const FallbackSellerName = "Mon Entreprise"

// DefaultCurrency applies when the invoice record has no currency.
const DefaultCurrency = "EUR"

// resolveSellerName: company_name, then full_name, then FallbackSellerName.
func resolveSellerName(p record.SellerProfile) string {
	if name := clean(p.CompanyName); name != "" {
		return name
	}
	if name := clean(p.FullName); name != "" {
		return name
	}
	return FallbackSellerName
}

// resolveLineVATRate: the line's own rate, then the invoice-level rate,
// then zero.
func resolveLineVATRate(line record.LineItemRecord, inv record.InvoiceRecord) decimal.Decimal {
	if line.VATRate != nil {
		return decimal.NewFromFloat(*line.VATRate)
	}
	if inv.TaxRate != nil {
		return decimal.NewFromFloat(*inv.TaxRate)
	}
	return decimal.Zero
}

// resolveCurrency: the stored currency, then DefaultCurrency.
func resolveCurrency(inv record.InvoiceRecord) string {
	if c := clean(inv.Currency); c != "" {
		return c
	}
	return DefaultCurrency
}
