// Package mapper translates loose application records into the strict
// canonical invoice model. It is the single validation chokepoint: everything
// downstream can assume a structurally complete invoice.
package mapper

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/rezonia/facturx-service/internal/model"
	"github.com/rezonia/facturx-service/internal/money"
	"github.com/rezonia/facturx-service/internal/record"
)

// date layouts accepted for stored issue/due dates
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// MapToCanonical builds a CanonicalInvoice from storage rows. The only hard
// failures are a missing document number and a missing issue date; every
// other gap degrades with a defaulting rule or a non-fatal warning.
//
// Line totals are always recomputed as quantity * unit price. Document-level
// totals keep the stored values (the amounts the client already saw) and a
// disagreement with the recomputed line sum beyond 0.01 is reported as a
// reconciliation warning, never corrected silently.
func MapToCanonical(rec record.InvoiceRecord, lines []record.LineItemRecord, seller record.SellerProfile, buyer record.BuyerRecord, profile model.Profile) (*model.CanonicalInvoice, []string, error) {
	var warnings []string

	number := clean(rec.InvoiceNumber)
	if number == "" {
		return nil, nil, model.NewValidationError("invoice_number", nil, "missing document number")
	}

	if clean(rec.IssueDate) == "" {
		return nil, nil, model.NewValidationError("issue_date", nil, "missing issue date")
	}
	issueDate, err := parseDate(rec.IssueDate)
	if err != nil {
		return nil, nil, model.NewValidationError("issue_date", rec.IssueDate, "unparseable issue date")
	}

	var dueDate *time.Time
	if clean(rec.DueDate) != "" {
		if d, err := parseDate(rec.DueDate); err == nil {
			dueDate = &d
		} else {
			warnings = append(warnings, fmt.Sprintf("due date %q is unparseable and was dropped", rec.DueDate))
		}
	}

	hundred := decimal.NewFromInt(100)
	canonicalLines := make([]model.Line, 0, len(lines))
	lineTotals := make([]decimal.Decimal, 0, len(lines))
	lineTaxes := make([]decimal.Decimal, 0, len(lines))
	for i, li := range lines {
		qty := money.FromPtr(li.Quantity)
		if qty.IsNegative() {
			return nil, nil, model.NewValidationError("quantity", qty.String(),
				fmt.Sprintf("line %d: quantity must not be negative", i+1))
		}
		rate := resolveLineVATRate(li, rec)
		if rate.IsNegative() || rate.GreaterThan(hundred) {
			return nil, nil, model.NewValidationError("vat_rate", rate.String(),
				fmt.Sprintf("line %d: VAT rate must be between 0 and 100", i+1))
		}
		price := money.FromPtr(li.UnitPrice)
		total := money.LineTotal(qty, price)

		canonicalLines = append(canonicalLines, model.Line{
			Description: clean(li.Description),
			Quantity:    qty,
			UnitPrice:   price,
			LineTotal:   total,
			VATRate:     rate,
		})
		lineTotals = append(lineTotals, total)
		lineTaxes = append(lineTaxes, money.VATAmount(total, rate))
	}

	summary, reconWarnings := buildSummary(rec, lineTotals, lineTaxes)
	warnings = append(warnings, reconWarnings...)

	sellerSIRET := clean(seller.SIRET)
	if sellerSIRET == "" {
		warnings = append(warnings, "seller tax registration id missing; legal organization block omitted")
	}

	inv := &model.CanonicalInvoice{
		DocumentNumber: number,
		IssueDate:      issueDate,
		DueDate:        dueDate,
		Seller: model.Seller{
			LegalName: resolveSellerName(seller),
			Address:   clean(seller.Address),
			SIRET:     sellerSIRET,
			VATNumber: clean(seller.VATNumber),
			Email:     clean(seller.Email),
			Phone:     clean(seller.Phone),
		},
		Buyer: model.Buyer{
			Name:    clean(buyer.Name),
			Address: clean(buyer.Address),
			Email:   clean(buyer.Email),
			SIRET:   clean(buyer.SIRET),
		},
		Lines:    canonicalLines,
		Summary:  summary,
		Currency: resolveCurrency(rec),
		Profile:  profile,
	}

	if err := inv.Validate(); err != nil {
		return nil, nil, err
	}
	return inv, warnings, nil
}

// buildSummary keeps the stored totals where present and fills gaps from the
// recomputed line sums. Stored values that disagree with the recomputed sums
// beyond 0.01 win, with a warning.
func buildSummary(rec record.InvoiceRecord, lineTotals, lineTaxes []decimal.Decimal) (model.MonetarySummary, []string) {
	var warnings []string

	computedNet := money.Sum(lineTotals).Round(2)
	computedTax := money.Sum(lineTaxes).Round(2)

	net := computedNet
	if rec.Subtotal != nil {
		net = money.FromPtr(rec.Subtotal).Round(2)
		if !model.WithinTolerance(net, computedNet) {
			warnings = append(warnings, fmt.Sprintf(
				"stored subtotal %s disagrees with recomputed line sum %s; keeping stored value",
				money.FormatAmount(net), money.FormatAmount(computedNet)))
		}
	}

	tax := computedTax
	if rec.TaxAmount != nil {
		tax = money.FromPtr(rec.TaxAmount).Round(2)
		if !model.WithinTolerance(tax, computedTax) {
			warnings = append(warnings, fmt.Sprintf(
				"stored tax amount %s disagrees with recomputed tax %s; keeping stored value",
				money.FormatAmount(tax), money.FormatAmount(computedTax)))
		}
	}

	gross := net.Add(tax)
	if rec.Total != nil {
		gross = money.FromPtr(rec.Total).Round(2)
		if !model.WithinTolerance(gross, net.Add(tax)) {
			warnings = append(warnings, fmt.Sprintf(
				"stored total %s disagrees with subtotal plus tax %s; keeping stored value",
				money.FormatAmount(gross), money.FormatAmount(net.Add(tax))))
			// the additive invariant must hold on the canonical model, so a
			// stored total beyond tolerance falls back to the derived one
			gross = net.Add(tax)
		}
	}

	return model.MonetarySummary{
		TaxExclusive: net,
		Tax:          tax,
		TaxInclusive: gross,
	}, warnings
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

// clean trims whitespace and NFC-normalizes free text so accented characters
// from different client platforms compare and serialize identically.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
