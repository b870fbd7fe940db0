package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Profile selects the Factur-X conformance level of the generated document.
// It determines the guideline identifier emitted in the XML, the conformance
// level declared in the XMP metadata and the attachment relationship of the
// embedded file.
type Profile string

// ProfileEN16931 is the EN 16931 (COMFORT) profile, the only level currently
// issued by the application.
const ProfileEN16931 Profile = "EN16931"

// ParseProfile resolves a caller-supplied profile selector. An empty selector
// defaults to EN 16931.
func ParseProfile(s string) (Profile, error) {
	switch s {
	case "", "EN16931", "en16931", "EN 16931":
		return ProfileEN16931, nil
	default:
		return "", NewValidationError("profile", s, "unknown compliance profile")
	}
}

// GuidelineID returns the specification identifier for the
// ExchangedDocumentContext block.
func (p Profile) GuidelineID() string {
	return "urn:cen.eu:en16931:2017"
}

// ConformanceLevel returns the fx:ConformanceLevel value declared in the XMP
// packet.
func (p Profile) ConformanceLevel() string {
	return "EN 16931"
}

// AttachmentRelationship returns the /AFRelationship of the embedded XML.
// The EN 16931 payload is a full alternative representation of the invoice.
func (p Profile) AttachmentRelationship() string {
	return "Alternative"
}

// Seller is the issuing party. Optional fields hold the empty string when the
// source profile does not carry them; the serializer omits the corresponding
// element entirely.
type Seller struct {
	LegalName string
	Address   string
	SIRET     string
	VATNumber string
	Email     string
	Phone     string
}

// Buyer is the invoiced client.
type Buyer struct {
	Name    string
	Address string
	Email   string
	SIRET   string
}

// Line is a single invoice line. LineTotal is always recomputed from
// Quantity and UnitPrice during mapping, never taken from the caller.
type Line struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
	VATRate     decimal.Decimal
}

// MonetarySummary carries the document-level totals. These are the stored
// totals the client already saw; reconciliation against the line sum happens
// in the mapper and never rewrites them.
type MonetarySummary struct {
	TaxExclusive decimal.Decimal
	Tax          decimal.Decimal
	TaxInclusive decimal.Decimal
}

// CanonicalInvoice is the EN 16931 semantic model. It is built fresh per
// generation request by the mapper and never mutated afterwards.
type CanonicalInvoice struct {
	DocumentNumber string
	IssueDate      time.Time
	DueDate        *time.Time
	Seller         Seller
	Buyer          Buyer
	Lines          []Line
	Summary        MonetarySummary
	Currency       string
	Profile        Profile
}

// TaxBucket is one per-rate entry of the tax breakdown.
type TaxBucket struct {
	Rate  decimal.Decimal
	Basis decimal.Decimal
	Tax   decimal.Decimal
}

// TaxBuckets groups the invoice lines by distinct VAT rate. The standard
// requires one tax-summary entry per rate, never a single blended figure.
// Rates are grouped at the 2-decimal precision they serialize at, so two
// rates that only differ beyond that cannot produce duplicate entries.
// Buckets are sorted ascending by rate so serialization is deterministic.
func (inv *CanonicalInvoice) TaxBuckets() []TaxBucket {
	hundred := decimal.NewFromInt(100)

	byRate := make(map[string]*TaxBucket)
	for _, line := range inv.Lines {
		rate := line.VATRate.Round(2)
		b, ok := byRate[rate.String()]
		if !ok {
			b = &TaxBucket{Rate: rate}
			byRate[rate.String()] = b
		}
		b.Basis = b.Basis.Add(line.LineTotal)
	}

	buckets := make([]TaxBucket, 0, len(byRate))
	for _, b := range byRate {
		b.Tax = b.Basis.Mul(b.Rate).Div(hundred).Round(2)
		buckets = append(buckets, *b)
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Rate.LessThan(buckets[j].Rate)
	})
	return buckets
}

// tolerance for monetary reconciliation, 0.01 currency unit
var tolerance = decimal.New(1, -2)

// WithinTolerance reports whether two amounts agree within 0.01.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// Validate checks structural completeness of the canonical model. The mapper
// is the real gate; this is the defensive check the serializer runs so a
// model constructed by hand cannot produce a non-conforming payload.
func (inv *CanonicalInvoice) Validate() error {
	if inv.DocumentNumber == "" {
		return NewValidationError("document_number", nil, "missing document number")
	}
	if inv.IssueDate.IsZero() {
		return NewValidationError("issue_date", nil, "missing issue date")
	}
	hundred := decimal.NewFromInt(100)
	for _, line := range inv.Lines {
		if line.VATRate.IsNegative() || line.VATRate.GreaterThan(hundred) {
			return NewValidationError("vat_rate", line.VATRate.String(), "VAT rate must be between 0 and 100")
		}
		if line.Quantity.IsNegative() {
			return NewValidationError("quantity", line.Quantity.String(), "quantity must not be negative")
		}
	}
	if !WithinTolerance(inv.Summary.TaxInclusive, inv.Summary.TaxExclusive.Add(inv.Summary.Tax)) {
		return NewValidationError("total", inv.Summary.TaxInclusive.String(),
			"total including tax does not equal total excluding tax plus tax")
	}
	return nil
}
