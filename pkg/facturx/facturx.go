// Package facturx provides a public API for generating Factur-X compliant
// invoices.
//
// It maps stored invoice rows onto the EN 16931 canonical model, serializes
// the model as UN/CEFACT Cross-Industry Invoice XML and embeds the XML into
// a rendered PDF as a PDF/A-3 attachment named factur-x.xml.
//
// Example usage:
//
//	gen := facturx.NewGenerator()
//	out, err := gen.Generate(ctx, facturx.Input{
//	    Invoice:   invoiceRow,
//	    LineItems: lineRows,
//	    Seller:    sellerRow,
//	    Buyer:     buyerRow,
//	}, basePDF)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("facture.pdf", out.PDF, 0o644)
package facturx

import (
	"github.com/rezonia/facturx-service/internal/model"
	"github.com/rezonia/facturx-service/internal/pdfa"
	"github.com/rezonia/facturx-service/internal/record"
)

// Re-export canonical model types for public API
type (
	CanonicalInvoice = model.CanonicalInvoice
	Line             = model.Line
	Seller           = model.Seller
	Buyer            = model.Buyer
	MonetarySummary  = model.MonetarySummary
	TaxBucket        = model.TaxBucket
	Profile          = model.Profile
)

// Re-export storage record types
type (
	InvoiceRecord  = record.InvoiceRecord
	LineItemRecord = record.LineItemRecord
	SellerProfile  = record.SellerProfile
	BuyerRecord    = record.BuyerRecord
)

// Re-export error types
type (
	ValidationError    = model.ValidationError
	SerializationError = model.SerializationError
	EmbeddingError     = model.EmbeddingError
)

// ProfileEN16931 is the default compliance profile
const ProfileEN16931 = model.ProfileEN16931

// AttachmentName is the filename of the embedded XML payload, fixed by the
// Factur-X standard.
const AttachmentName = pdfa.AttachmentName

// ParseProfile resolves a profile name, treating "" as EN16931.
func ParseProfile(name string) (Profile, error) {
	return model.ParseProfile(name)
}
