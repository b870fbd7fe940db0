// Package pipeline wires the three generation stages together: record
// mapping, CII serialization and PDF/A-3 embedding. The sequence is strictly
// linear; the first failing stage aborts the run and no partial output is
// ever returned.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rezonia/facturx-service/internal/cii"
	"github.com/rezonia/facturx-service/internal/mapper"
	"github.com/rezonia/facturx-service/internal/model"
	"github.com/rezonia/facturx-service/internal/pdfa"
	"github.com/rezonia/facturx-service/internal/record"
)

// Input bundles the storage rows one generation run consumes.
type Input struct {
	Invoice   record.InvoiceRecord
	LineItems []record.LineItemRecord
	Seller    record.SellerProfile
	Buyer     record.BuyerRecord
	Profile   model.Profile
}

// Result is the outcome of a pipeline run. On error, PDF and XML are nil;
// Warnings may be populated either way.
type Result struct {
	Invoice  *model.CanonicalInvoice
	XML      []byte
	PDF      []byte
	Warnings []string
	Error    error
}

// Pipeline runs generation requests. It holds no per-request state, so a
// single instance serves concurrent requests without locking.
type Pipeline struct {
	log zerolog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger used for reconciliation warnings.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// NewPipeline creates a pipeline with the given options.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate runs the full map → serialize → embed sequence and returns the
// compliant PDF bytes.
func (p *Pipeline) Generate(ctx context.Context, in Input, basePDF []byte) *Result {
	result := p.BuildXML(ctx, in)
	if result.Error != nil {
		return result
	}
	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	pdf, err := pdfa.EmbedXML(basePDF, result.XML, result.Invoice.Profile)
	if err != nil {
		return &Result{Warnings: result.Warnings, Error: err}
	}
	result.PDF = pdf
	return result
}

// BuildXML runs mapping and serialization only, for callers that need the
// CII payload without a PDF container.
func (p *Pipeline) BuildXML(ctx context.Context, in Input) *Result {
	result := p.Validate(ctx, in)
	if result.Error != nil {
		return result
	}

	xml, err := cii.Serialize(result.Invoice)
	if err != nil {
		return &Result{Warnings: result.Warnings, Error: err}
	}
	result.XML = xml
	return result
}

// Validate runs the mapping stage only: canonical model construction with
// all defaulting and reconciliation rules, no serialization.
func (p *Pipeline) Validate(ctx context.Context, in Input) *Result {
	if err := ctx.Err(); err != nil {
		return &Result{Error: err}
	}

	profile := in.Profile
	if profile == "" {
		profile = model.ProfileEN16931
	}

	inv, warnings, err := mapper.MapToCanonical(in.Invoice, in.LineItems, in.Seller, in.Buyer, profile)
	if err != nil {
		return &Result{Error: err}
	}
	for _, warning := range warnings {
		p.log.Warn().
			Str("invoice", inv.DocumentNumber).
			Str("warning", warning).
			Msg("reconciliation")
	}
	return &Result{Invoice: inv, Warnings: warnings}
}

// AttachmentFilename returns the download filename for a generated document.
func AttachmentFilename(documentNumber string) string {
	return fmt.Sprintf("facture-%s-facturx.pdf", documentNumber)
}
