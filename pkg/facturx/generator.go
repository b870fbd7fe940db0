package facturx

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rezonia/facturx-service/internal/pdfa"
	"github.com/rezonia/facturx-service/internal/pipeline"
)

// Input bundles the storage rows one generation run consumes
type Input struct {
	Invoice   InvoiceRecord
	LineItems []LineItemRecord
	Seller    SellerProfile
	Buyer     BuyerRecord
	Profile   Profile
}

// Output is the result of a successful generation run
type Output struct {
	Invoice  *CanonicalInvoice
	XML      []byte
	PDF      []byte
	Warnings []string
}

// GeneratorOptions configures a Generator
type GeneratorOptions struct {
	Logger zerolog.Logger
}

// DefaultGeneratorOptions returns options with logging disabled
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{Logger: zerolog.Nop()}
}

// Generator produces Factur-X documents. A single instance is safe for
// concurrent use.
type Generator struct {
	pipeline *pipeline.Pipeline
}

// NewGenerator creates a generator with default options
func NewGenerator() *Generator {
	return NewGeneratorWithOptions(DefaultGeneratorOptions())
}

// NewGeneratorWithOptions creates a generator with the given options
func NewGeneratorWithOptions(opts GeneratorOptions) *Generator {
	return &Generator{
		pipeline: pipeline.NewPipeline(pipeline.WithLogger(opts.Logger)),
	}
}

// Generate runs the full map, serialize and embed sequence and returns the
// compliant PDF together with the XML payload it carries.
func (g *Generator) Generate(ctx context.Context, in Input, basePDF []byte) (*Output, error) {
	result := g.pipeline.Generate(ctx, pipelineInput(in), basePDF)
	if result.Error != nil {
		return nil, result.Error
	}
	return &Output{
		Invoice:  result.Invoice,
		XML:      result.XML,
		PDF:      result.PDF,
		Warnings: result.Warnings,
	}, nil
}

// GenerateXML produces the CII XML without a PDF container.
func (g *Generator) GenerateXML(ctx context.Context, in Input) (*Output, error) {
	result := g.pipeline.BuildXML(ctx, pipelineInput(in))
	if result.Error != nil {
		return nil, result.Error
	}
	return &Output{
		Invoice:  result.Invoice,
		XML:      result.XML,
		Warnings: result.Warnings,
	}, nil
}

// Validate maps the rows onto the canonical model without producing output.
func (g *Generator) Validate(ctx context.Context, in Input) (*CanonicalInvoice, []string, error) {
	result := g.pipeline.Validate(ctx, pipelineInput(in))
	if result.Error != nil {
		return nil, result.Warnings, result.Error
	}
	return result.Invoice, result.Warnings, nil
}

// ExtractXML reads the embedded invoice XML back out of a generated PDF.
func ExtractXML(pdf []byte) (string, []byte, error) {
	return pdfa.ExtractXML(pdf)
}

func pipelineInput(in Input) pipeline.Input {
	return pipeline.Input{
		Invoice:   in.Invoice,
		LineItems: in.LineItems,
		Seller:    in.Seller,
		Buyer:     in.Buyer,
		Profile:   in.Profile,
	}
}
