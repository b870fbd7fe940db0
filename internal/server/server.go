package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rezonia/facturx-service/internal/model"
	"github.com/rezonia/facturx-service/internal/pdfa"
	"github.com/rezonia/facturx-service/internal/pipeline"
)

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server represents the HTTP API server
type Server struct {
	config   *Config
	router   *gin.Engine
	pipeline *pipeline.Pipeline
	log      zerolog.Logger
}

// NewServer creates a new API server
func NewServer(config *Config, log zerolog.Logger) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	s := &Server{
		config:   config,
		router:   router,
		pipeline: pipeline.NewPipeline(pipeline.WithLogger(log)),
		log:      log,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/invoices/generate", s.handleGenerate)
		v1.POST("/invoices/xml", s.handleXML)
		v1.POST("/invoices/validate", s.handleValidate)
		v1.POST("/invoices/inspect", s.handleInspect)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGenerate(c *gin.Context) {
	req, in, ok := s.bindRequest(c)
	if !ok {
		return
	}
	if len(req.BasePDF) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "base_pdf is required", Code: CodeBadRequest})
		return
	}

	result := s.pipeline.Generate(c.Request.Context(), *in, req.BasePDF)
	if result.Error != nil {
		s.renderError(c, result)
		return
	}

	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", pipeline.AttachmentFilename(result.Invoice.DocumentNumber)))
	c.Header("X-Compliance-Profile", string(result.Invoice.Profile))
	if len(result.Warnings) > 0 {
		c.Header("X-Generation-Warnings", fmt.Sprintf("%d", len(result.Warnings)))
	}
	c.Data(http.StatusOK, "application/pdf", result.PDF)
}

func (s *Server) handleXML(c *gin.Context) {
	_, in, ok := s.bindRequest(c)
	if !ok {
		return
	}

	result := s.pipeline.BuildXML(c.Request.Context(), *in)
	if result.Error != nil {
		s.renderError(c, result)
		return
	}

	c.Header("X-Compliance-Profile", string(result.Invoice.Profile))
	c.Data(http.StatusOK, "application/xml", result.XML)
}

func (s *Server) handleValidate(c *gin.Context) {
	_, in, ok := s.bindRequest(c)
	if !ok {
		return
	}

	result := s.pipeline.Validate(c.Request.Context(), *in)
	if result.Error != nil {
		c.JSON(http.StatusOK, ValidateResponse{
			Valid:    false,
			Warnings: result.Warnings,
			Errors:   []string{result.Error.Error()},
		})
		return
	}

	inv := result.Invoice
	summary := &InvoiceSummary{
		DocumentNumber:    inv.DocumentNumber,
		IssueDate:         inv.IssueDate.Format("2006-01-02"),
		SellerName:        inv.Seller.LegalName,
		BuyerName:         inv.Buyer.Name,
		Lines:             len(inv.Lines),
		TotalExcludingTax: inv.Summary.TaxExclusive.StringFixed(2),
		TotalTax:          inv.Summary.Tax.StringFixed(2),
		TotalIncludingTax: inv.Summary.TaxInclusive.StringFixed(2),
		Currency:          inv.Currency,
		Profile:           string(inv.Profile),
	}
	if inv.DueDate != nil {
		summary.DueDate = inv.DueDate.Format("2006-01-02")
	}

	c.JSON(http.StatusOK, ValidateResponse{
		Valid:    true,
		Invoice:  summary,
		Warnings: result.Warnings,
	})
}

func (s *Server) handleInspect(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body", Code: CodeBadRequest})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body", Code: CodeBadRequest})
		return
	}

	name, xml, err := pdfa.ExtractXML(body)
	if err != nil {
		if errors.Is(err, pdfa.ErrNoAttachment) {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: CodeNoAttachment})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeBadRequest})
		return
	}

	c.JSON(http.StatusOK, InspectResponse{
		Filename: name,
		Profile:  pdfa.ConformanceLevel(body),
		XML:      string(xml),
	})
}

// bindRequest decodes the JSON body and resolves the compliance profile.
func (s *Server) bindRequest(c *gin.Context) (*GenerateRequest, *pipeline.Input, bool) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: CodeBadRequest})
		return nil, nil, false
	}

	profile, err := model.ParseProfile(req.Profile)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeBadRequest})
		return nil, nil, false
	}

	return &req, &pipeline.Input{
		Invoice:   req.Invoice,
		LineItems: req.LineItems,
		Seller:    req.Seller,
		Buyer:     req.Buyer,
		Profile:   profile,
	}, true
}

// renderError maps the pipeline error taxonomy onto HTTP statuses: invalid
// invoice data is the caller's problem (422), a non-PDF base is a broken
// upstream renderer (400), everything else is ours (500).
func (s *Server) renderError(c *gin.Context, result *pipeline.Result) {
	var validationErr *model.ValidationError
	var embeddingErr *model.EmbeddingError
	var serializationErr *model.SerializationError

	switch {
	case errors.As(result.Error, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:    result.Error.Error(),
			Code:     CodeValidation,
			Warnings: result.Warnings,
		})
	case errors.As(result.Error, &embeddingErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:    result.Error.Error(),
			Code:     CodeEmbedding,
			Warnings: result.Warnings,
		})
	case errors.As(result.Error, &serializationErr):
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:    result.Error.Error(),
			Code:     CodeSerialization,
			Warnings: result.Warnings,
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:    result.Error.Error(),
			Code:     CodeInternal,
			Warnings: result.Warnings,
		})
	}
}
