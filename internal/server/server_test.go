package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/facturx-service/internal/pdfa"
	"github.com/rezonia/facturx-service/internal/record"
	"github.com/rezonia/facturx-service/internal/server"
)

func newTestServer() *server.Server {
	config := &server.Config{
		Address: ":8080",
		Debug:   true,
	}
	return server.NewServer(config, zerolog.Nop())
}

func f(v float64) *float64 { return &v }

func basePDF() []byte {
	w := pdfa.NewWriter()
	w.Header("1.7")
	w.DictObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	w.DictObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 595 842] >>")
	w.DictObj(3, "<< /Type /Page /Parent 2 0 R >>")
	return w.FinishTable("<< /Size 4 /Root 1 0 R >>")
}

func sampleRequest() server.GenerateRequest {
	return server.GenerateRequest{
		Invoice: record.InvoiceRecord{
			InvoiceNumber: "INV-2024-001",
			IssueDate:     "2024-03-01",
			Subtotal:      f(100.00),
			TaxAmount:     f(20.00),
			Total:         f(120.00),
		},
		LineItems: []record.LineItemRecord{
			{Description: "Dépannage plomberie", Quantity: f(2), UnitPrice: f(50.00), VATRate: f(20)},
		},
		Seller: record.SellerProfile{
			CompanyName: "Plomberie Martin",
			SIRET:       "12345678900014",
			VATNumber:   "FR32123456789",
		},
		Buyer: record.BuyerRecord{
			Name: "Dupont SARL",
		},
	}
}

func postJSON(t *testing.T, srv *server.Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, response["time"])
}

func TestGenerateEndpoint(t *testing.T) {
	srv := newTestServer()

	reqBody := sampleRequest()
	reqBody.BasePDF = basePDF()

	w := postJSON(t, srv, "/api/v1/invoices/generate", reqBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "EN16931", w.Header().Get("X-Compliance-Profile"))
	assert.Equal(t, `attachment; filename="facture-INV-2024-001-facturx.pdf"`,
		w.Header().Get("Content-Disposition"))
	assert.Empty(t, w.Header().Get("X-Generation-Warnings"))

	name, xml, err := pdfa.ExtractXML(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, pdfa.AttachmentName, name)
	assert.Contains(t, string(xml), "INV-2024-001")
}

func TestGenerateEndpoint_WarningsHeader(t *testing.T) {
	srv := newTestServer()

	reqBody := sampleRequest()
	reqBody.BasePDF = basePDF()
	// stored subtotal disagrees with the 100.00 line sum
	reqBody.Invoice.Subtotal = f(150.00)
	reqBody.Invoice.Total = f(170.00)

	w := postJSON(t, srv, "/api/v1/invoices/generate", reqBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Generation-Warnings"))
}

func TestGenerateEndpoint_MissingBasePDF(t *testing.T) {
	srv := newTestServer()

	w := postJSON(t, srv, "/api/v1/invoices/generate", sampleRequest())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response server.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, server.CodeBadRequest, response.Code)
}

func TestGenerateEndpoint_ValidationError(t *testing.T) {
	srv := newTestServer()

	reqBody := sampleRequest()
	reqBody.BasePDF = basePDF()
	reqBody.Invoice.InvoiceNumber = ""

	w := postJSON(t, srv, "/api/v1/invoices/generate", reqBody)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response server.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, server.CodeValidation, response.Code)
	assert.Contains(t, response.Error, "invoice_number")
}

func TestGenerateEndpoint_EmbeddingError(t *testing.T) {
	srv := newTestServer()

	reqBody := sampleRequest()
	reqBody.BasePDF = []byte("definitely not a pdf")

	w := postJSON(t, srv, "/api/v1/invoices/generate", reqBody)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response server.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, server.CodeEmbedding, response.Code)
}

func TestGenerateEndpoint_UnknownProfile(t *testing.T) {
	srv := newTestServer()

	reqBody := sampleRequest()
	reqBody.BasePDF = basePDF()
	reqBody.Profile = "BASIC-WL"

	w := postJSON(t, srv, "/api/v1/invoices/generate", reqBody)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateEndpoint_MalformedBody(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/generate", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestXMLEndpoint(t *testing.T) {
	srv := newTestServer()

	w := postJSON(t, srv, "/api/v1/invoices/xml", sampleRequest())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "rsm:CrossIndustryInvoice")
	assert.Contains(t, w.Body.String(), "INV-2024-001")
}

func TestValidateEndpoint(t *testing.T) {
	srv := newTestServer()

	w := postJSON(t, srv, "/api/v1/invoices/validate", sampleRequest())
	require.Equal(t, http.StatusOK, w.Code)

	var response server.ValidateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	assert.True(t, response.Valid)
	require.NotNil(t, response.Invoice)
	assert.Equal(t, "INV-2024-001", response.Invoice.DocumentNumber)
	assert.Equal(t, "2024-03-01", response.Invoice.IssueDate)
	assert.Equal(t, "Plomberie Martin", response.Invoice.SellerName)
	assert.Equal(t, 1, response.Invoice.Lines)
	assert.Equal(t, "100.00", response.Invoice.TotalExcludingTax)
	assert.Equal(t, "20.00", response.Invoice.TotalTax)
	assert.Equal(t, "120.00", response.Invoice.TotalIncludingTax)
	assert.Equal(t, "EUR", response.Invoice.Currency)
}

func TestValidateEndpoint_Invalid(t *testing.T) {
	srv := newTestServer()

	reqBody := sampleRequest()
	reqBody.Invoice.IssueDate = ""

	w := postJSON(t, srv, "/api/v1/invoices/validate", reqBody)
	require.Equal(t, http.StatusOK, w.Code)

	var response server.ValidateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Valid)
	assert.NotEmpty(t, response.Errors)
}

func TestInspectEndpoint(t *testing.T) {
	srv := newTestServer()

	// generate first, then read the result back through inspect
	reqBody := sampleRequest()
	reqBody.BasePDF = basePDF()
	generated := postJSON(t, srv, "/api/v1/invoices/generate", reqBody)
	require.Equal(t, http.StatusOK, generated.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/inspect", bytes.NewReader(generated.Body.Bytes()))
	req.Header.Set("Content-Type", "application/pdf")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response server.InspectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, pdfa.AttachmentName, response.Filename)
	assert.Equal(t, "EN 16931", response.Profile)
	assert.Contains(t, response.XML, "INV-2024-001")
}

func TestInspectEndpoint_NoAttachment(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/inspect", bytes.NewReader(basePDF()))
	req.Header.Set("Content-Type", "application/pdf")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response server.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, server.CodeNoAttachment, response.Code)
}

func TestInspectEndpoint_EmptyBody(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/inspect", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "test-id-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "test-id-123", w.Header().Get("X-Request-ID"))

	// generated when absent
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func BenchmarkGenerateEndpoint(b *testing.B) {
	srv := newTestServer()

	reqBody := sampleRequest()
	reqBody.BasePDF = basePDF()
	data, _ := json.Marshal(reqBody)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/generate", bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
	}
}

func BenchmarkXMLEndpoint(b *testing.B) {
	srv := newTestServer()

	data, _ := json.Marshal(sampleRequest())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/xml", bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
	}
}
