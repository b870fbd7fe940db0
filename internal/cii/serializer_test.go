package cii_test

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/facturx-service/internal/cii"
	"github.com/rezonia/facturx-service/internal/model"
)

func sampleInvoice() *model.CanonicalInvoice {
	due := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	return &model.CanonicalInvoice{
		DocumentNumber: "INV-2024-001",
		IssueDate:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:        &due,
		Seller: model.Seller{
			LegalName: "Plomberie Martin",
			Address:   "12 rue de la Paix, 75002 Paris",
			SIRET:     "12345678900014",
			VATNumber: "FR32123456789",
			Email:     "contact@plomberie-martin.fr",
			Phone:     "+33 1 23 45 67 89",
		},
		Buyer: model.Buyer{
			Name:    "Dupont SARL",
			Address: "8 avenue Victor Hugo, 75016 Paris",
		},
		Lines: []model.Line{
			{
				Description: "Dépannage plomberie",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.NewFromFloat(50.00),
				LineTotal:   decimal.NewFromFloat(100.00),
				VATRate:     decimal.NewFromInt(20),
			},
		},
		Summary: model.MonetarySummary{
			TaxExclusive: decimal.NewFromFloat(100.00),
			Tax:          decimal.NewFromFloat(20.00),
			TaxInclusive: decimal.NewFromFloat(120.00),
		},
		Currency: "EUR",
		Profile:  model.ProfileEN16931,
	}
}

func parse(t *testing.T, data []byte) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(data))
	return doc
}

func text(t *testing.T, doc *etree.Document, path string) string {
	t.Helper()
	el := doc.FindElement(path)
	require.NotNil(t, el, "element not found: %s", path)
	return el.Text()
}

func TestSerialize_DocumentStructure(t *testing.T) {
	out, err := cii.Serialize(sampleInvoice())
	require.NoError(t, err)

	doc := parse(t, out)
	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "CrossIndustryInvoice", root.Tag)
	assert.Equal(t, "rsm", root.Space)

	assert.Equal(t, "urn:cen.eu:en16931:2017",
		text(t, doc, "//rsm:ExchangedDocumentContext/ram:GuidelineSpecifiedDocumentContextParameter/ram:ID"))
	assert.Equal(t, "INV-2024-001", text(t, doc, "//rsm:ExchangedDocument/ram:ID"))
	assert.Equal(t, "380", text(t, doc, "//rsm:ExchangedDocument/ram:TypeCode"))

	issue := doc.FindElement("//rsm:ExchangedDocument/ram:IssueDateTime/udt:DateTimeString")
	require.NotNil(t, issue)
	assert.Equal(t, "20240301", issue.Text())
	assert.Equal(t, "102", issue.SelectAttrValue("format", ""))
}

func TestSerialize_LineItem(t *testing.T) {
	out, err := cii.Serialize(sampleInvoice())
	require.NoError(t, err)
	doc := parse(t, out)

	line := doc.FindElement("//ram:IncludedSupplyChainTradeLineItem")
	require.NotNil(t, line)

	assert.Equal(t, "1", text(t, doc, "//ram:AssociatedDocumentLineDocument/ram:LineID"))
	assert.Equal(t, "Dépannage plomberie", text(t, doc, "//ram:SpecifiedTradeProduct/ram:Name"))
	assert.Equal(t, "50.00", text(t, doc, "//ram:NetPriceProductTradePrice/ram:ChargeAmount"))

	qty := doc.FindElement("//ram:SpecifiedLineTradeDelivery/ram:BilledQuantity")
	require.NotNil(t, qty)
	assert.Equal(t, "2.00", qty.Text())
	assert.Equal(t, "C62", qty.SelectAttrValue("unitCode", ""))

	assert.Equal(t, "100.00",
		text(t, doc, "//ram:SpecifiedTradeSettlementLineMonetarySummation/ram:LineTotalAmount"))
}

func TestSerialize_Parties(t *testing.T) {
	out, err := cii.Serialize(sampleInvoice())
	require.NoError(t, err)
	doc := parse(t, out)

	assert.Equal(t, "Plomberie Martin", text(t, doc, "//ram:SellerTradeParty/ram:Name"))

	siret := doc.FindElement("//ram:SellerTradeParty/ram:SpecifiedLegalOrganization/ram:ID")
	require.NotNil(t, siret)
	assert.Equal(t, "12345678900014", siret.Text())
	assert.Equal(t, "0009", siret.SelectAttrValue("schemeID", ""))

	vat := doc.FindElement("//ram:SellerTradeParty/ram:SpecifiedTaxRegistration/ram:ID")
	require.NotNil(t, vat)
	assert.Equal(t, "FR32123456789", vat.Text())
	assert.Equal(t, "VA", vat.SelectAttrValue("schemeID", ""))

	assert.Equal(t, "12 rue de la Paix, 75002 Paris",
		text(t, doc, "//ram:SellerTradeParty/ram:PostalTradeAddress/ram:LineOne"))
	assert.Equal(t, "FR",
		text(t, doc, "//ram:SellerTradeParty/ram:PostalTradeAddress/ram:CountryID"))

	assert.Equal(t, "Dupont SARL", text(t, doc, "//ram:BuyerTradeParty/ram:Name"))
}

func TestSerialize_OptionalElementsOmitted(t *testing.T) {
	inv := sampleInvoice()
	inv.Seller.SIRET = ""
	inv.Seller.VATNumber = ""
	inv.Seller.Phone = ""
	inv.Buyer.Address = ""
	inv.DueDate = nil

	out, err := cii.Serialize(inv)
	require.NoError(t, err)
	doc := parse(t, out)

	assert.Nil(t, doc.FindElement("//ram:SellerTradeParty/ram:SpecifiedLegalOrganization"))
	assert.Nil(t, doc.FindElement("//ram:SellerTradeParty/ram:SpecifiedTaxRegistration"))
	assert.Nil(t, doc.FindElement("//ram:SellerTradeParty/ram:DefinedTradeContact"))
	assert.Nil(t, doc.FindElement("//ram:BuyerTradeParty/ram:PostalTradeAddress"))
	assert.Nil(t, doc.FindElement("//ram:SpecifiedTradePaymentTerms"))
}

func TestSerialize_TaxBreakdownPerRate(t *testing.T) {
	inv := sampleInvoice()
	inv.Lines = []model.Line{
		{
			Description: "Fourniture",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromFloat(100.00),
			LineTotal:   decimal.NewFromFloat(100.00),
			VATRate:     decimal.NewFromInt(20),
		},
		{
			Description: "Main d'oeuvre",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromFloat(200.00),
			LineTotal:   decimal.NewFromFloat(200.00),
			VATRate:     decimal.NewFromInt(10),
		},
	}
	inv.Summary = model.MonetarySummary{
		TaxExclusive: decimal.NewFromFloat(300.00),
		Tax:          decimal.NewFromFloat(40.00),
		TaxInclusive: decimal.NewFromFloat(340.00),
	}

	out, err := cii.Serialize(inv)
	require.NoError(t, err)
	doc := parse(t, out)

	buckets := doc.FindElements("//ram:ApplicableHeaderTradeSettlement/ram:ApplicableTradeTax")
	require.Len(t, buckets, 2)

	// ascending by rate
	assert.Equal(t, "10.00", buckets[0].SelectElement("RateApplicablePercent").Text())
	assert.Equal(t, "200.00", buckets[0].SelectElement("BasisAmount").Text())
	assert.Equal(t, "20.00", buckets[0].SelectElement("CalculatedAmount").Text())

	assert.Equal(t, "20.00", buckets[1].SelectElement("RateApplicablePercent").Text())
	assert.Equal(t, "100.00", buckets[1].SelectElement("BasisAmount").Text())
	assert.Equal(t, "20.00", buckets[1].SelectElement("CalculatedAmount").Text())
}

func TestSerialize_ZeroRateCategory(t *testing.T) {
	inv := sampleInvoice()
	inv.Lines[0].VATRate = decimal.Zero
	inv.Summary = model.MonetarySummary{
		TaxExclusive: decimal.NewFromFloat(100.00),
		Tax:          decimal.Zero,
		TaxInclusive: decimal.NewFromFloat(100.00),
	}

	out, err := cii.Serialize(inv)
	require.NoError(t, err)
	doc := parse(t, out)

	cat := doc.FindElement("//ram:ApplicableHeaderTradeSettlement/ram:ApplicableTradeTax/ram:CategoryCode")
	require.NotNil(t, cat)
	assert.Equal(t, "Z", cat.Text())
}

func TestSerialize_MonetarySummation(t *testing.T) {
	out, err := cii.Serialize(sampleInvoice())
	require.NoError(t, err)
	doc := parse(t, out)

	sum := "//ram:SpecifiedTradeSettlementHeaderMonetarySummation/"
	assert.Equal(t, "100.00", text(t, doc, sum+"ram:LineTotalAmount"))
	assert.Equal(t, "100.00", text(t, doc, sum+"ram:TaxBasisTotalAmount"))
	assert.Equal(t, "120.00", text(t, doc, sum+"ram:GrandTotalAmount"))
	assert.Equal(t, "120.00", text(t, doc, sum+"ram:DuePayableAmount"))

	taxTotal := doc.FindElement(sum + "ram:TaxTotalAmount")
	require.NotNil(t, taxTotal)
	assert.Equal(t, "20.00", taxTotal.Text())
	assert.Equal(t, "EUR", taxTotal.SelectAttrValue("currencyID", ""))

	assert.Equal(t, "EUR", text(t, doc, "//ram:ApplicableHeaderTradeSettlement/ram:InvoiceCurrencyCode"))
}

func TestSerialize_DueDate(t *testing.T) {
	out, err := cii.Serialize(sampleInvoice())
	require.NoError(t, err)
	doc := parse(t, out)

	due := doc.FindElement("//ram:SpecifiedTradePaymentTerms/ram:DueDateDateTime/udt:DateTimeString")
	require.NotNil(t, due)
	assert.Equal(t, "20240331", due.Text())
	assert.Equal(t, "102", due.SelectAttrValue("format", ""))
}

func TestSerialize_Deterministic(t *testing.T) {
	first, err := cii.Serialize(sampleInvoice())
	require.NoError(t, err)
	second, err := cii.Serialize(sampleInvoice())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSerialize_RejectsIncompleteModel(t *testing.T) {
	_, err := cii.Serialize(nil)
	var serializationErr *model.SerializationError
	require.ErrorAs(t, err, &serializationErr)

	inv := sampleInvoice()
	inv.DocumentNumber = ""
	_, err = cii.Serialize(inv)
	require.ErrorAs(t, err, &serializationErr)
}
