// Package cii serializes a canonical invoice into the UN/CEFACT
// Cross-Industry Invoice XML required by the Factur-X EN 16931 profile.
package cii

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/rezonia/facturx-service/internal/model"
	"github.com/rezonia/facturx-service/internal/money"
)

const (
	nsRSM = "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
	nsRAM = "urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100"
	nsUDT = "urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100"

	// type code 380: commercial invoice
	invoiceTypeCode = "380"
	// date format 102: CCYYMMDD
	dateFormatCode = "102"
	// ICD 0009: SIRET
	siretSchemeID = "0009"
	// scheme VA: VAT registration
	vatSchemeID = "VA"

	// issuing country of the SaaS; the source profiles carry free-text
	// addresses with no country field
	countryID = "FR"
)

// Serialize produces the CII XML payload for the invoice. Output is
// deterministic: identical input reproduces identical bytes.
func Serialize(inv *model.CanonicalInvoice) ([]byte, error) {
	if inv == nil {
		return nil, model.NewSerializationError("CrossIndustryInvoice", "nil invoice", nil)
	}
	if err := inv.Validate(); err != nil {
		return nil, model.NewSerializationError("CrossIndustryInvoice", "canonical model incomplete", err)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("rsm:CrossIndustryInvoice")
	root.CreateAttr("xmlns:rsm", nsRSM)
	root.CreateAttr("xmlns:ram", nsRAM)
	root.CreateAttr("xmlns:udt", nsUDT)

	addDocumentContext(root, inv.Profile)
	addExchangedDocument(root, inv)

	tx := root.CreateElement("rsm:SupplyChainTradeTransaction")
	for i, line := range inv.Lines {
		addLineItem(tx, i+1, line)
	}
	addTradeAgreement(tx, inv)
	tx.CreateElement("ram:ApplicableHeaderTradeDelivery")
	addTradeSettlement(tx, inv)

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, model.NewSerializationError("CrossIndustryInvoice", "failed to write XML", err)
	}
	return out, nil
}

func addDocumentContext(root *etree.Element, profile model.Profile) {
	ctx := root.CreateElement("rsm:ExchangedDocumentContext")
	guideline := ctx.CreateElement("ram:GuidelineSpecifiedDocumentContextParameter")
	guideline.CreateElement("ram:ID").SetText(profile.GuidelineID())
}

func addExchangedDocument(root *etree.Element, inv *model.CanonicalInvoice) {
	doc := root.CreateElement("rsm:ExchangedDocument")
	doc.CreateElement("ram:ID").SetText(inv.DocumentNumber)
	doc.CreateElement("ram:TypeCode").SetText(invoiceTypeCode)
	issue := doc.CreateElement("ram:IssueDateTime")
	dt := issue.CreateElement("udt:DateTimeString")
	dt.CreateAttr("format", dateFormatCode)
	dt.SetText(inv.IssueDate.Format("20060102"))
}

func addLineItem(tx *etree.Element, number int, line model.Line) {
	item := tx.CreateElement("ram:IncludedSupplyChainTradeLineItem")

	lineDoc := item.CreateElement("ram:AssociatedDocumentLineDocument")
	lineDoc.CreateElement("ram:LineID").SetText(fmt.Sprintf("%d", number))

	product := item.CreateElement("ram:SpecifiedTradeProduct")
	product.CreateElement("ram:Name").SetText(line.Description)

	agreement := item.CreateElement("ram:SpecifiedLineTradeAgreement")
	price := agreement.CreateElement("ram:NetPriceProductTradePrice")
	price.CreateElement("ram:ChargeAmount").SetText(money.FormatAmount(line.UnitPrice))

	delivery := item.CreateElement("ram:SpecifiedLineTradeDelivery")
	qty := delivery.CreateElement("ram:BilledQuantity")
	// C62: unit of count (the application has no per-line unit field)
	qty.CreateAttr("unitCode", "C62")
	qty.SetText(money.FormatQuantity(line.Quantity))

	settlement := item.CreateElement("ram:SpecifiedLineTradeSettlement")
	tax := settlement.CreateElement("ram:ApplicableTradeTax")
	tax.CreateElement("ram:TypeCode").SetText("VAT")
	tax.CreateElement("ram:CategoryCode").SetText(taxCategory(line.VATRate.IsZero()))
	tax.CreateElement("ram:RateApplicablePercent").SetText(money.FormatRate(line.VATRate))
	sum := settlement.CreateElement("ram:SpecifiedTradeSettlementLineMonetarySummation")
	sum.CreateElement("ram:LineTotalAmount").SetText(money.FormatAmount(line.LineTotal))
}

func addTradeAgreement(tx *etree.Element, inv *model.CanonicalInvoice) {
	agreement := tx.CreateElement("ram:ApplicableHeaderTradeAgreement")

	seller := agreement.CreateElement("ram:SellerTradeParty")
	seller.CreateElement("ram:Name").SetText(inv.Seller.LegalName)
	if inv.Seller.SIRET != "" {
		legal := seller.CreateElement("ram:SpecifiedLegalOrganization")
		id := legal.CreateElement("ram:ID")
		id.CreateAttr("schemeID", siretSchemeID)
		id.SetText(inv.Seller.SIRET)
	}
	if inv.Seller.Phone != "" {
		contact := seller.CreateElement("ram:DefinedTradeContact")
		phone := contact.CreateElement("ram:TelephoneUniversalCommunication")
		phone.CreateElement("ram:CompleteNumber").SetText(inv.Seller.Phone)
	}
	addPostalAddress(seller, inv.Seller.Address)
	addElectronicAddress(seller, inv.Seller.Email)
	if inv.Seller.VATNumber != "" {
		reg := seller.CreateElement("ram:SpecifiedTaxRegistration")
		id := reg.CreateElement("ram:ID")
		id.CreateAttr("schemeID", vatSchemeID)
		id.SetText(inv.Seller.VATNumber)
	}

	buyer := agreement.CreateElement("ram:BuyerTradeParty")
	buyer.CreateElement("ram:Name").SetText(inv.Buyer.Name)
	if inv.Buyer.SIRET != "" {
		legal := buyer.CreateElement("ram:SpecifiedLegalOrganization")
		id := legal.CreateElement("ram:ID")
		id.CreateAttr("schemeID", siretSchemeID)
		id.SetText(inv.Buyer.SIRET)
	}
	addPostalAddress(buyer, inv.Buyer.Address)
	addElectronicAddress(buyer, inv.Buyer.Email)
}

func addTradeSettlement(tx *etree.Element, inv *model.CanonicalInvoice) {
	settlement := tx.CreateElement("ram:ApplicableHeaderTradeSettlement")
	settlement.CreateElement("ram:InvoiceCurrencyCode").SetText(inv.Currency)

	for _, bucket := range inv.TaxBuckets() {
		tax := settlement.CreateElement("ram:ApplicableTradeTax")
		tax.CreateElement("ram:CalculatedAmount").SetText(money.FormatAmount(bucket.Tax))
		tax.CreateElement("ram:TypeCode").SetText("VAT")
		tax.CreateElement("ram:BasisAmount").SetText(money.FormatAmount(bucket.Basis))
		tax.CreateElement("ram:CategoryCode").SetText(taxCategory(bucket.Rate.IsZero()))
		tax.CreateElement("ram:RateApplicablePercent").SetText(money.FormatRate(bucket.Rate))
	}

	if inv.DueDate != nil {
		terms := settlement.CreateElement("ram:SpecifiedTradePaymentTerms")
		due := terms.CreateElement("ram:DueDateDateTime")
		dt := due.CreateElement("udt:DateTimeString")
		dt.CreateAttr("format", dateFormatCode)
		dt.SetText(inv.DueDate.Format("20060102"))
	}

	sum := settlement.CreateElement("ram:SpecifiedTradeSettlementHeaderMonetarySummation")
	sum.CreateElement("ram:LineTotalAmount").SetText(money.FormatAmount(inv.Summary.TaxExclusive))
	sum.CreateElement("ram:TaxBasisTotalAmount").SetText(money.FormatAmount(inv.Summary.TaxExclusive))
	taxTotal := sum.CreateElement("ram:TaxTotalAmount")
	taxTotal.CreateAttr("currencyID", inv.Currency)
	taxTotal.SetText(money.FormatAmount(inv.Summary.Tax))
	sum.CreateElement("ram:GrandTotalAmount").SetText(money.FormatAmount(inv.Summary.TaxInclusive))
	sum.CreateElement("ram:DuePayableAmount").SetText(money.FormatAmount(inv.Summary.TaxInclusive))
}

func addPostalAddress(party *etree.Element, address string) {
	if address == "" {
		return
	}
	postal := party.CreateElement("ram:PostalTradeAddress")
	postal.CreateElement("ram:LineOne").SetText(address)
	postal.CreateElement("ram:CountryID").SetText(countryID)
}

func addElectronicAddress(party *etree.Element, email string) {
	if email == "" {
		return
	}
	uri := party.CreateElement("ram:URIUniversalCommunication")
	id := uri.CreateElement("ram:URIID")
	// EM: electronic mail (EAS code list)
	id.CreateAttr("schemeID", "EM")
	id.SetText(email)
}

// taxCategory returns the UNCL 5305 category: S standard rate, Z zero rated.
func taxCategory(zero bool) string {
	if zero {
		return "Z"
	}
	return "S"
}
