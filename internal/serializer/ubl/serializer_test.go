package ubl

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/xrechnung-converter/internal/model"
	"github.com/rezonia/xrechnung-converter/internal/money"
)

func testInvoice(t *testing.T) *model.Invoice {
	t.Helper()

	inv, err := model.New(
		model.Header{
			ID:        "RE-2024-0815",
			IssueDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			LeitwegID: "04011000-1234512345-06",
			Notes:     []string{"Lieferung erfolgt frei Haus.", "Es gelten unsere AGB."},
		},
		model.Trade{
			Agreement: model.Agreement{
				Seller: model.Party{
					Name:  "Kraxi GmbH",
					VATID: "DE123456789",
					Address: model.Address{
						Street:      "Flugzeugallee 17",
						City:        "Papierfeld",
						PostalCode:  "12345",
						CountryCode: "DE",
					},
				},
				Buyer: model.Party{
					Name: "Flugzeug AG",
					Address: model.Address{
						Street:      "Rollfeld 1",
						City:        "Hangarstadt",
						PostalCode:  "54321",
						CountryCode: "DE",
					},
				},
			},
			Settlement: model.Settlement{
				PaymentMeans:       model.PaymentMeans{IBAN: "DE02120300000000202051"},
				AdvancePaymentDate: time.Date(2024, 4, 14, 0, 0, 0, 0, time.UTC),
			},
			Items: []model.LineItem{
				{
					Name:     "Papierflieger Kraxi",
					NetPrice: decimal.RequireFromString("845.00"),
					Quantity: decimal.NewFromInt(1),
					Tax:      model.Tax{Category: model.TaxCategoryStandard, Rate: decimal.NewFromInt(19)},
				},
			},
		},
	)
	require.NoError(t, err)
	money.Aggregate(inv)
	return inv
}

func TestSerialize(t *testing.T) {
	out, err := New().Serialize(testInvoice(t))
	require.NoError(t, err)
	xml := string(out)

	assert.Contains(t, xml, `xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"`)
	assert.Contains(t, xml, "<cbc:CustomizationID>"+CustomizationID+"</cbc:CustomizationID>")
	assert.Contains(t, xml, "<cbc:ProfileID>"+ProfileID+"</cbc:ProfileID>")
	assert.Contains(t, xml, "<cbc:ID>RE-2024-0815</cbc:ID>")
	assert.Contains(t, xml, "<cbc:IssueDate>2024-03-15</cbc:IssueDate>")
	assert.Contains(t, xml, "<cbc:DueDate>2024-04-14</cbc:DueDate>")
	assert.Contains(t, xml, "<cbc:InvoiceTypeCode>380</cbc:InvoiceTypeCode>")
	assert.Contains(t, xml, "<cbc:BuyerReference>04011000-1234512345-06</cbc:BuyerReference>")
	assert.Contains(t, xml, "<cbc:PaymentMeansCode>58</cbc:PaymentMeansCode>")
	assert.Contains(t, xml, `<cbc:TaxAmount currencyID="EUR">160.55</cbc:TaxAmount>`)
	assert.Contains(t, xml, `<cbc:TaxableAmount currencyID="EUR">845.00</cbc:TaxableAmount>`)
	assert.Contains(t, xml, `<cbc:TaxInclusiveAmount currencyID="EUR">1005.55</cbc:TaxInclusiveAmount>`)
	assert.Contains(t, xml, `<cbc:PayableAmount currencyID="EUR">1005.55</cbc:PayableAmount>`)
	assert.Contains(t, xml, "<cbc:CompanyID>DE123456789</cbc:CompanyID>")
	assert.Contains(t, xml, `<cbc:InvoicedQuantity unitCode="C62">1</cbc:InvoicedQuantity>`)
}

func TestSerializeNotesAreJoined(t *testing.T) {
	out, err := New().Serialize(testInvoice(t))
	require.NoError(t, err)

	assert.Contains(t, string(out),
		"<cbc:Note>Lieferung erfolgt frei Haus. Es gelten unsere AGB.</cbc:Note>")
}

func TestSerializePaymentTermsFromDueDate(t *testing.T) {
	out, err := New().Serialize(testInvoice(t))
	require.NoError(t, err)

	// 2024-03-15 to 2024-04-14 is 30 days.
	assert.Contains(t, string(out), "<cbc:Note>Zahlbar innerhalb von 30 Tagen ohne Abzug.</cbc:Note>")
}

func TestSerializeBuyerReferenceOmittedWithoutLeitwegID(t *testing.T) {
	inv := testInvoice(t)
	inv.Header.LeitwegID = ""

	out, err := New().Serialize(inv)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "cbc:BuyerReference")
}

func TestSerializeAgreementReferences(t *testing.T) {
	inv := testInvoice(t)
	inv.Trade.Agreement.ProjectReference = "PRJ-7"
	inv.Trade.Agreement.ObjectReference = "OBJ-42"
	inv.Trade.Agreement.DocumentReference = "DOC-11"
	inv.Trade.Agreement.PreviousBillingReference = "RE-2023-99"
	inv.Trade.Agreement.PreviousBillingDate = time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)

	out, err := New().Serialize(inv)
	require.NoError(t, err)
	xml := string(out)

	assert.Contains(t, xml, "<cac:ProjectReference>")
	assert.Contains(t, xml, "<cbc:ID>PRJ-7</cbc:ID>")
	assert.Contains(t, xml, "<cac:BillingReference>")
	assert.Contains(t, xml, "<cac:InvoiceDocumentReference>")
	assert.Contains(t, xml, "<cbc:ID>RE-2023-99</cbc:ID>")
	assert.Contains(t, xml, "<cbc:IssueDate>2023-12-01</cbc:IssueDate>")
	assert.Contains(t, xml, "<cbc:ID>OBJ-42</cbc:ID>")
	assert.Contains(t, xml, "<cbc:DocumentTypeCode>130</cbc:DocumentTypeCode>")
	assert.Contains(t, xml, "<cbc:ID>DOC-11</cbc:ID>")
}

func TestSerializeIsDeterministic(t *testing.T) {
	inv := testInvoice(t)
	s := New()

	first, err := s.Serialize(inv)
	require.NoError(t, err)
	second, err := s.Serialize(inv)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSerializeExemptionWithoutReasonIsRejected(t *testing.T) {
	inv := testInvoice(t)
	inv.Trade.Settlement.TradeTaxes = []model.TradeTax{
		{Category: model.TaxCategoryOutOfScope, Rate: decimal.Zero, Basis: decimal.RequireFromString("845.00")},
	}

	_, err := New().Serialize(inv)
	require.Error(t, err)

	var serr *model.SerializationError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, model.FormatUBL, serr.Format)
}

func TestSerializeMinimalExemptInvoice(t *testing.T) {
	inv, err := model.New(
		model.Header{ID: "RE-MIN-1", IssueDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		model.Trade{
			Agreement: model.Agreement{
				Seller: model.Party{Name: "Kraxi GmbH", VATID: "DE123456789"},
				Buyer:  model.Party{Name: "Flugzeug AG"},
			},
			Items: []model.LineItem{
				{
					Name:     "Beratung",
					NetPrice: decimal.RequireFromString("999.00"),
					Quantity: decimal.NewFromInt(1),
					Tax: model.Tax{
						Category:            model.TaxCategoryReverseCharge,
						Rate:                decimal.Zero,
						ExemptionReasonCode: "VATEX-EU-AE",
					},
				},
			},
		},
	)
	require.NoError(t, err)
	money.Aggregate(inv)

	out, err := New().Serialize(inv)
	require.NoError(t, err)
	xml := string(out)

	assert.Contains(t, xml, "<cbc:TaxExemptionReasonCode>VATEX-EU-AE</cbc:TaxExemptionReasonCode>")
	assert.Contains(t, xml, `<cbc:TaxAmount currencyID="EUR">0.00</cbc:TaxAmount>`)
	assert.Contains(t, xml, `<cbc:PayableAmount currencyID="EUR">999.00</cbc:PayableAmount>`)
}
