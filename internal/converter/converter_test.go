package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/xrechnung-converter/internal/model"
)

// kraxiRecord is a seven-line record with a single 19% group: net 845.00,
// tax 160.55, gross 1005.55.
const kraxiRecord = `{
  "header": {
    "id": "RE-2024-0815",
    "issue_date_time": "2024-03-15",
    "leitweg_id": "04011000-1234512345-06",
    "notes": ["Vielen Dank für Ihren Auftrag."]
  },
  "trade": {
    "agreement": {
      "seller": {
        "name": "Kraxi GmbH",
        "vat_id": "DE123456789",
        "address": {"street_name": "Flugzeugallee 17", "city_name": "Papierfeld", "postal_zone": "12345", "country_code": "DE"}
      },
      "buyer": {
        "name": "Flugzeug AG",
        "address": {"street_name": "Rollfeld 1", "city_name": "Hangarstadt", "postal_zone": "54321", "country_code": "DE"}
      }
    },
    "settlement": {
      "currency_code": "EUR",
      "payment_means": {"iban": "DE02120300000000202051", "bic": "BYLADEM1001"},
      "monetary_summation": {"net_total": "845.00", "tax_total": "160.55", "grand_total": "1005.55"}
    },
    "items": [
      {"product_name": "Kraxi Standard", "agreement_net_price": "10.00", "quantity": 20, "settlement_tax": {"category": "S", "rate": 19}},
      {"product_name": "Kraxi Deluxe", "agreement_net_price": "12.50", "quantity": 10, "settlement_tax": {"category": "S", "rate": 19}},
      {"product_name": "Kraxi XL", "agreement_net_price": "25.00", "quantity": 5, "settlement_tax": {"category": "S", "rate": 19}},
      {"product_name": "Ersatzpapier", "agreement_net_price": "1.50", "quantity": 100, "settlement_tax": {"category": "S", "rate": 19}},
      {"product_name": "Kraxi Turbo", "agreement_net_price": "50.00", "quantity": 2, "settlement_tax": {"category": "S", "rate": 19}},
      {"product_name": "Flugbuch", "agreement_net_price": "30.00", "quantity": 3, "settlement_tax": {"category": "S", "rate": 19}},
      {"product_name": "Startrampe", "agreement_net_price": "5.00", "quantity": 11, "settlement_tax": {"category": "S", "rate": 19}}
    ]
  }
}`

func TestConvertBothFormats(t *testing.T) {
	result, err := New().Convert([]byte(kraxiRecord))
	require.NoError(t, err)

	require.NoError(t, result.CIIErr)
	require.NoError(t, result.UBLErr)
	assert.True(t, result.OK())
	assert.Empty(t, result.Warnings)

	cii := string(result.CII)
	assert.Contains(t, cii, "<rsm:CrossIndustryInvoice")
	assert.Contains(t, cii, "<ram:GrandTotalAmount>1005.55</ram:GrandTotalAmount>")

	ubl := string(result.UBL)
	assert.Contains(t, ubl, `xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"`)
	assert.Contains(t, ubl, `<cbc:TaxInclusiveAmount currencyID="EUR">1005.55</cbc:TaxInclusiveAmount>`)
	assert.Contains(t, ubl, "<cbc:BuyerReference>04011000-1234512345-06</cbc:BuyerReference>")
}

func TestConvertSingleFormat(t *testing.T) {
	result, err := New().Convert([]byte(kraxiRecord), model.FormatUBL)
	require.NoError(t, err)

	assert.Nil(t, result.CII)
	assert.NotNil(t, result.UBL)
}

func TestConvertReportsDiscrepancies(t *testing.T) {
	record := []byte(`{
      "header": {"id": "RE-2", "issue_date_time": "2024-03-15"},
      "trade": {
        "agreement": {
          "seller": {"name": "Kraxi GmbH", "vat_id": "DE123456789"},
          "buyer": {"name": "Flugzeug AG"}
        },
        "settlement": {
          "monetary_summation": {"net_total": "900.00", "tax_total": "171.00", "grand_total": "1071.00"}
        },
        "items": [
          {"product_name": "Papierflieger", "agreement_net_price": "845.00", "quantity": 1, "settlement_tax": {"category": "S", "rate": 19}}
        ]
      }
    }`)

	result, err := New().Convert(record)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Warnings)
	assert.Contains(t, string(result.CII), "<ram:GrandTotalAmount>1005.55</ram:GrandTotalAmount>")
}

func TestConvertIndependentSerializationFailures(t *testing.T) {
	// Exempt category without a reason code fails both serializers, but the
	// conversion itself still returns a result carrying the errors.
	record := []byte(`{
      "header": {"id": "RE-3", "issue_date_time": "2024-03-15"},
      "trade": {
        "agreement": {
          "seller": {"name": "Kraxi GmbH", "vat_id": "DE123456789"},
          "buyer": {"name": "Flugzeug AG"}
        },
        "settlement": {
          "trade_tax": [{"category": "E", "rate": 0, "basis_amount": "845.00"}]
        },
        "items": [
          {"product_name": "Beratung", "agreement_net_price": "845.00", "quantity": 1, "settlement_tax": {"category": "E", "rate": 0}}
        ]
      }
    }`)

	result, err := New().Convert(record)
	require.NoError(t, err)

	assert.Error(t, result.CIIErr)
	assert.Error(t, result.UBLErr)
	assert.False(t, result.OK())
}

func TestConvertBadInput(t *testing.T) {
	t.Run("malformed JSON", func(t *testing.T) {
		_, err := New().Convert([]byte("{not json"))
		require.Error(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		_, err := New().Convert([]byte(`{"header": {"id": "X"}}`))
		require.Error(t, err)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := New().Convert([]byte(kraxiRecord), model.OutputFormat("edifact"))
		require.Error(t, err)
	})
}
