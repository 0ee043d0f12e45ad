package normalize

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/xrechnung-converter/internal/model"
)

func decodeRecord(t *testing.T, data string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var raw map[string]any
	require.NoError(t, dec.Decode(&raw))
	return raw
}

const minimalRecord = `{
  "header": {"id": "RE-1", "issue_date_time": "2024-03-15"},
  "trade": {
    "agreement": {
      "seller": {"name": "Kraxi GmbH", "vat_id": "DE123456789"},
      "buyer": {"name": "Flugzeug AG"}
    },
    "items": [
      {
        "product_name": "Papierflieger",
        "agreement_net_price": "10.00",
        "quantity": 2,
        "settlement_tax": {"category": "S", "rate": 19}
      }
    ]
  }
}`

func TestNormalizeMinimalRecord(t *testing.T) {
	inv, err := Normalize(decodeRecord(t, minimalRecord))
	require.NoError(t, err)

	assert.Equal(t, "RE-1", inv.Header.ID)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), inv.Header.IssueDate)
	assert.Equal(t, "Kraxi GmbH", inv.Trade.Agreement.Seller.Name)
	assert.Equal(t, "DE123456789", inv.Trade.Agreement.Seller.VATID)
	require.Len(t, inv.Trade.Items, 1)
	assert.True(t, inv.Trade.Items[0].Total.Equal(decimal.NewFromInt(20)))
}

func TestNormalizeKeyAliases(t *testing.T) {
	t.Run("header id fallbacks", func(t *testing.T) {
		raw := decodeRecord(t, minimalRecord)
		header := raw["header"].(map[string]any)
		delete(header, "id")
		header["@id"] = "RE-ALIAS"

		inv, err := Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, "RE-ALIAS", inv.Header.ID)
	})

	t.Run("issue date fallback to issue_date", func(t *testing.T) {
		raw := decodeRecord(t, minimalRecord)
		header := raw["header"].(map[string]any)
		delete(header, "issue_date_time")
		header["issue_date"] = "2024-04-01"

		inv, err := Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), inv.Header.IssueDate)
	})

	t.Run("seller tax id candidate order", func(t *testing.T) {
		raw := decodeRecord(t, minimalRecord)
		seller := raw["trade"].(map[string]any)["agreement"].(map[string]any)["seller"].(map[string]any)
		delete(seller, "vat_id")
		seller["tax_registrations"] = []any{map[string]any{"id": "DE999999999"}}

		inv, err := Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, "DE999999999", inv.Trade.Agreement.Seller.TaxID())
	})

	t.Run("empty string does not shadow later candidate", func(t *testing.T) {
		raw := decodeRecord(t, minimalRecord)
		item := raw["trade"].(map[string]any)["items"].([]any)[0].(map[string]any)
		item["product_name"] = ""
		item["name"] = "Ersatzname"

		inv, err := Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, "Ersatzname", inv.Trade.Items[0].Name)
	})
}

func TestNormalizeAbsentMarkers(t *testing.T) {
	t.Run("marker string becomes absent field", func(t *testing.T) {
		raw := decodeRecord(t, minimalRecord)
		header := raw["header"].(map[string]any)
		header["leitweg_id"] = "null"

		inv, err := Normalize(raw)
		require.NoError(t, err)
		assert.Empty(t, inv.Header.LeitwegID)
	})

	t.Run("marker does not shadow later candidate", func(t *testing.T) {
		raw := decodeRecord(t, minimalRecord)
		seller := raw["trade"].(map[string]any)["agreement"].(map[string]any)["seller"].(map[string]any)
		seller["vat_id"] = "n/a"
		seller["tax_id"] = "123/456/78901"

		inv, err := Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, "123/456/78901", inv.Trade.Agreement.Seller.TaxID())
	})
}

func TestNormalizeGermanNumbers(t *testing.T) {
	raw := decodeRecord(t, minimalRecord)
	item := raw["trade"].(map[string]any)["items"].([]any)[0].(map[string]any)
	item["total_amount"] = "1.005,55"

	inv, err := Normalize(raw)
	require.NoError(t, err)
	assert.True(t, inv.Trade.Items[0].Total.Equal(decimal.NewFromFloat(1005.55)),
		"got %s", inv.Trade.Items[0].Total)
	assert.True(t, inv.Trade.Items[0].TotalExplicit)
}

func TestNormalizeMissingTaxCategory(t *testing.T) {
	raw := decodeRecord(t, minimalRecord)
	item := raw["trade"].(map[string]any)["items"].([]any)[0].(map[string]any)
	delete(item, "settlement_tax")

	_, err := Normalize(raw)
	require.Error(t, err)

	var nerr *model.NormalizationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "trade.items.0.settlement_tax.category", nerr.Path)
}

func TestNormalizeNotes(t *testing.T) {
	raw := decodeRecord(t, minimalRecord)
	header := raw["header"].(map[string]any)
	header["notes"] = []any{
		"Plain note",
		map[string]any{"content": "Object note"},
		map[string]any{"content": []any{"First", "Second"}},
	}

	inv, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"Plain note", "Object note", "First", "Second"}, inv.Header.Notes)
}

func TestNormalizeBillingPeriod(t *testing.T) {
	t.Run("nested object", func(t *testing.T) {
		raw := decodeRecord(t, minimalRecord)
		trade := raw["trade"].(map[string]any)
		trade["billing_period"] = map[string]any{
			"start_date": "2024-03-01",
			"end_date":   "2024-03-31",
		}

		inv, err := Normalize(raw)
		require.NoError(t, err)
		require.NotNil(t, inv.Trade.BillingPeriod)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), inv.Trade.BillingPeriod.Start)
	})

	t.Run("flat legacy keys", func(t *testing.T) {
		raw := decodeRecord(t, minimalRecord)
		trade := raw["trade"].(map[string]any)
		trade["start_date"] = "2024-03-01"
		trade["end_date"] = "2024-03-31"

		inv, err := Normalize(raw)
		require.NoError(t, err)
		require.NotNil(t, inv.Trade.BillingPeriod)
		assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), inv.Trade.BillingPeriod.End)
	})

	t.Run("absent", func(t *testing.T) {
		inv, err := Normalize(decodeRecord(t, minimalRecord))
		require.NoError(t, err)
		assert.Nil(t, inv.Trade.BillingPeriod)
	})
}

func TestNormalizeVATShapedTaxID(t *testing.T) {
	raw := decodeRecord(t, minimalRecord)
	seller := raw["trade"].(map[string]any)["agreement"].(map[string]any)["seller"].(map[string]any)
	delete(seller, "vat_id")
	seller["tax_id"] = "DE123456789"

	inv, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "DE123456789", inv.Trade.Agreement.Seller.VATID)
	assert.Empty(t, inv.Trade.Agreement.Seller.TaxNumber)
}

func TestNormalizeUnparsableDate(t *testing.T) {
	raw := decodeRecord(t, minimalRecord)
	header := raw["header"].(map[string]any)
	header["issue_date_time"] = "15.03.2024"

	_, err := Normalize(raw)
	require.Error(t, err)

	var nerr *model.NormalizationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "header.issue_date_time", nerr.Path)
}

func TestNormalizeAllowanceCharges(t *testing.T) {
	raw := decodeRecord(t, minimalRecord)
	trade := raw["trade"].(map[string]any)
	trade["allowances"] = []any{
		map[string]any{"reason": "Treuerabatt", "amount": "10.00", "tax_category": "S", "tax_rate": 19},
	}
	trade["charges"] = []any{
		map[string]any{"reason": "Versand", "amount": "5.90", "tax_category": "S", "tax_rate": 19},
	}

	inv, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, inv.Trade.AllowanceCharges, 2)
	assert.False(t, inv.Trade.AllowanceCharges[0].Charge)
	assert.True(t, inv.Trade.AllowanceCharges[1].Charge)
	assert.Equal(t, "Versand", inv.Trade.AllowanceCharges[1].Reason)
}
