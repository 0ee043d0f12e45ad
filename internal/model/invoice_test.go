package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validHeader() Header {
	return Header{
		ID:        "RE-2024-001",
		IssueDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

func validTrade() Trade {
	return Trade{
		Agreement: Agreement{
			Seller: Party{Name: "Kraxi GmbH", VATID: "DE123456789"},
			Buyer:  Party{Name: "Flugzeug AG"},
		},
		Items: []LineItem{
			{
				Name:     "Papierflieger",
				NetPrice: decimal.NewFromInt(10),
				Quantity: decimal.NewFromInt(2),
				Tax:      Tax{Category: TaxCategoryStandard, Rate: decimal.NewFromInt(19)},
			},
		},
	}
}

func TestNew(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		inv, err := New(validHeader(), validTrade())
		require.NoError(t, err)

		assert.Equal(t, "380", inv.Header.TypeCode)
		assert.Equal(t, "EUR", inv.Trade.Settlement.CurrencyCode)
		assert.Equal(t, DefaultGuidelineID, inv.GuidelineID)
		assert.Equal(t, "Kraxi GmbH", inv.Trade.Settlement.PayeeName)
		assert.Equal(t, "Flugzeug AG", inv.Trade.Settlement.InvoiceeName)
		assert.Equal(t, "1", inv.Trade.Items[0].ID)
		assert.Equal(t, DefaultUnitCode, inv.Trade.Items[0].UnitCode)
	})

	t.Run("computes line total from price and quantity", func(t *testing.T) {
		inv, err := New(validHeader(), validTrade())
		require.NoError(t, err)

		assert.True(t, inv.Trade.Items[0].Total.Equal(decimal.NewFromInt(20)))
	})

	t.Run("explicit line total wins over price times quantity", func(t *testing.T) {
		trade := validTrade()
		trade.Items[0].Total = decimal.NewFromFloat(19.5)
		trade.Items[0].TotalExplicit = true

		inv, err := New(validHeader(), trade)
		require.NoError(t, err)
		assert.True(t, inv.Trade.Items[0].Total.Equal(decimal.NewFromFloat(19.5)))
	})

	t.Run("required fields", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*Header, *Trade)
			field  string
		}{
			{
				name:   "missing invoice id",
				mutate: func(h *Header, _ *Trade) { h.ID = "" },
				field:  "header.id",
			},
			{
				name:   "missing issue date",
				mutate: func(h *Header, _ *Trade) { h.IssueDate = time.Time{} },
				field:  "header.issue_date_time",
			},
			{
				name:   "missing seller name",
				mutate: func(_ *Header, tr *Trade) { tr.Agreement.Seller.Name = "" },
				field:  "trade.agreement.seller.name",
			},
			{
				name:   "missing buyer name",
				mutate: func(_ *Header, tr *Trade) { tr.Agreement.Buyer.Name = "" },
				field:  "trade.agreement.buyer.name",
			},
			{
				name: "missing seller tax id",
				mutate: func(_ *Header, tr *Trade) {
					tr.Agreement.Seller.VATID = ""
					tr.Agreement.Seller.TaxNumber = ""
				},
				field: "trade.agreement.seller.tax_id",
			},
			{
				name:   "missing tax category",
				mutate: func(_ *Header, tr *Trade) { tr.Items[0].Tax.Category = "" },
				field:  "trade.items.0.settlement_tax.category",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				header := validHeader()
				trade := validTrade()
				tt.mutate(&header, &trade)

				_, err := New(header, trade)
				require.Error(t, err)

				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.field, verr.Field)
			})
		}
	})

	t.Run("rejects duplicate line ids", func(t *testing.T) {
		trade := validTrade()
		second := trade.Items[0]
		second.ID = "1"
		trade.Items[0].ID = "1"
		trade.Items = append(trade.Items, second)

		_, err := New(validHeader(), trade)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate line id")
	})

	t.Run("tax number serves as seller tax id", func(t *testing.T) {
		trade := validTrade()
		trade.Agreement.Seller.VATID = ""
		trade.Agreement.Seller.TaxNumber = "201/113/40209"

		inv, err := New(validHeader(), trade)
		require.NoError(t, err)
		assert.Equal(t, "201/113/40209", inv.Trade.Agreement.Seller.TaxID())
	})
}

func TestIsExemptionCategory(t *testing.T) {
	assert.True(t, IsExemptionCategory(TaxCategoryExempt))
	assert.True(t, IsExemptionCategory(TaxCategoryReverseCharge))
	assert.True(t, IsExemptionCategory(TaxCategoryOutOfScope))
	assert.False(t, IsExemptionCategory(TaxCategoryStandard))
	assert.False(t, IsExemptionCategory(TaxCategoryZeroRated))
}
