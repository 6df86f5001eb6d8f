package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriod(t *testing.T) {
	jan := Period{2024, time.January}
	feb := Period{2024, time.February}
	dec23 := Period{2023, time.December}

	assert.True(t, dec23.Before(jan))
	assert.True(t, jan.Before(feb))
	assert.False(t, feb.Before(jan))

	assert.Equal(t, "2024-01", jan.String())
	assert.Equal(t, "", Period{}.String())
	assert.True(t, Period{}.IsZero())
	assert.False(t, jan.IsZero())

	assert.Equal(t, jan, PeriodOf(date(2024, 1, 31)))
	assert.True(t, PeriodOf(time.Time{}).IsZero())
}

func TestFilterRange(t *testing.T) {
	ds := &EnrichedDataset{
		Sales: []SaleLine{
			{Date: date(2024, 1, 5), Invoice: "A"},
			{Date: date(2024, 2, 10), Invoice: "B"},
			{Date: date(2024, 3, 20), Invoice: "C"},
			{Invoice: "D"}, // no parsable date
		},
		Returns: []ReturnLine{
			{SaleDate: date(2024, 1, 5), Invoice: "A"},
			{SaleDate: date(2024, 3, 20), Invoice: "C"},
		},
		CoercionWarnings: 3,
	}

	t.Run("open bounds return the dataset unchanged", func(t *testing.T) {
		assert.Same(t, ds, ds.FilterRange(time.Time{}, time.Time{}))
	})

	t.Run("inclusive bounds", func(t *testing.T) {
		got := ds.FilterRange(date(2024, 2, 10), date(2024, 3, 20))
		require.Len(t, got.Sales, 2)
		assert.Equal(t, "B", got.Sales[0].Invoice)
		assert.Equal(t, "C", got.Sales[1].Invoice)
		require.Len(t, got.Returns, 1)
		assert.Equal(t, "C", got.Returns[0].Invoice)
		assert.Equal(t, 3, got.CoercionWarnings)
	})

	t.Run("dateless rows are excluded from bounded ranges", func(t *testing.T) {
		got := ds.FilterRange(date(2024, 1, 1), time.Time{})
		for _, s := range got.Sales {
			assert.NotEqual(t, "D", s.Invoice)
		}
	})
}

func TestFilterCategory(t *testing.T) {
	ds := &EnrichedDataset{
		Sales: []SaleLine{
			{Category: "Casa", SKU: "A1"},
			{Category: "Eletronicos", SKU: "B2"},
		},
		Returns: []ReturnLine{
			{Category: "Casa", SKU: "A1"},
			{Category: "Eletronicos", SKU: "B2"},
		},
	}

	assert.Same(t, ds, ds.FilterCategory(""))

	got := ds.FilterCategory("Casa")
	require.Len(t, got.Sales, 1)
	assert.Equal(t, "A1", got.Sales[0].SKU)
	require.Len(t, got.Returns, 1)
	assert.Equal(t, "A1", got.Returns[0].SKU)
}

func TestCategories(t *testing.T) {
	ds := &EnrichedDataset{Sales: []SaleLine{
		{Category: "Casa"},
		{Category: "Eletronicos"},
		{Category: "Casa"},
		{Category: Unknown},
	}}
	assert.Equal(t, []string{"Casa", "Eletronicos", Unknown}, ds.Categories())
}

func TestHistoricalMinPrices(t *testing.T) {
	ds := &EnrichedDataset{Sales: []SaleLine{
		{SKU: "A1", UnitPrice: 12},
		{SKU: "A1", UnitPrice: 9.5},
		{SKU: "A1", UnitPrice: 0}, // zero-priced rows are ignored
		{SKU: "B2", UnitPrice: 40},
	}}
	got := ds.HistoricalMinPrices()
	assert.InDelta(t, 9.5, got["A1"], 1e-9)
	assert.InDelta(t, 40.0, got["B2"], 1e-9)
	_, hasZeroOnly := got["C3"]
	assert.False(t, hasZeroOnly)
}
