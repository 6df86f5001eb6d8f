package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salespulse/internal/dataset"
)

func period(y int, m time.Month) dataset.Period {
	return dataset.Period{Year: y, Month: m}
}

func TestAggregateMonthly(t *testing.T) {
	jan := period(2024, time.January)
	feb := period(2024, time.February)
	sales := []dataset.SaleLine{
		{Period: jan, SKU: "A1", SKUDesc: "Widget", Invoice: "I1",
			UnitsSold: 5, NetRevenue: 50, CostTotal: 20, UnitPrice: 10, UnitsReturned: 1, GrossMarginPct: 0.30},
		{Period: jan, SKU: "A1", SKUDesc: "Widget", Invoice: "I1",
			UnitsSold: 5, NetRevenue: 45, CostTotal: 20, UnitPrice: 9, GrossMarginPct: 0.20},
		{Period: jan, SKU: "B2", Invoice: "I2", UnitsSold: 1, NetRevenue: 8, UnitPrice: 8},
		{Period: feb, SKU: "A1", Invoice: "I3", UnitsSold: 2, NetRevenue: 22, UnitPrice: 11},
		{SKU: "C3", Invoice: "I4", UnitsSold: 9}, // no period, excluded
	}

	monthly := AggregateMonthly(sales, KeySKU)
	require.Len(t, monthly, 3)

	a1 := monthly[0]
	assert.Equal(t, jan, a1.Period)
	assert.Equal(t, "A1", a1.EntityID)
	assert.Equal(t, "Widget", a1.EntityDesc)
	assert.InDelta(t, 10.0, a1.UnitsSold, 1e-9)
	assert.Equal(t, 1, a1.Orders, "same invoice counts once")
	assert.InDelta(t, 95.0, a1.Revenue, 1e-9)
	assert.InDelta(t, 9.0, a1.MinPrice, 1e-9)
	assert.InDelta(t, 0.25, a1.MarginAvg, 1e-9, "margin is a row mean")
	assert.InDelta(t, 0.10, a1.ReturnRate, 1e-9)
	assert.InDelta(t, 9.5, a1.AvgSoldPrice(), 1e-9)

	assert.Equal(t, "B2", monthly[1].EntityID)
	assert.Equal(t, feb, monthly[2].Period, "output is chronological then by entity")
}

func TestAggregateMonthlyByListing(t *testing.T) {
	jan := period(2024, time.January)
	sales := []dataset.SaleLine{
		{Period: jan, ListingID: "L1", ListingDesc: "Bundle", SKU: "A1", Invoice: "I1", UnitsSold: 1},
		{Period: jan, ListingID: "L1", ListingDesc: "Bundle", SKU: "B2", Invoice: "I2", UnitsSold: 2},
	}
	monthly := AggregateMonthly(sales, KeyListing)
	require.Len(t, monthly, 1)
	assert.Equal(t, "L1", monthly[0].EntityID)
	assert.Equal(t, "Bundle", monthly[0].EntityDesc)
	assert.InDelta(t, 3.0, monthly[0].UnitsSold, 1e-9)
}

func TestAggregateTotals(t *testing.T) {
	jan := period(2024, time.January)
	feb := period(2024, time.February)
	sales := []dataset.SaleLine{
		{Period: jan, SKU: "A1", Invoice: "I1", UnitsSold: 5, NetRevenue: 50, UnitCost: 4, UnitPrice: 10, UnitsReturned: 1},
		{Period: feb, SKU: "A1", Invoice: "I2", UnitsSold: 5, NetRevenue: 40, UnitCost: 2, UnitPrice: 8},
		// Same invoice reappearing in another month still counts once.
		{Period: feb, SKU: "A1", Invoice: "I1", UnitsSold: 2, NetRevenue: 10, UnitCost: 3, UnitPrice: 5},
	}

	totals := aggregateTotals(sales, KeySKU)
	require.Len(t, totals, 1)

	tot := totals[0]
	assert.Equal(t, 2, tot.MonthsActive)
	assert.Equal(t, 2, tot.OrdersTotal)
	assert.InDelta(t, 12.0, tot.UnitsTotal, 1e-9)
	assert.InDelta(t, 100.0, tot.RevenueTotal, 1e-9)
	assert.InDelta(t, 3.0, tot.UnitCostAvg, 1e-9, "unit cost is a row mean")
	assert.InDelta(t, 1.0/12, tot.ReturnRate, 1e-9)
	assert.InDelta(t, 50.0, tot.TicketAvg, 1e-9)
	assert.InDelta(t, 5.0, tot.MinPrice, 1e-9)
}

func TestAggregateTotalsZeroGuards(t *testing.T) {
	totals := aggregateTotals([]dataset.SaleLine{
		{SKU: "A1", Invoice: "I1", UnitsSold: 0, UnitsReturned: 2},
	}, KeySKU)
	require.Len(t, totals, 1)
	assert.Equal(t, 0.0, totals[0].ReturnRate)
	assert.Equal(t, 0, totals[0].MonthsActive)
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{"empty", nil, 0.5, 0},
		{"single value", []float64{7}, 0.25, 7},
		{"p25 of nine values is the third smallest", []float64{9, 1, 8, 2, 7, 3, 6, 4, 5}, 0.25, 3},
		{"median of nine values", []float64{9, 1, 8, 2, 7, 3, 6, 4, 5}, 0.5, 5},
		{"interpolated between order statistics", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"q zero is the minimum", []float64{3, 1, 2}, 0, 1},
		{"q one is the maximum", []float64{3, 1, 2}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, quantile(tt.values, tt.q), 1e-9)
		})
	}
}

func TestMedian(t *testing.T) {
	assert.InDelta(t, 2.0, median([]float64{3, 1, 2}), 1e-9)
	assert.InDelta(t, 1.5, median([]float64{1, 2}), 1e-9)
}
