package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salespulse/internal/dataset"
	"salespulse/internal/errors"
)

// monthsOf builds one sale line per month for an entity, with the given
// units and an optional monthly return fraction.
func monthsOf(sku string, start dataset.Period, units []float64, returnRate float64) []dataset.SaleLine {
	var out []dataset.SaleLine
	p := start
	for i, u := range units {
		out = append(out, dataset.SaleLine{
			Period:        p,
			SKU:           sku,
			Invoice:       sku + "-" + p.String() + "-" + string(rune('a'+i)),
			UnitsSold:     u,
			NetRevenue:    u * 10,
			UnitPrice:     10,
			UnitsReturned: u * returnRate,
		})
		p = nextPeriod(p)
	}
	return out
}

func nextPeriod(p dataset.Period) dataset.Period {
	t := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return dataset.PeriodOf(t)
}

// TestPotentialRecoveryDeclineScenario: five historical months at 100
// units and a three-month recent window at 60 units yield decline_abs 40
// and decline_pct 0.40, which passes the 0.30 floor.
func TestPotentialRecoveryDeclineScenario(t *testing.T) {
	units := []float64{100, 100, 100, 100, 100, 60, 60, 60}
	sales := monthsOf("A1", period(2024, time.January), units, 0)

	res, err := PotentialRecovery(sales, KeySKU, PotentialOptions{RecentWindow: 3})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	assert.Equal(t, "A1", c.EntityID)
	assert.Equal(t, 5, c.Historical.ValidMonths)
	assert.Equal(t, 3, c.Recent.ValidMonths)
	assert.InDelta(t, 100.0, c.Historical.AvgUnits, 1e-9)
	assert.InDelta(t, 60.0, c.Recent.AvgUnits, 1e-9)
	assert.InDelta(t, 40.0, c.DeclineAbs, 1e-9)
	assert.InDelta(t, 0.40, c.DeclinePct, 1e-9)
	assert.InDelta(t, 40.0*5*1.0, c.Score, 1e-9)
	assert.Len(t, res.MonthlyHistory, len(units), "selected entities carry their full monthly history")
}

// TestPotentialScoreMonotonicity: a larger absolute decline with the
// same history length and return rate never scores lower.
func TestPotentialScoreMonotonicity(t *testing.T) {
	steep := append(monthsOf("STEEP", period(2024, time.January), []float64{100, 100, 100, 100, 100}, 0),
		monthsOf("STEEP", period(2024, time.June), []float64{20, 20, 20}, 0)...)
	mild := append(monthsOf("MILD", period(2024, time.January), []float64{100, 100, 100, 100, 100}, 0),
		monthsOf("MILD", period(2024, time.June), []float64{60, 60, 60}, 0)...)

	res, err := PotentialRecovery(append(steep, mild...), KeySKU, PotentialOptions{RecentWindow: 3})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "STEEP", res.Candidates[0].EntityID)
	assert.Greater(t, res.Candidates[0].Score, res.Candidates[1].Score)
}

func TestPotentialRecoveryEmptyReasons(t *testing.T) {
	base := period(2024, time.January)

	tests := []struct {
		name   string
		sales  []dataset.SaleLine
		opts   PotentialOptions
		reason string
	}{
		{
			name:   "no dated sales",
			sales:  []dataset.SaleLine{{SKU: "A1", UnitsSold: 5}},
			opts:   PotentialOptions{},
			reason: "no dated sales in the selected range",
		},
		{
			name:   "too few historical months",
			sales:  monthsOf("A1", base, []float64{100, 100, 100, 60, 60, 60}, 0),
			opts:   PotentialOptions{RecentWindow: 3, MinHistoryMonths: 5},
			reason: "no entity has the minimum historical months",
		},
		{
			name:   "decline below the floor",
			sales:  monthsOf("A1", base, []float64{100, 100, 100, 100, 100, 90, 90, 90}, 0),
			opts:   PotentialOptions{RecentWindow: 3},
			reason: "no entity meets the minimum decline percentage",
		},
		{
			name:   "recent returns above the ceiling",
			sales:  append(monthsOf("A1", base, []float64{100, 100, 100, 100, 100}, 0), monthsOf("A1", period(2024, time.June), []float64{50, 50, 50}, 0.5)...),
			opts:   PotentialOptions{RecentWindow: 3},
			reason: "no entity under the recent return-rate ceiling",
		},
		{
			name:   "pinned periods without data",
			sales:  monthsOf("A1", base, []float64{100, 100, 100, 100, 60, 60}, 0),
			opts:   PotentialOptions{RecentPeriods: []dataset.Period{period(2030, time.January)}},
			reason: "none of the pinned recent periods has data",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PotentialRecovery(tt.sales, KeySKU, tt.opts)
			require.Error(t, err)
			var empty *errors.EmptyResultError
			require.ErrorAs(t, err, &empty)
			assert.Equal(t, "potential", empty.Analysis)
			assert.Equal(t, tt.reason, empty.Reason)
		})
	}
}

func TestPotentialRecoveryPinnedPeriods(t *testing.T) {
	// Pin March and April as the recent window; Jan and Feb become the
	// historical base regardless of the trailing-count default.
	units := []float64{100, 100, 50, 50}
	sales := monthsOf("A1", period(2024, time.January), units, 0)

	res, err := PotentialRecovery(sales, KeySKU, PotentialOptions{
		RecentPeriods: []dataset.Period{period(2024, time.March), period(2024, time.April)},
	})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	assert.Equal(t, 2, c.Historical.ValidMonths)
	assert.Equal(t, 2, c.Recent.ValidMonths)
	assert.InDelta(t, 50.0, c.DeclineAbs, 1e-9)
	assert.InDelta(t, 0.50, c.DeclinePct, 1e-9)
}

func TestPotentialRecoveryShortHistoryShrinksWindow(t *testing.T) {
	// Only three months but a three-month window: the window shrinks so a
	// historical base always remains.
	units := []float64{100, 100, 40}
	sales := monthsOf("A1", period(2024, time.January), units, 0)

	res, err := PotentialRecovery(sales, KeySKU, PotentialOptions{RecentWindow: 3, MinHistoryMonths: 1})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	assert.Equal(t, 2, c.Historical.ValidMonths)
	assert.Equal(t, 1, c.Recent.ValidMonths)
	assert.InDelta(t, 60.0, c.DeclineAbs, 1e-9)
}

func TestPotentialRecoveryMedianFilterKeepsHighVolume(t *testing.T) {
	// Three entities share the same relative decline; only those at or
	// above the median historical volume survive.
	big := append(monthsOf("BIG", period(2024, time.January), []float64{200, 200, 200, 200}, 0),
		monthsOf("BIG", period(2024, time.May), []float64{80, 80}, 0)...)
	mid := append(monthsOf("MID", period(2024, time.January), []float64{100, 100, 100, 100}, 0),
		monthsOf("MID", period(2024, time.May), []float64{40, 40}, 0)...)
	small := append(monthsOf("SMALL", period(2024, time.January), []float64{10, 10, 10, 10}, 0),
		monthsOf("SMALL", period(2024, time.May), []float64{4, 4}, 0)...)

	res, err := PotentialRecovery(append(append(big, mid...), small...), KeySKU,
		PotentialOptions{RecentWindow: 2})
	require.NoError(t, err)

	ids := make([]string, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		ids = append(ids, c.EntityID)
	}
	assert.Equal(t, []string{"BIG", "MID"}, ids, "median is inclusive, below-median entities drop")
}

func TestPotentialRecoveryRankSize(t *testing.T) {
	var sales []dataset.SaleLine
	for _, sku := range []string{"A", "B", "C"} {
		sales = append(sales, monthsOf(sku, period(2024, time.January), []float64{100, 100, 100, 100, 40, 40}, 0)...)
	}
	res, err := PotentialRecovery(sales, KeySKU, PotentialOptions{RecentWindow: 2, RankSize: 2})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 2)
}

func TestPotentialRecoveryAttachesPriceContext(t *testing.T) {
	sales := monthsOf("A1", period(2024, time.January), []float64{100, 100, 100, 100, 40, 40}, 0)
	res, err := PotentialRecovery(sales, KeySKU, PotentialOptions{
		RecentWindow:        2,
		HistoricalMinPrices: map[string]float64{"A1": 7.5},
	})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.InDelta(t, 7.5, res.Candidates[0].HistoricalMinPrice, 1e-9)
	assert.InDelta(t, 10.0, res.Candidates[0].IntervalMinPrice, 1e-9)
}
