package analysis

import (
	"sort"

	"salespulse/internal/dataset"
	"salespulse/internal/errors"
)

// RecurrenceOptions tunes the recurrence ranking engine.
type RecurrenceOptions struct {
	RankSize        int
	MinMonthsActive int

	HistoricalMinPrices map[string]float64
}

func (o *RecurrenceOptions) applyDefaults() {
	if o.RankSize <= 0 {
		o.RankSize = 20
	}
	if o.MinMonthsActive <= 0 {
		o.MinMonthsActive = 3
	}
}

// RankingRow is one entity of the recurrence ranking: per-entity totals
// across the full filtered period with pricing context attached.
type RankingRow struct {
	EntityTotals

	AvgIntervalPrice   float64 // RevenueTotal / UnitsTotal, zero-guarded
	HistoricalMinPrice float64
}

// RecurrenceResult carries the ranking plus the monthly detail of the
// ranked entities.
type RecurrenceResult struct {
	Ranking       []RankingRow
	MonthlyDetail []MonthlyAggregate
}

// RecurrenceRanking consolidates per-entity totals, keeps entities with
// enough active months and ranks them by (months active, quantity,
// revenue) descending — ties broken in that fixed order, never by
// insertion order.
func RecurrenceRanking(sales []dataset.SaleLine, key EntityKey, opts RecurrenceOptions) (*RecurrenceResult, error) {
	opts.applyDefaults()

	totals := aggregateTotals(sales, key)
	if len(totals) == 0 {
		return nil, errors.NewEmptyResultError("recurrence", "no sales in the selected range")
	}

	var kept []EntityTotals
	for _, t := range totals {
		if t.MonthsActive >= opts.MinMonthsActive {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil, errors.NewEmptyResultError("recurrence", "no entity has the minimum active months")
	}

	sort.Slice(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.MonthsActive != b.MonthsActive {
			return a.MonthsActive > b.MonthsActive
		}
		if a.UnitsTotal != b.UnitsTotal {
			return a.UnitsTotal > b.UnitsTotal
		}
		return a.RevenueTotal > b.RevenueTotal
	})
	if len(kept) > opts.RankSize {
		kept = kept[:opts.RankSize]
	}

	ranking := make([]RankingRow, 0, len(kept))
	selected := make(map[string]struct{}, len(kept))
	for _, t := range kept {
		row := RankingRow{EntityTotals: t}
		if t.UnitsTotal > 0 {
			row.AvgIntervalPrice = t.RevenueTotal / t.UnitsTotal
		}
		row.HistoricalMinPrice = opts.HistoricalMinPrices[t.EntityID]
		ranking = append(ranking, row)
		selected[t.EntityID] = struct{}{}
	}

	var detail []MonthlyAggregate
	for _, m := range AggregateMonthly(sales, key) {
		if _, ok := selected[m.EntityID]; ok {
			detail = append(detail, m)
		}
	}

	return &RecurrenceResult{Ranking: ranking, MonthlyDetail: detail}, nil
}
