package analysis

import (
	"sort"

	"salespulse/internal/dataset"
	"salespulse/internal/errors"
)

// ReputationOptions tunes the low-cost / high-reputation selector.
type ReputationOptions struct {
	CostPercentile float64 // cost threshold percentile, default 0.25
	MinQuantity    float64 // minimum total units sold, default 50
	MaxReturnRate  float64 // maximum total return rate, default 0.05

	HistoricalMinPrices map[string]float64
}

func (o *ReputationOptions) applyDefaults() {
	if o.CostPercentile <= 0 || o.CostPercentile >= 1 {
		o.CostPercentile = 0.25
	}
	if o.MinQuantity <= 0 {
		o.MinQuantity = 50
	}
	if o.MaxReturnRate <= 0 {
		o.MaxReturnRate = 0.05
	}
}

// ReputationRow is one selected entity with its value-per-cost score.
type ReputationRow struct {
	EntityTotals

	Score              float64
	HistoricalMinPrice float64
}

// ReputationResult carries the ranked candidates and the cost threshold
// that was applied.
type ReputationResult struct {
	Candidates    []ReputationRow
	CostThreshold float64
}

// ReputationCandidates selects cheap, high-volume, low-return entities.
// The cost threshold is the configured percentile of average unit cost
// over all entities with positive volume. The score divides reliable
// volume by unit cost, with a denominator of 1 for free or negative-cost
// data artifacts so such rows are neither inflated nor inverted.
func ReputationCandidates(sales []dataset.SaleLine, key EntityKey, opts ReputationOptions) (*ReputationResult, error) {
	opts.applyDefaults()

	totals := aggregateTotals(sales, key)
	if len(totals) == 0 {
		return nil, errors.NewEmptyResultError("reputation", "no sales in the selected range")
	}

	var costs []float64
	for _, t := range totals {
		if t.UnitsTotal > 0 {
			costs = append(costs, t.UnitCostAvg)
		}
	}
	if len(costs) == 0 {
		return nil, errors.NewEmptyResultError("reputation", "no entity with positive volume")
	}
	threshold := quantile(costs, opts.CostPercentile)

	var rows []ReputationRow
	for _, t := range totals {
		if t.UnitsTotal <= 0 || t.UnitCostAvg > threshold {
			continue
		}
		if t.UnitsTotal < opts.MinQuantity || t.ReturnRate > opts.MaxReturnRate {
			continue
		}
		denom := t.UnitCostAvg
		if denom <= 0 {
			denom = 1
		}
		rows = append(rows, ReputationRow{
			EntityTotals:       t,
			Score:              ((1 - t.ReturnRate) * t.UnitsTotal) / denom,
			HistoricalMinPrice: opts.HistoricalMinPrices[t.EntityID],
		})
	}
	if len(rows) == 0 {
		return nil, errors.NewEmptyResultError("reputation",
			"no entity passes the cost, volume and return-rate filters")
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	return &ReputationResult{Candidates: rows, CostThreshold: threshold}, nil
}
