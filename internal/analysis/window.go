// Package analysis implements the windowed aggregation and scoring
// engines that reduce the canonical dataset to decision-ready tables:
// return-rate diagnostics, potential-recovery scoring, recurrence
// ranking, reputation candidate selection and focus summaries.
package analysis

import (
	"math"
	"sort"

	"salespulse/internal/dataset"
)

// EntityKey selects the grouping axis for ranking and scoring.
type EntityKey int

const (
	// KeySKU groups by SKU identifier.
	KeySKU EntityKey = iota
	// KeyListing groups by listing identifier.
	KeyListing
)

func (k EntityKey) idOf(s dataset.SaleLine) (string, string) {
	if k == KeyListing {
		return s.ListingID, s.ListingDesc
	}
	return s.SKU, s.SKUDesc
}

// MonthlyAggregate holds per (period, entity) statistics. Rows without a
// resolvable period are excluded.
type MonthlyAggregate struct {
	Period     dataset.Period
	EntityID   string
	EntityDesc string

	UnitsSold     float64
	Orders        int // distinct invoice count
	Revenue       float64
	CostTotal     float64
	MarginAvg     float64
	UnitsReturned float64
	ReturnRevenue float64
	MinPrice      float64
	ReturnRate    float64 // UnitsReturned / UnitsSold, 0 when nothing sold
}

// AvgSoldPrice is revenue per unit over the month, zero-guarded.
func (m MonthlyAggregate) AvgSoldPrice() float64 {
	if m.UnitsSold <= 0 {
		return 0
	}
	return m.Revenue / m.UnitsSold
}

// AggregateMonthly groups the enriched sales by (period, entity) and
// computes the statistics every scoring engine consumes. Output is
// ordered chronologically, then by entity id.
func AggregateMonthly(sales []dataset.SaleLine, key EntityKey) []MonthlyAggregate {
	type bucket struct {
		agg       MonthlyAggregate
		invoices  map[string]struct{}
		marginSum float64
		rows      int
	}
	type groupKey struct {
		period dataset.Period
		entity string
	}

	groups := make(map[groupKey]*bucket)
	for _, s := range sales {
		if s.Period.IsZero() {
			continue
		}
		id, desc := key.idOf(s)
		gk := groupKey{s.Period, id}
		b, ok := groups[gk]
		if !ok {
			b = &bucket{
				agg: MonthlyAggregate{
					Period:     s.Period,
					EntityID:   id,
					EntityDesc: desc,
					MinPrice:   math.Inf(1),
				},
				invoices: make(map[string]struct{}),
			}
			groups[gk] = b
		}
		b.agg.UnitsSold += s.UnitsSold
		b.agg.Revenue += s.NetRevenue
		b.agg.CostTotal += s.CostTotal
		b.agg.UnitsReturned += s.UnitsReturned
		b.agg.ReturnRevenue += s.ReturnRevenue
		if s.UnitPrice < b.agg.MinPrice {
			b.agg.MinPrice = s.UnitPrice
		}
		b.invoices[s.Invoice] = struct{}{}
		b.marginSum += s.GrossMarginPct
		b.rows++
	}

	out := make([]MonthlyAggregate, 0, len(groups))
	for _, b := range groups {
		b.agg.Orders = len(b.invoices)
		if b.rows > 0 {
			b.agg.MarginAvg = b.marginSum / float64(b.rows)
		}
		if math.IsInf(b.agg.MinPrice, 1) {
			b.agg.MinPrice = 0
		}
		if b.agg.UnitsSold > 0 {
			b.agg.ReturnRate = b.agg.UnitsReturned / b.agg.UnitsSold
		}
		out = append(out, b.agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period.Before(out[j].Period)
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

// EntityTotals consolidates one entity across the full filtered period.
type EntityTotals struct {
	EntityID   string
	EntityDesc string

	MonthsActive       int // months with any recorded sale
	UnitsTotal         float64
	OrdersTotal        int
	RevenueTotal       float64
	CostTotal          float64
	UnitCostAvg        float64
	ReturnsTotal       float64
	ReturnRevenueTotal float64
	MarginAvg          float64
	ReturnRate         float64 // ReturnsTotal / UnitsTotal, zero-guarded
	TicketAvg          float64 // RevenueTotal / OrdersTotal, zero-guarded
	MinPrice           float64
}

// aggregateTotals consolidates per-entity totals from the raw sale
// lines. Distinct invoices are counted across the whole range, not
// summed per month, so an invoice spanning months counts once.
func aggregateTotals(sales []dataset.SaleLine, key EntityKey) []EntityTotals {
	type bucket struct {
		tot         EntityTotals
		periods     map[dataset.Period]struct{}
		invoices    map[string]struct{}
		marginSum   float64
		unitCostSum float64
		rows        int
	}

	groups := make(map[string]*bucket)
	for _, s := range sales {
		id, desc := key.idOf(s)
		b, ok := groups[id]
		if !ok {
			b = &bucket{
				tot:      EntityTotals{EntityID: id, EntityDesc: desc, MinPrice: math.Inf(1)},
				periods:  make(map[dataset.Period]struct{}),
				invoices: make(map[string]struct{}),
			}
			groups[id] = b
		}
		if !s.Period.IsZero() {
			b.periods[s.Period] = struct{}{}
		}
		b.invoices[s.Invoice] = struct{}{}
		b.tot.UnitsTotal += s.UnitsSold
		b.tot.RevenueTotal += s.NetRevenue
		b.tot.CostTotal += s.CostTotal
		b.tot.ReturnsTotal += s.UnitsReturned
		b.tot.ReturnRevenueTotal += s.ReturnRevenue
		if s.UnitPrice < b.tot.MinPrice {
			b.tot.MinPrice = s.UnitPrice
		}
		b.marginSum += s.GrossMarginPct
		b.unitCostSum += s.UnitCost
		b.rows++
	}

	out := make([]EntityTotals, 0, len(groups))
	for _, b := range groups {
		b.tot.MonthsActive = len(b.periods)
		b.tot.OrdersTotal = len(b.invoices)
		if b.rows > 0 {
			b.tot.MarginAvg = b.marginSum / float64(b.rows)
			b.tot.UnitCostAvg = b.unitCostSum / float64(b.rows)
		}
		if math.IsInf(b.tot.MinPrice, 1) {
			b.tot.MinPrice = 0
		}
		if b.tot.UnitsTotal > 0 {
			b.tot.ReturnRate = b.tot.ReturnsTotal / b.tot.UnitsTotal
		}
		if b.tot.OrdersTotal > 0 {
			b.tot.TicketAvg = b.tot.RevenueTotal / float64(b.tot.OrdersTotal)
		}
		out = append(out, b.tot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// quantile computes the q-th quantile of values with linear
// interpolation between order statistics, matching how the thresholds
// were originally calibrated. values need not be sorted.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// median is the 0.5 quantile.
func median(values []float64) float64 { return quantile(values, 0.5) }
