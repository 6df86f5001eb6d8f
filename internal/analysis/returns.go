package analysis

import (
	"sort"

	"salespulse/internal/dataset"
	"salespulse/internal/errors"
)

// ReturnsOptions tunes the return-rate diagnostics.
type ReturnsOptions struct {
	MinReturnRate float64 // monthly peak threshold, default 0.20
	MinMonthlyQty float64 // minimum monthly units for a peak row
}

func (o *ReturnsOptions) applyDefaults() {
	if o.MinReturnRate <= 0 {
		o.MinReturnRate = 0.20
	}
}

// ReturnsSummaryRow consolidates one SKU's returns over the whole range.
type ReturnsSummaryRow struct {
	SKU           string
	SKUDesc       string
	MonthsActive  int
	UnitsSold     float64
	UnitsReturned float64
	Revenue       float64
	ReturnRevenue float64
	Orders        int
	ReturnRate    float64
}

// ReturnsResult carries the diagnostics tables: per-SKU totals, the
// monthly peaks above the threshold, and the reconciled dual monthly
// views.
type ReturnsResult struct {
	Summary      []ReturnsSummaryRow
	MonthlyPeaks []MonthlyAggregate
	SaleMonth    []dataset.MonthlyReturns
	ReturnMonth  []dataset.MonthlyReturns
}

// ReturnDiagnostics evaluates SKUs whose return rate exceeds the
// configured threshold and attaches the reconciled sale-month and
// return-month views.
func ReturnDiagnostics(ds *dataset.EnrichedDataset, opts ReturnsOptions) (*ReturnsResult, error) {
	opts.applyDefaults()

	monthly := AggregateMonthly(ds.Sales, KeySKU)
	if len(monthly) == 0 {
		return nil, errors.NewEmptyResultError("returns", "no dated sales in the selected range")
	}

	var peaks []MonthlyAggregate
	for _, m := range monthly {
		if m.ReturnRate >= opts.MinReturnRate && m.UnitsSold >= opts.MinMonthlyQty {
			peaks = append(peaks, m)
		}
	}
	sort.Slice(peaks, func(i, j int) bool {
		a, b := peaks[i], peaks[j]
		if a.ReturnRate != b.ReturnRate {
			return a.ReturnRate > b.ReturnRate
		}
		return a.UnitsSold > b.UnitsSold
	})

	summary := summarizeReturns(ds.Sales)
	reconciled := dataset.Reconcile(ds)

	return &ReturnsResult{
		Summary:      summary,
		MonthlyPeaks: peaks,
		SaleMonth:    reconciled.SaleMonth,
		ReturnMonth:  reconciled.ReturnMonth,
	}, nil
}

func summarizeReturns(sales []dataset.SaleLine) []ReturnsSummaryRow {
	type bucket struct {
		row      ReturnsSummaryRow
		periods  map[dataset.Period]struct{}
		invoices map[string]struct{}
	}
	groups := make(map[string]*bucket)
	for _, s := range sales {
		b, ok := groups[s.SKU]
		if !ok {
			b = &bucket{
				row:      ReturnsSummaryRow{SKU: s.SKU, SKUDesc: s.SKUDesc},
				periods:  make(map[dataset.Period]struct{}),
				invoices: make(map[string]struct{}),
			}
			groups[s.SKU] = b
		}
		if !s.Period.IsZero() {
			b.periods[s.Period] = struct{}{}
		}
		b.invoices[s.Invoice] = struct{}{}
		b.row.UnitsSold += s.UnitsSold
		b.row.UnitsReturned += s.UnitsReturned
		b.row.Revenue += s.NetRevenue
		b.row.ReturnRevenue += s.ReturnRevenue
	}

	out := make([]ReturnsSummaryRow, 0, len(groups))
	for _, b := range groups {
		b.row.MonthsActive = len(b.periods)
		b.row.Orders = len(b.invoices)
		if b.row.UnitsSold > 0 {
			b.row.ReturnRate = b.row.UnitsReturned / b.row.UnitsSold
		}
		out = append(out, b.row)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ReturnRate != b.ReturnRate {
			return a.ReturnRate > b.ReturnRate
		}
		return a.UnitsSold > b.UnitsSold
	})
	return out
}
