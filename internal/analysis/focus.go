package analysis

import (
	"fmt"
	"sort"
	"time"

	"salespulse/internal/dataset"
	"salespulse/internal/errors"
)

// FocusOptions selects the row subset for the focus summaries. Category
// and EntityIDs are mutually exclusive selection modes; both empty means
// the whole filtered dataset.
type FocusOptions struct {
	Category  string
	EntityIDs []string
}

// FocusRow is one summary row. Date is set in the daily view, Period in
// the monthly view; neither in the per-entity total view.
type FocusRow struct {
	Date   time.Time
	Period dataset.Period

	EntityID       string
	EntityDesc     string
	ManufacturerID string
	ListingType    string

	Orders         int
	UnitsSold      float64
	Revenue        float64
	TicketAvg      float64
	AvgSoldPrice   float64
	AvgListPrice   float64
	MinPrice       float64
	MarginAvg      float64
	EstGrossProfit float64
	CostTotal      float64
	UnitsReturned  float64
	ReturnRate     float64
	ReturnRevenue  float64
}

// FocusResult carries the three views computed from the same filtered
// row set.
type FocusResult struct {
	Summary []FocusRow // one row per entity
	Daily   []FocusRow
	Monthly []FocusRow
}

// FocusSummaries produces total, daily and monthly performance summaries
// for an entity subset or category. Rows without a parsable sale date
// are excluded, matching every other date-dependent aggregation.
func FocusSummaries(sales []dataset.SaleLine, key EntityKey, opts FocusOptions) (*FocusResult, error) {
	if opts.Category != "" && len(opts.EntityIDs) > 0 {
		return nil, fmt.Errorf("category and entity list filters are mutually exclusive")
	}

	wanted := make(map[string]struct{}, len(opts.EntityIDs))
	for _, id := range opts.EntityIDs {
		wanted[id] = struct{}{}
	}

	var focus []dataset.SaleLine
	for _, s := range sales {
		if s.Date.IsZero() {
			continue
		}
		if opts.Category != "" && s.Category != opts.Category {
			continue
		}
		if len(wanted) > 0 {
			id, _ := key.idOf(s)
			if _, ok := wanted[id]; !ok {
				continue
			}
		}
		focus = append(focus, s)
	}
	if len(focus) == 0 {
		reason := "no dated sales in the selected range"
		if opts.Category != "" {
			reason = "no sales in category " + opts.Category
		} else if len(wanted) > 0 {
			reason = "no sales for the requested entity ids"
		}
		return nil, errors.NewEmptyResultError("focus", reason)
	}

	summary := aggregateFocus(focus, key, func(s dataset.SaleLine) (time.Time, dataset.Period) {
		return time.Time{}, dataset.Period{}
	})
	sort.Slice(summary, func(i, j int) bool {
		a, b := summary[i], summary[j]
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.UnitsSold > b.UnitsSold
	})

	daily := aggregateFocus(focus, key, func(s dataset.SaleLine) (time.Time, dataset.Period) {
		return s.Date, dataset.Period{}
	})
	sort.Slice(daily, func(i, j int) bool {
		a, b := daily[i], daily[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.EntityID < b.EntityID
	})

	monthly := aggregateFocus(focus, key, func(s dataset.SaleLine) (time.Time, dataset.Period) {
		return time.Time{}, s.Period
	})
	sort.Slice(monthly, func(i, j int) bool {
		a, b := monthly[i], monthly[j]
		if a.Period != b.Period {
			return a.Period.Before(b.Period)
		}
		return a.EntityID < b.EntityID
	})

	return &FocusResult{Summary: summary, Daily: daily, Monthly: monthly}, nil
}

// aggregateFocus groups by (granularity key, entity, manufacturer,
// listing type) and applies the shared metric formulas.
func aggregateFocus(sales []dataset.SaleLine, key EntityKey, granularity func(dataset.SaleLine) (time.Time, dataset.Period)) []FocusRow {
	type groupKey struct {
		date         time.Time
		period       dataset.Period
		entity       string
		manufacturer string
		listingType  string
	}
	type bucket struct {
		row          FocusRow
		invoices     map[string]struct{}
		marginSum    float64
		listPriceSum float64
		rows         int
	}

	groups := make(map[groupKey]*bucket)
	for _, s := range sales {
		date, period := granularity(s)
		id, desc := key.idOf(s)
		gk := groupKey{date, period, id, s.ManufacturerID, s.ListingType}
		b, ok := groups[gk]
		if !ok {
			b = &bucket{
				row: FocusRow{
					Date:           date,
					Period:         period,
					EntityID:       id,
					EntityDesc:     desc,
					ManufacturerID: s.ManufacturerID,
					ListingType:    s.ListingType,
				},
				invoices: make(map[string]struct{}),
			}
			b.row.MinPrice = s.UnitPrice
			groups[gk] = b
		}
		b.invoices[s.Invoice] = struct{}{}
		b.row.UnitsSold += s.UnitsSold
		b.row.Revenue += s.NetRevenue
		b.row.CostTotal += s.CostTotal
		b.row.UnitsReturned += s.UnitsReturned
		b.row.ReturnRevenue += s.ReturnRevenue
		b.row.EstGrossProfit += s.EstGrossProfit
		if s.UnitPrice < b.row.MinPrice {
			b.row.MinPrice = s.UnitPrice
		}
		b.marginSum += s.GrossMarginPct
		b.listPriceSum += s.UnitPrice
		b.rows++
	}

	out := make([]FocusRow, 0, len(groups))
	for _, b := range groups {
		b.row.Orders = len(b.invoices)
		if b.rows > 0 {
			b.row.MarginAvg = b.marginSum / float64(b.rows)
			b.row.AvgListPrice = b.listPriceSum / float64(b.rows)
		}
		if b.row.Orders > 0 {
			b.row.TicketAvg = b.row.Revenue / float64(b.row.Orders)
		}
		if b.row.UnitsSold > 0 {
			b.row.AvgSoldPrice = b.row.Revenue / b.row.UnitsSold
			b.row.ReturnRate = b.row.UnitsReturned / b.row.UnitsSold
		}
		out = append(out, b.row)
	}
	return out
}
