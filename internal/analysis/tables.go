package analysis

import (
	"salespulse/internal/dataset"
	"salespulse/internal/exporter"
)

// The Tables methods convert typed results into the exporter's generic
// tables. Column names are the stable output contract; ratio columns
// are delivered as already-scaled values in [0,1].

const dateLayout = "2006-01-02"

// Tables renders the returns diagnostics as four sheets.
func (r *ReturnsResult) Tables() []exporter.Table {
	summary := exporter.Table{
		Name: "summary",
		Columns: []string{"sku", "sku_desc", "months_active", "units_sold", "units_returned",
			"revenue", "return_revenue", "orders", "return_rate"},
	}
	for _, row := range r.Summary {
		summary.Rows = append(summary.Rows, []any{row.SKU, row.SKUDesc, row.MonthsActive,
			row.UnitsSold, row.UnitsReturned, row.Revenue, row.ReturnRevenue, row.Orders, row.ReturnRate})
	}

	peaks := exporter.Table{
		Name: "monthly_peaks",
		Columns: []string{"period", "sku", "sku_desc", "units_sold", "orders",
			"units_returned", "revenue", "return_revenue", "return_rate"},
	}
	for _, m := range r.MonthlyPeaks {
		peaks.Rows = append(peaks.Rows, []any{m.Period.String(), m.EntityID, m.EntityDesc,
			m.UnitsSold, m.Orders, m.UnitsReturned, m.Revenue, m.ReturnRevenue, m.ReturnRate})
	}

	return []exporter.Table{
		summary,
		peaks,
		reconciledTable("by_sale_month", r.SaleMonth),
		reconciledTable("by_return_month", r.ReturnMonth),
	}
}

func reconciledTable(name string, rows []dataset.MonthlyReturns) exporter.Table {
	t := exporter.Table{
		Name: name,
		Columns: []string{"period", "sku", "items_sold", "items_returned",
			"distinct_return_orders", "return_revenue", "return_rate", "avg_days_to_return"},
	}
	for _, row := range rows {
		t.Rows = append(t.Rows, []any{row.Period.String(), row.SKU, row.ItemsSold,
			row.ItemsReturned, row.ReturnOrders, row.ReturnRevenue, row.ReturnRate, row.AvgDaysToReturn})
	}
	return t
}

// Tables renders the potential candidates and their monthly history.
func (r *PotentialResult) Tables() []exporter.Table {
	candidates := exporter.Table{
		Name: "candidates",
		Columns: []string{"entity", "entity_desc",
			"avg_units_historical", "avg_units_recent",
			"avg_revenue_historical", "avg_revenue_recent",
			"avg_orders_historical", "avg_orders_recent",
			"avg_return_rate_historical", "avg_return_rate_recent",
			"avg_margin_historical", "avg_margin_recent",
			"historical_valid_months", "recent_valid_months",
			"decline_abs", "decline_pct", "potential_score",
			"interval_min_price", "historical_min_price"},
	}
	for _, c := range r.Candidates {
		candidates.Rows = append(candidates.Rows, []any{c.EntityID, c.EntityDesc,
			c.Historical.AvgUnits, c.Recent.AvgUnits,
			c.Historical.AvgRevenue, c.Recent.AvgRevenue,
			c.Historical.AvgOrders, c.Recent.AvgOrders,
			c.Historical.AvgReturnRate, c.Recent.AvgReturnRate,
			c.Historical.AvgMargin, c.Recent.AvgMargin,
			c.Historical.ValidMonths, c.Recent.ValidMonths,
			c.DeclineAbs, c.DeclinePct, c.Score,
			c.IntervalMinPrice, c.HistoricalMinPrice})
	}
	return []exporter.Table{candidates, monthlyTable("detailed_monthly", r.MonthlyHistory)}
}

// Tables renders the recurrence ranking and its monthly detail.
func (r *RecurrenceResult) Tables() []exporter.Table {
	ranking := exporter.Table{
		Name: "ranking",
		Columns: []string{"entity", "entity_desc", "months_active", "units_total",
			"orders_total", "revenue_total", "returns_total", "return_rate",
			"margin_avg", "ticket_avg", "avg_interval_price", "min_price", "historical_min_price"},
	}
	for _, row := range r.Ranking {
		ranking.Rows = append(ranking.Rows, []any{row.EntityID, row.EntityDesc, row.MonthsActive,
			row.UnitsTotal, row.OrdersTotal, row.RevenueTotal, row.ReturnsTotal, row.ReturnRate,
			row.MarginAvg, row.TicketAvg, row.AvgIntervalPrice, row.MinPrice, row.HistoricalMinPrice})
	}
	return []exporter.Table{ranking, monthlyTable("detailed_monthly", r.MonthlyDetail)}
}

// Tables renders the reputation candidates.
func (r *ReputationResult) Tables() []exporter.Table {
	candidates := exporter.Table{
		Name: "candidates",
		Columns: []string{"entity", "entity_desc", "units_total", "orders_total",
			"revenue_total", "unit_cost_avg", "cost_total", "returns_total",
			"return_rate", "margin_avg", "ticket_avg", "score",
			"min_price", "historical_min_price"},
	}
	for _, row := range r.Candidates {
		candidates.Rows = append(candidates.Rows, []any{row.EntityID, row.EntityDesc,
			row.UnitsTotal, row.OrdersTotal, row.RevenueTotal, row.UnitCostAvg, row.CostTotal,
			row.ReturnsTotal, row.ReturnRate, row.MarginAvg, row.TicketAvg, row.Score,
			row.MinPrice, row.HistoricalMinPrice})
	}
	return []exporter.Table{candidates}
}

// Tables renders the focus summary, daily and monthly views.
func (r *FocusResult) Tables() []exporter.Table {
	return []exporter.Table{
		focusTable("summary", r.Summary, focusNone),
		focusTable("daily", r.Daily, focusDaily),
		focusTable("monthly", r.Monthly, focusMonthly),
	}
}

type focusGranularity int

const (
	focusNone focusGranularity = iota
	focusDaily
	focusMonthly
)

func focusTable(name string, rows []FocusRow, gran focusGranularity) exporter.Table {
	columns := []string{"entity", "entity_desc", "manufacturer", "listing_type",
		"orders", "units_sold", "revenue", "ticket_avg", "avg_sold_price",
		"avg_list_price", "min_price", "margin_avg", "est_gross_profit",
		"cost_total", "units_returned", "return_rate", "return_revenue"}
	switch gran {
	case focusDaily:
		columns = append([]string{"date"}, columns...)
	case focusMonthly:
		columns = append([]string{"period"}, columns...)
	}

	t := exporter.Table{Name: name, Columns: columns}
	for _, row := range rows {
		cells := []any{row.EntityID, row.EntityDesc, row.ManufacturerID, row.ListingType,
			row.Orders, row.UnitsSold, row.Revenue, row.TicketAvg, row.AvgSoldPrice,
			row.AvgListPrice, row.MinPrice, row.MarginAvg, row.EstGrossProfit,
			row.CostTotal, row.UnitsReturned, row.ReturnRate, row.ReturnRevenue}
		switch gran {
		case focusDaily:
			cells = append([]any{row.Date.Format(dateLayout)}, cells...)
		case focusMonthly:
			cells = append([]any{row.Period.String()}, cells...)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

func monthlyTable(name string, rows []MonthlyAggregate) exporter.Table {
	t := exporter.Table{
		Name: name,
		Columns: []string{"period", "entity", "entity_desc", "units_sold", "orders",
			"revenue", "cost_total", "margin_avg", "units_returned", "return_rate",
			"avg_sold_price", "min_price"},
	}
	for _, m := range rows {
		t.Rows = append(t.Rows, []any{m.Period.String(), m.EntityID, m.EntityDesc,
			m.UnitsSold, m.Orders, m.Revenue, m.CostTotal, m.MarginAvg, m.UnitsReturned,
			m.ReturnRate, m.AvgSoldPrice(), m.MinPrice})
	}
	return t
}
