package dataset

import (
	"sort"
)

// MonthlyReturns is one (period, sku) row of a reconciled return view.
// ItemsSold is the originally-sold quantity of the invoices the returns
// reference, counted once per distinct invoice, so a return processed
// across several months never double-counts its denominator.
type MonthlyReturns struct {
	Period          Period  `json:"period"`
	SKU             string  `json:"sku"`
	ItemsSold       float64 `json:"items_sold"`
	ItemsReturned   float64 `json:"items_returned"`
	ReturnOrders    int     `json:"distinct_return_orders"`
	ReturnRevenue   float64 `json:"return_revenue"`
	ReturnRate      float64 `json:"return_rate"`
	AvgDaysToReturn float64 `json:"avg_days_to_return"`
}

// ReconciledReturns carries the two independent monthly views derived
// from the same return records: one attributing each return to the month
// of the original sale, one to the month the return was processed.
type ReconciledReturns struct {
	SaleMonth   []MonthlyReturns
	ReturnMonth []MonthlyReturns
}

// Reconcile joins every return line to its originating sale by
// (invoice, sku) and builds both monthly views. The sold-quantity lookup
// is shared; aggregation state is not, so a return spanning a
// fiscal-year boundary appears correctly attributed in each view.
func Reconcile(ds *EnrichedDataset) ReconciledReturns {
	sold := soldQuantities(ds.Sales)
	return ReconciledReturns{
		SaleMonth:   aggregateReturns(ds.Returns, sold, func(r ReturnLine) Period { return r.SalePeriod }),
		ReturnMonth: aggregateReturns(ds.Returns, sold, func(r ReturnLine) Period { return r.ReturnPeriod }),
	}
}

// soldQuantities sums units sold per (invoice, sku) pair across the sale
// table. This is the denominator-correct lookup: the return row's own
// quantity field counts returned units, not sold ones.
func soldQuantities(sales []SaleLine) map[[2]string]float64 {
	out := make(map[[2]string]float64)
	for _, s := range sales {
		out[[2]string{s.Invoice, s.SKU}] += s.UnitsSold
	}
	return out
}

func aggregateReturns(returns []ReturnLine, sold map[[2]string]float64, periodOf func(ReturnLine) Period) []MonthlyReturns {
	type bucket struct {
		row          MonthlyReturns
		seenInvoices map[string]struct{}
		orderIDs     map[string]struct{}
		daysSum      float64
		daysCount    int
	}
	type groupKey struct {
		period Period
		sku    string
	}

	groups := make(map[groupKey]*bucket)
	for _, r := range returns {
		period := periodOf(r)
		if period.IsZero() {
			continue
		}
		key := groupKey{period, r.SKU}
		b, ok := groups[key]
		if !ok {
			b = &bucket{
				row:          MonthlyReturns{Period: period, SKU: r.SKU},
				seenInvoices: make(map[string]struct{}),
				orderIDs:     make(map[string]struct{}),
			}
			groups[key] = b
		}
		if _, seen := b.seenInvoices[r.Invoice]; !seen {
			b.seenInvoices[r.Invoice] = struct{}{}
			b.row.ItemsSold += sold[[2]string{r.Invoice, r.SKU}]
		}
		b.row.ItemsReturned += r.UnitsReturned
		b.row.ReturnRevenue += r.ReturnRevenue
		orderID := r.ReturnInvoice
		if orderID == Unknown {
			orderID = r.Invoice
		}
		b.orderIDs[orderID] = struct{}{}
		if !r.SaleDate.IsZero() && !r.ReturnDate.IsZero() {
			b.daysSum += r.ReturnDate.Sub(r.SaleDate).Hours() / 24
			b.daysCount++
		}
	}

	out := make([]MonthlyReturns, 0, len(groups))
	for _, b := range groups {
		b.row.ReturnOrders = len(b.orderIDs)
		if b.row.ItemsSold > 0 {
			b.row.ReturnRate = b.row.ItemsReturned / b.row.ItemsSold
		}
		if b.daysCount > 0 {
			b.row.AvgDaysToReturn = b.daysSum / float64(b.daysCount)
		}
		out = append(out, b.row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period.Before(out[j].Period)
		}
		return out[i].SKU < out[j].SKU
	})
	return out
}
