package dataset

import (
	"sort"
	"time"
)

// Unknown is the sentinel stored in place of empty or absent text fields
// so group-by and filter operations never silently drop null-valued
// entities.
const Unknown = "unknown"

// Period is a calendar-month key derived from a date. The zero value
// means the source row carried no parsable date.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// PeriodOf returns the calendar-month key for t. A zero time yields the
// zero Period.
func PeriodOf(t time.Time) Period {
	if t.IsZero() {
		return Period{}
	}
	return Period{Year: t.Year(), Month: t.Month()}
}

// IsZero reports whether the period carries no month.
func (p Period) IsZero() bool { return p.Year == 0 }

// Before reports whether p is chronologically before q.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}

// String formats the period as YYYY-MM; the zero period formats as "".
func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// SaleLine is one normalized, enriched sales record. Lines are created
// once per enrichment run (or loaded from cache) and immutable
// thereafter.
type SaleLine struct {
	Date           time.Time `json:"date"` // zero when the source date was unparsable
	Invoice        string    `json:"invoice"`
	Category       string    `json:"category"`
	ListingID      string    `json:"listing_id"`
	ListingDesc    string    `json:"listing_desc"`
	SKU            string    `json:"sku"`
	SKUDesc        string    `json:"sku_desc"`
	ManufacturerID string    `json:"manufacturer_id"`
	ListingType    string    `json:"listing_type"`
	RecordKind     string    `json:"record_kind"`

	UnitsSold      float64 `json:"units_sold"`
	UnitPrice      float64 `json:"unit_price"`
	UnitCost       float64 `json:"unit_cost"`
	GrossMarginPct float64 `json:"gross_margin_pct"` // ratio in [0,1] after rescaling
	NetRevenue     float64 `json:"net_revenue"`
	UnitsReturned  float64 `json:"units_returned"`
	ReturnRevenue  float64 `json:"return_revenue"`

	// Derived by the enricher.
	Period         Period  `json:"period"`
	GrossRevenue   float64 `json:"gross_revenue"`
	CostTotal      float64 `json:"cost_total"`
	EstGrossProfit float64 `json:"est_gross_profit"`
	ReturnRate     float64 `json:"return_rate"`
}

// ReturnLine is one normalized return record. Many ReturnLines may
// reference the same originating sale via (Invoice, SKU).
type ReturnLine struct {
	SaleDate      time.Time `json:"sale_date"`
	ReturnDate    time.Time `json:"return_date"`
	Invoice       string    `json:"invoice"`
	ReturnInvoice string    `json:"return_invoice"`
	Category      string    `json:"category"`
	ListingID     string    `json:"listing_id"`
	SKU           string    `json:"sku"`
	RecordKind    string    `json:"record_kind"`

	UnitsReturned float64 `json:"units_returned"`
	ReturnRevenue float64 `json:"return_revenue"`
	UnitCost      float64 `json:"unit_cost"`
	UnitPrice     float64 `json:"unit_price"`

	SalePeriod   Period `json:"sale_period"`
	ReturnPeriod Period `json:"return_period"`
}

// EnrichedDataset is the canonical dataset of one run: the enriched sale
// lines plus the reconciled return records as a first-class side table.
// It is append-only and immutable once produced; analyses only read it.
type EnrichedDataset struct {
	Sales   []SaleLine   `json:"sales"`
	Returns []ReturnLine `json:"returns"`

	// CoercionWarnings counts row-level values that failed to parse and
	// were defaulted. Surfaced for reporting, never fatal.
	CoercionWarnings int `json:"coercion_warnings"`
}

// FilterRange returns a copy of the dataset restricted to sale dates in
// [start, end] (inclusive, date precision). Zero bounds are open.
// Returns are filtered on their sale date so both monthly views stay
// consistent with the visible sales.
func (d *EnrichedDataset) FilterRange(start, end time.Time) *EnrichedDataset {
	inRange := func(t time.Time) bool {
		if t.IsZero() {
			return false
		}
		if !start.IsZero() && t.Before(start) {
			return false
		}
		if !end.IsZero() && t.After(end) {
			return false
		}
		return true
	}
	if start.IsZero() && end.IsZero() {
		return d
	}
	out := &EnrichedDataset{CoercionWarnings: d.CoercionWarnings}
	for _, s := range d.Sales {
		if inRange(s.Date) {
			out.Sales = append(out.Sales, s)
		}
	}
	for _, r := range d.Returns {
		if inRange(r.SaleDate) {
			out.Returns = append(out.Returns, r)
		}
	}
	return out
}

// FilterCategory returns a copy restricted to one category. An empty
// category returns the dataset unchanged.
func (d *EnrichedDataset) FilterCategory(category string) *EnrichedDataset {
	if category == "" {
		return d
	}
	out := &EnrichedDataset{CoercionWarnings: d.CoercionWarnings}
	for _, s := range d.Sales {
		if s.Category == category {
			out.Sales = append(out.Sales, s)
		}
	}
	for _, r := range d.Returns {
		if r.Category == category {
			out.Returns = append(out.Returns, r)
		}
	}
	return out
}

// Categories lists the distinct categories present, sorted.
func (d *EnrichedDataset) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range d.Sales {
		if _, ok := seen[s.Category]; !ok {
			seen[s.Category] = struct{}{}
			out = append(out, s.Category)
		}
	}
	sort.Strings(out)
	return out
}

// HistoricalMinPrices returns the lowest observed unit price per SKU over
// the full dataset. Zero-priced rows are ignored.
func (d *EnrichedDataset) HistoricalMinPrices() map[string]float64 {
	out := make(map[string]float64)
	for _, s := range d.Sales {
		if s.UnitPrice <= 0 {
			continue
		}
		if min, ok := out[s.SKU]; !ok || s.UnitPrice < min {
			out[s.SKU] = s.UnitPrice
		}
	}
	return out
}
