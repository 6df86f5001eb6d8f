package analysis

import (
	"math"
	"sort"

	"salespulse/internal/dataset"
	"salespulse/internal/errors"
)

// PotentialOptions tunes the potential-recovery scorer. Zero values
// fall back to the calibrated defaults.
type PotentialOptions struct {
	RankSize     int
	RecentWindow int
	// RecentPeriods pins the recent window to specific calendar months
	// instead of a trailing count.
	RecentPeriods []dataset.Period

	MinHistoryMonths    int
	MinDeclinePct       float64
	MaxRecentReturnRate float64

	// HistoricalMinPrices is the lowest unit price per entity over the
	// full (unfiltered) history, attached to the output for pricing
	// context.
	HistoricalMinPrices map[string]float64
}

func (o *PotentialOptions) applyDefaults() {
	if o.RankSize <= 0 {
		o.RankSize = 20
	}
	if o.RecentWindow <= 0 {
		o.RecentWindow = 3
	}
	if o.MinHistoryMonths <= 0 {
		o.MinHistoryMonths = 3
	}
	if o.MinDeclinePct == 0 {
		o.MinDeclinePct = 0.30
	}
	if o.MaxRecentReturnRate == 0 {
		o.MaxRecentReturnRate = 0.20
	}
}

// WindowStats summarizes one entity over one set of months. Averages are
// taken over the entity's monthly aggregates, so months weigh equally
// regardless of how many orders they contain.
type WindowStats struct {
	AvgUnits      float64
	AvgRevenue    float64
	AvgOrders     float64
	AvgReturnRate float64
	AvgMargin     float64
	MinPrice      float64
	ValidMonths   int // months inside the window with any sale
}

// PotentialCandidate is one qualifying entity with its historical and
// recent window summaries and the composite score.
type PotentialCandidate struct {
	EntityID   string
	EntityDesc string

	Historical WindowStats
	Recent     WindowStats

	DeclineAbs float64
	DeclinePct float64
	Score      float64

	IntervalMinPrice   float64 // lowest price inside the analyzed range
	HistoricalMinPrice float64 // lowest price over the full history
}

// PotentialResult carries the ranked candidates plus the monthly history
// of the selected entities.
type PotentialResult struct {
	Candidates     []PotentialCandidate
	MonthlyHistory []MonthlyAggregate
}

// PotentialRecovery splits each entity's history into a historical and a
// recent window, scores the decline and returns the top candidates.
// Entities failing an eligibility filter are dropped, not zero-scored.
func PotentialRecovery(sales []dataset.SaleLine, key EntityKey, opts PotentialOptions) (*PotentialResult, error) {
	opts.applyDefaults()

	monthly := AggregateMonthly(sales, key)
	if len(monthly) == 0 {
		return nil, errors.NewEmptyResultError("potential", "no dated sales in the selected range")
	}

	available := distinctPeriods(monthly)
	recentSet, err := splitWindows(available, opts)
	if err != nil {
		return nil, err
	}

	byEntity := make(map[string][]MonthlyAggregate)
	descOf := make(map[string]string)
	intervalMin := make(map[string]float64)
	for _, m := range monthly {
		byEntity[m.EntityID] = append(byEntity[m.EntityID], m)
		descOf[m.EntityID] = m.EntityDesc
		if cur, ok := intervalMin[m.EntityID]; !ok || m.MinPrice < cur {
			intervalMin[m.EntityID] = m.MinPrice
		}
	}

	var stats []PotentialCandidate
	for id, months := range byEntity {
		hist := windowStats(months, recentSet, false)
		recent := windowStats(months, recentSet, true)
		c := PotentialCandidate{
			EntityID:   id,
			EntityDesc: descOf[id],
			Historical: hist,
			Recent:     recent,
		}
		c.DeclineAbs = hist.AvgUnits - recent.AvgUnits
		if hist.AvgUnits > 0 {
			c.DeclinePct = c.DeclineAbs / hist.AvgUnits
		}
		c.Score = math.Max(c.DeclineAbs, 0) * float64(hist.ValidMonths) * (1 - hist.AvgReturnRate)
		stats = append(stats, c)
	}

	// Eligibility filters apply sequentially; the first stage that
	// eliminates everyone names the empty-result reason.
	withHistory := filterCandidates(stats, func(c PotentialCandidate) bool {
		return c.Historical.ValidMonths >= opts.MinHistoryMonths
	})
	if len(withHistory) == 0 {
		return nil, errors.NewEmptyResultError("potential", "no entity has the minimum historical months")
	}

	// Median over the population that passed the history filter, not
	// the whole universe.
	histAvgs := make([]float64, len(withHistory))
	for i, c := range withHistory {
		histAvgs[i] = c.Historical.AvgUnits
	}
	medianRef := median(histAvgs)

	aboveMedian := filterCandidates(withHistory, func(c PotentialCandidate) bool {
		return c.Historical.AvgUnits >= medianRef
	})
	if len(aboveMedian) == 0 {
		return nil, errors.NewEmptyResultError("potential", "no entity at or above the median historical volume")
	}
	declined := filterCandidates(aboveMedian, func(c PotentialCandidate) bool {
		return c.Historical.AvgUnits > 0 && c.DeclinePct >= opts.MinDeclinePct
	})
	if len(declined) == 0 {
		return nil, errors.NewEmptyResultError("potential", "no entity meets the minimum decline percentage")
	}
	candidates := filterCandidates(declined, func(c PotentialCandidate) bool {
		return c.Recent.AvgReturnRate <= opts.MaxRecentReturnRate
	})
	if len(candidates) == 0 {
		return nil, errors.NewEmptyResultError("potential", "no entity under the recent return-rate ceiling")
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DeclinePct != b.DeclinePct {
			return a.DeclinePct > b.DeclinePct
		}
		return a.Historical.AvgUnits > b.Historical.AvgUnits
	})
	if len(candidates) > opts.RankSize {
		candidates = candidates[:opts.RankSize]
	}

	selected := make(map[string]struct{}, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		selected[c.EntityID] = struct{}{}
		c.IntervalMinPrice = intervalMin[c.EntityID]
		c.HistoricalMinPrice = opts.HistoricalMinPrices[c.EntityID]
	}
	var history []MonthlyAggregate
	for _, m := range monthly {
		if _, ok := selected[m.EntityID]; ok {
			history = append(history, m)
		}
	}

	return &PotentialResult{Candidates: candidates, MonthlyHistory: history}, nil
}

// splitWindows determines the set of recent periods. Pinned periods win
// over the trailing count; when the history is shorter than the window,
// the window shrinks to half the available months so a comparison base
// always remains.
func splitWindows(available []dataset.Period, opts PotentialOptions) (map[dataset.Period]struct{}, error) {
	recent := make(map[dataset.Period]struct{})
	if len(opts.RecentPeriods) > 0 {
		avail := make(map[dataset.Period]struct{}, len(available))
		for _, p := range available {
			avail[p] = struct{}{}
		}
		for _, p := range opts.RecentPeriods {
			if _, ok := avail[p]; ok {
				recent[p] = struct{}{}
			}
		}
		if len(recent) == 0 {
			return nil, errors.NewEmptyResultError("potential", "none of the pinned recent periods has data")
		}
		if len(recent) >= len(available) {
			return nil, errors.NewEmptyResultError("potential", "pinned recent periods leave no historical months")
		}
		return recent, nil
	}

	window := opts.RecentWindow
	if len(available) <= window {
		window = len(available) / 2
		if window < 1 {
			window = 1
		}
	}
	if window >= len(available) {
		return nil, errors.NewEmptyResultError("potential", "not enough months to split historical and recent windows")
	}
	for _, p := range available[len(available)-window:] {
		recent[p] = struct{}{}
	}
	return recent, nil
}

// windowStats averages an entity's monthly aggregates over one side of
// the split.
func windowStats(months []MonthlyAggregate, recentSet map[dataset.Period]struct{}, recent bool) WindowStats {
	var s WindowStats
	s.MinPrice = math.Inf(1)
	for _, m := range months {
		_, inRecent := recentSet[m.Period]
		if inRecent != recent {
			continue
		}
		s.AvgUnits += m.UnitsSold
		s.AvgRevenue += m.Revenue
		s.AvgOrders += float64(m.Orders)
		s.AvgReturnRate += m.ReturnRate
		s.AvgMargin += m.MarginAvg
		if m.MinPrice < s.MinPrice {
			s.MinPrice = m.MinPrice
		}
		s.ValidMonths++
	}
	if math.IsInf(s.MinPrice, 1) {
		s.MinPrice = 0
	}
	if s.ValidMonths > 0 {
		n := float64(s.ValidMonths)
		s.AvgUnits /= n
		s.AvgRevenue /= n
		s.AvgOrders /= n
		s.AvgReturnRate /= n
		s.AvgMargin /= n
	}
	return s
}

func distinctPeriods(monthly []MonthlyAggregate) []dataset.Period {
	seen := make(map[dataset.Period]struct{})
	var out []dataset.Period
	for _, m := range monthly {
		if _, ok := seen[m.Period]; !ok {
			seen[m.Period] = struct{}{}
			out = append(out, m.Period)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func filterCandidates(in []PotentialCandidate, keep func(PotentialCandidate) bool) []PotentialCandidate {
	var out []PotentialCandidate
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
