// Command analyzer loads a sales/returns workbook, runs one of the five
// analytical views over an optional date range and filter, and exports
// the result tables to an Excel workbook.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"salespulse/internal/analysis"
	"salespulse/internal/config"
	"salespulse/internal/dataset"
	"salespulse/internal/errors"
	"salespulse/internal/exporter"
)

func main() {
	cfgPath := flag.String("config", "salespulse.yaml", "path to the YAML config file (optional)")
	workbook := flag.String("workbook", "", "path to the source workbook (overrides config)")
	kind := flag.String("analysis", "", "analysis to run: returns, potential, recurrence, reputation, focus")
	startStr := flag.String("start", "", "range start, dd/mm/yyyy (optional)")
	endStr := flag.String("end", "", "range end, dd/mm/yyyy (optional)")
	category := flag.String("category", "", "restrict to one category")
	skus := flag.String("skus", "", "comma-separated SKU list (focus analysis)")
	entity := flag.String("entity", "sku", "grouping entity: sku or listing")
	rank := flag.Int("rank", 0, "ranking size (overrides config)")
	recentWindow := flag.Int("recent-window", 0, "trailing months of the recent window (potential)")
	recentPeriods := flag.String("recent-periods", "", "comma-separated yyyy-mm list pinning the recent window (potential)")
	noCache := flag.Bool("no-cache", false, "bypass the dataset cache")
	outDir := flag.String("out", "", "output directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if *workbook != "" {
		cfg.Workbook.Path = *workbook
	}
	if *rank > 0 {
		cfg.Analysis.RankSize = *rank
	}
	if *recentWindow > 0 {
		cfg.Analysis.RecentWindow = *recentWindow
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *kind == "" {
		fmt.Fprintln(os.Stderr, "missing -analysis (returns, potential, recurrence, reputation, focus)")
		os.Exit(2)
	}

	if err := run(context.Background(), logger, cfg, runOptions{
		kind:          *kind,
		startStr:      *startStr,
		endStr:        *endStr,
		category:      *category,
		skus:          splitList(*skus),
		entity:        *entity,
		recentPeriods: splitList(*recentPeriods),
		noCache:       *noCache,
	}); err != nil {
		var empty *errors.EmptyResultError
		if stderrors.As(err, &empty) {
			logger.Warn("analysis produced no results",
				slog.String("analysis", empty.Analysis),
				slog.String("reason", empty.Reason))
			os.Exit(0)
		}
		logger.Error("run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type runOptions struct {
	kind          string
	startStr      string
	endStr        string
	category      string
	skus          []string
	entity        string
	recentPeriods []string
	noCache       bool
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts runOptions) error {
	start, err := parseDate(opts.startStr)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	end, err := parseDate(opts.endStr)
	if err != nil {
		return fmt.Errorf("invalid -end: %w", err)
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return fmt.Errorf("range start %s is after end %s", opts.startStr, opts.endStr)
	}

	key := analysis.KeySKU
	switch strings.ToLower(opts.entity) {
	case "", "sku":
	case "listing":
		key = analysis.KeyListing
	default:
		return fmt.Errorf("unknown entity %q", opts.entity)
	}

	var store dataset.Store
	if !cfg.Cache.Disabled && !opts.noCache {
		fileStore, err := dataset.NewFileStore(cfg.Cache.Dir)
		if err != nil {
			return err
		}
		store = fileStore
	}

	progress := newProgressPrinter("loading workbook")
	loader := dataset.NewLoader(logger, dataset.LoaderConfig{
		SalePrefix:      cfg.Workbook.SaleSheetPrefix,
		ReturnPrefix:    cfg.Workbook.ReturnSheetPrefix,
		CostIsLineTotal: cfg.Workbook.CostIsLineTotal,
	}, store, progress.update)

	full, err := loader.Load(ctx, cfg.Workbook.Path)
	if err != nil {
		return err
	}
	progress.finish()

	historicalPrices := full.HistoricalMinPrices()
	ds := full.FilterRange(start, end).FilterCategory(opts.category)

	tables, err := runAnalysis(ds, key, cfg.Analysis, opts, historicalPrices)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	outPath := filepath.Join(cfg.Output.Dir, exporter.Filename(opts.kind, rangeSuffix(start, end)))
	if err := exporter.NewWorkbookWriter(logger).Write(outPath, tables); err != nil {
		return err
	}
	fmt.Printf("report written: %s\n", outPath)
	return nil
}

func runAnalysis(ds *dataset.EnrichedDataset, key analysis.EntityKey, cfg config.AnalysisConfig, opts runOptions, historicalPrices map[string]float64) ([]exporter.Table, error) {
	switch strings.ToLower(opts.kind) {
	case "returns":
		res, err := analysis.ReturnDiagnostics(ds, analysis.ReturnsOptions{
			MinReturnRate: cfg.MinReturnRate,
		})
		if err != nil {
			return nil, err
		}
		return res.Tables(), nil

	case "potential":
		periods, err := parsePeriods(opts.recentPeriods)
		if err != nil {
			return nil, err
		}
		res, err := analysis.PotentialRecovery(ds.Sales, key, analysis.PotentialOptions{
			RankSize:            cfg.RankSize,
			RecentWindow:        cfg.RecentWindow,
			RecentPeriods:       periods,
			MinHistoryMonths:    cfg.MinHistoryMonths,
			MinDeclinePct:       cfg.MinDeclinePct,
			MaxRecentReturnRate: cfg.MaxRecentReturnRate,
			HistoricalMinPrices: historicalPrices,
		})
		if err != nil {
			return nil, err
		}
		return res.Tables(), nil

	case "recurrence":
		res, err := analysis.RecurrenceRanking(ds.Sales, key, analysis.RecurrenceOptions{
			RankSize:            cfg.RankSize,
			MinMonthsActive:     cfg.MinMonthsActive,
			HistoricalMinPrices: historicalPrices,
		})
		if err != nil {
			return nil, err
		}
		return res.Tables(), nil

	case "reputation":
		res, err := analysis.ReputationCandidates(ds.Sales, key, analysis.ReputationOptions{
			CostPercentile:      cfg.CostPercentile,
			MinQuantity:         cfg.MinQuantity,
			MaxReturnRate:       cfg.MaxReturnRate,
			HistoricalMinPrices: historicalPrices,
		})
		if err != nil {
			return nil, err
		}
		return res.Tables(), nil

	case "focus":
		res, err := analysis.FocusSummaries(ds.Sales, key, analysis.FocusOptions{
			Category:  opts.category,
			EntityIDs: opts.skus,
		})
		if err != nil {
			return nil, err
		}
		return res.Tables(), nil
	}
	return nil, fmt.Errorf("unknown analysis %q", opts.kind)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// progressPrinter renders the loader progress as a real percentage of
// rows parsed, rewriting one console line.
type progressPrinter struct {
	label       string
	lastPercent int
	done        bool
}

func newProgressPrinter(label string) *progressPrinter {
	return &progressPrinter{label: label, lastPercent: -1}
}

func (p *progressPrinter) update(processed, total int) {
	if p.done {
		return
	}
	percent := 100
	if total > 0 {
		percent = processed * 100 / total
	}
	if percent > 100 {
		percent = 100
	}
	if percent != p.lastPercent {
		fmt.Fprintf(os.Stderr, "\r%s: %3d%%", p.label, percent)
		p.lastPercent = percent
	}
}

func (p *progressPrinter) finish() {
	if !p.done {
		fmt.Fprintln(os.Stderr)
		p.done = true
	}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	raw = strings.ReplaceAll(raw, "-", "/")
	for _, layout := range []string{"02/01/2006", "2/1/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("expected dd/mm/yyyy, got %q", raw)
}

func parsePeriods(raw []string) ([]dataset.Period, error) {
	var out []dataset.Period
	for _, s := range raw {
		t, err := time.Parse("2006-01", s)
		if err != nil {
			return nil, fmt.Errorf("expected yyyy-mm period, got %q", s)
		}
		out = append(out, dataset.PeriodOf(t))
	}
	return out, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' }) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func rangeSuffix(start, end time.Time) string {
	if start.IsZero() && end.IsZero() {
		return ""
	}
	const layout = "20060102"
	from, to := "open", "open"
	if !start.IsZero() {
		from = start.Format(layout)
	}
	if !end.IsZero() {
		to = end.Format(layout)
	}
	return from + "_" + to
}
