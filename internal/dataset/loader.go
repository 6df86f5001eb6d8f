package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
)

// Progress reports rows parsed out of the total, so callers can render a
// real percentage while a large workbook loads.
type Progress func(processed, total int)

// LoaderConfig declares how the source workbook is laid out.
type LoaderConfig struct {
	// SalePrefix and ReturnPrefix select sheets by name prefix; numbered
	// sheets (VENDA01, VENDA02, ...) represent a base exceeding the
	// single-sheet row limit and are concatenated in natural order.
	SalePrefix   string
	ReturnPrefix string
	// CostIsLineTotal declares that the cost column already carries the
	// line total instead of a per-unit value. See enrich.
	CostIsLineTotal bool
}

// DefaultLoaderConfig returns the conventions of the standard export.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{SalePrefix: "VENDA", ReturnPrefix: "DEVOLUCAO"}
}

// Loader runs the full enrichment pipeline: sheet resolution, schema
// normalization, type coercion, metric enrichment and cache read/write.
type Loader struct {
	logger   *slog.Logger
	cfg      LoaderConfig
	cache    Store // nil disables caching
	progress Progress
}

// NewLoader creates a Loader. A nil logger falls back to slog.Default();
// a nil cache disables caching entirely.
func NewLoader(logger *slog.Logger, cfg LoaderConfig, cache Store, progress Progress) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SalePrefix == "" {
		cfg.SalePrefix = "VENDA"
	}
	if cfg.ReturnPrefix == "" {
		cfg.ReturnPrefix = "DEVOLUCAO"
	}
	return &Loader{logger: logger, cfg: cfg, cache: cache, progress: progress}
}

// Load returns the enriched dataset for the workbook at path, served
// from cache when the source signature matches and rebuilt otherwise.
func (l *Loader) Load(ctx context.Context, path string) (*EnrichedDataset, error) {
	var sig Signature
	if l.cache != nil {
		var err error
		sig, err = SignatureFor(path)
		if err != nil {
			return nil, err
		}
		ds, hit, err := l.cache.Get(sig)
		if err != nil {
			// Corrupt entries degrade to a miss and the pipeline re-runs.
			l.logger.WarnContext(ctx, "cache entry unusable, re-parsing",
				slog.String("source", cacheKeyStem(path)),
				slog.String("error", err.Error()))
		}
		if hit {
			l.logger.InfoContext(ctx, "dataset served from cache",
				slog.String("source", cacheKeyStem(path)),
				slog.Int("sales", len(ds.Sales)),
				slog.Int("returns", len(ds.Returns)))
			l.notify(1, 1)
			return ds, nil
		}
	}

	ds, err := l.parse(ctx, path)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Put(sig, ds); err != nil {
			// A failed cache write never fails the run.
			l.logger.WarnContext(ctx, "cache write failed",
				slog.String("source", cacheKeyStem(path)),
				slog.String("error", err.Error()))
		}
	}
	return ds, nil
}

func (l *Loader) parse(ctx context.Context, path string) (*EnrichedDataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	saleSheets := matchSheets(sheets, l.cfg.SalePrefix)
	returnSheets := matchSheets(sheets, l.cfg.ReturnPrefix)
	if len(saleSheets) == 0 {
		return nil, fmt.Errorf("no sheet matches sale prefix %q (available: %s)",
			l.cfg.SalePrefix, strings.Join(sheets, ", "))
	}
	l.logger.InfoContext(ctx, "resolved workbook sheets",
		slog.Any("sale_sheets", saleSheets),
		slog.Any("return_sheets", returnSheets))

	saleTables, total, err := l.readTables(f, saleSheets)
	if err != nil {
		return nil, err
	}
	returnTables, returnTotal, err := l.readTables(f, returnSheets)
	if err != nil {
		return nil, err
	}
	total += returnTotal
	if total == 0 {
		total = 1
	}

	saleIdx := make([]columnIndex, len(saleTables))
	for i, t := range saleTables {
		saleIdx[i] = resolveColumns(t.Header, saleColumns)
	}
	if err := checkRequired(saleIdx, saleSheets, saleColumns); err != nil {
		return nil, err
	}
	returnIdx := make([]columnIndex, len(returnTables))
	for i, t := range returnTables {
		returnIdx[i] = resolveColumns(t.Header, returnColumns)
	}
	if len(returnTables) > 0 {
		if err := checkRequired(returnIdx, returnSheets, returnColumns); err != nil {
			return nil, err
		}
	}

	co := &coercer{logger: l.logger}
	processed := 0
	tick := func(tables []RawTable) {
		for _, t := range tables {
			processed += len(t.Rows)
			l.notify(processed, total)
		}
	}

	ds := &EnrichedDataset{}
	ds.Sales = co.coerceSales(saleTables, saleIdx)
	tick(saleTables)
	ds.Returns = co.coerceReturns(returnTables, returnIdx)
	tick(returnTables)
	ds.Sales = enrich(ds.Sales, l.cfg.CostIsLineTotal)
	ds.CoercionWarnings = co.warnings
	l.notify(total, total)

	l.logger.InfoContext(ctx, "workbook parsed",
		slog.String("source", cacheKeyStem(path)),
		slog.Int("sales", len(ds.Sales)),
		slog.Int("returns", len(ds.Returns)),
		slog.Int("coercion_warnings", ds.CoercionWarnings))
	return ds, nil
}

// readTables reads each sheet into a RawTable in the given order and
// returns the total data-row count across them.
func (l *Loader) readTables(f *excelize.File, sheets []string) ([]RawTable, int, error) {
	var tables []RawTable
	total := 0
	for _, name := range sheets {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, 0, fmt.Errorf("read sheet %q: %w", name, err)
		}
		if len(rows) == 0 {
			continue
		}
		t := RawTable{Sheet: name, Header: rows[0], Rows: rows[1:]}
		total += len(t.Rows)
		tables = append(tables, t)
	}
	return tables, total, nil
}

func (l *Loader) notify(processed, total int) {
	if l.progress != nil {
		l.progress(processed, total)
	}
}

// matchSheets returns the sheets whose normalized name starts with the
// normalized prefix, ordered naturally so VENDA2 sorts before VENDA10.
// An exact match wins over prefix expansion, mirroring how a single
// un-numbered sheet is the common case.
func matchSheets(sheets []string, prefix string) []string {
	want := normalizeHeader(prefix)
	for _, name := range sheets {
		if normalizeHeader(name) == want {
			return []string{name}
		}
	}
	var matched []string
	for _, name := range sheets {
		if strings.HasPrefix(normalizeHeader(name), want) {
			matched = append(matched, name)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return naturalLess(matched[i], matched[j])
	})
	return matched
}

// naturalLess compares strings treating digit runs as numbers.
func naturalLess(a, b string) bool {
	ai, bi := 0, 0
	for ai < len(a) && bi < len(b) {
		ar, br := rune(a[ai]), rune(b[bi])
		if unicode.IsDigit(ar) && unicode.IsDigit(br) {
			aj, bj := ai, bi
			for aj < len(a) && unicode.IsDigit(rune(a[aj])) {
				aj++
			}
			for bj < len(b) && unicode.IsDigit(rune(b[bj])) {
				bj++
			}
			an, _ := strconv.Atoi(a[ai:aj])
			bn, _ := strconv.Atoi(b[bi:bj])
			if an != bn {
				return an < bn
			}
			ai, bi = aj, bj
			continue
		}
		if ar != br {
			return ar < br
		}
		ai++
		bi++
	}
	return len(a) < len(b)
}
