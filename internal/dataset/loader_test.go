package dataset

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salespulse/internal/errors"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// writeWorkbook builds a workbook where each entry maps a sheet name to
// its rows, first row being the header.
func writeWorkbook(t *testing.T, sheets map[string][][]any) string {
	t.Helper()
	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			f.SetSheetName(f.GetSheetName(0), name)
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for ri, row := range rows {
			for ci, val := range row {
				cell, err := excelize.CoordinatesToCellName(ci+1, ri+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(name, cell, val))
			}
		}
	}
	path := filepath.Join(t.TempDir(), "base.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

var saleHeader = []any{"DATA", "NR_NOTA_FISCAL", "CATEGORIA", "CD_PRODUTO", "QTD_SKU", "PRECO VENDIDO", "CUSTO DO PRODUTO"}

func TestLoaderEndToEnd(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"VENDA": {
			saleHeader,
			{"07/01/2024", "INV-1", "Eletronicos", "A1", 2, "10,50", 4},
			{"15/02/2024", "INV-2", "Casa", "B2", 1, 30, 12},
		},
		"DEVOLUCAO": {
			{"DATA_VENDA", "DATA_DEVOLUCAO", "NR_NOTA_FISCAL", "NR_NOTA_DEVOLUCAO", "CD_PRODUTO", "QTD_SKU"},
			{"07/01/2024", "20/01/2024", "INV-1", "DEV-1", "A1", 1},
		},
	})

	loader := NewLoader(testLogger, DefaultLoaderConfig(), nil, nil)
	ds, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, ds.Sales, 2)
	require.Len(t, ds.Returns, 1)

	sale := ds.Sales[0]
	assert.Equal(t, "INV-1", sale.Invoice)
	assert.Equal(t, Period{2024, time.January}, sale.Period)
	assert.InDelta(t, 21.0, sale.GrossRevenue, 1e-9)
	assert.InDelta(t, 8.0, sale.CostTotal, 1e-9)

	ret := ds.Returns[0]
	assert.Equal(t, "DEV-1", ret.ReturnInvoice)
	assert.Equal(t, Period{2024, time.January}, ret.SalePeriod)
	assert.Equal(t, Period{2024, time.January}, ret.ReturnPeriod)
	assert.InDelta(t, 1.0, ret.UnitsReturned, 1e-9)
}

func TestLoaderConcatenatesNumberedSheets(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"VENDA01": {
			saleHeader,
			{"07/01/2024", "INV-1", "Casa", "A1", 1, 10, 1},
		},
		"VENDA02": {
			saleHeader,
			{"08/01/2024", "INV-2", "Casa", "A2", 1, 20, 2},
		},
	})

	loader := NewLoader(testLogger, DefaultLoaderConfig(), nil, nil)
	ds, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, ds.Sales, 2)
	assert.Equal(t, "INV-1", ds.Sales[0].Invoice, "sheets concatenate in natural order")
	assert.Equal(t, "INV-2", ds.Sales[1].Invoice)
	assert.Empty(t, ds.Returns)
}

func TestLoaderMissingRequiredColumn(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"VENDA": {
			{"DATA", "NR_NOTA_FISCAL", "CATEGORIA", "CD_PRODUTO", "QTD_SKU"}, // no price
			{"07/01/2024", "INV-1", "Casa", "A1", 1},
		},
	})

	loader := NewLoader(testLogger, DefaultLoaderConfig(), nil, nil)
	_, err := loader.Load(context.Background(), path)
	require.Error(t, err)
	var schemaErr *errors.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "unit_price", schemaErr.Column)
	assert.Contains(t, schemaErr.Sheets, "VENDA")
}

func TestLoaderNoSaleSheet(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"Sheet1": {{"whatever"}},
	})

	loader := NewLoader(testLogger, DefaultLoaderConfig(), nil, nil)
	_, err := loader.Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VENDA")
}

func TestLoaderCoercionWarningsNeverFatal(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"VENDA": {
			saleHeader,
			{"not-a-date", "INV-1", "Casa", "A1", "not-a-number", 10, 1},
		},
	})

	loader := NewLoader(testLogger, DefaultLoaderConfig(), nil, nil)
	ds, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ds.Sales, 1, "the row is retained with safe defaults")
	assert.True(t, ds.Sales[0].Date.IsZero())
	assert.Equal(t, 0.0, ds.Sales[0].UnitsSold)
	assert.GreaterOrEqual(t, ds.CoercionWarnings, 2)
}

func TestLoaderCacheRoundTrip(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"VENDA": {
			saleHeader,
			{"07/01/2024", "INV-1", "Casa", "A1", 2, "10,50", 4},
		},
	})

	fresh, err := NewLoader(testLogger, DefaultLoaderConfig(), nil, nil).Load(context.Background(), path)
	require.NoError(t, err)

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	cached := NewLoader(testLogger, DefaultLoaderConfig(), store, nil)

	// First load parses and fills the cache.
	first, err := cached.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, fresh, first)

	// Second load is served from cache and must be indistinguishable.
	second, err := cached.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, fresh, second, "cached dataset must equal a fresh enrichment")
}

func TestLoaderCorruptCacheReparses(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"VENDA": {
			saleHeader,
			{"07/01/2024", "INV-1", "Casa", "A1", 2, 10, 4},
		},
	})

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	loader := NewLoader(testLogger, DefaultLoaderConfig(), store, nil)

	sig, err := SignatureFor(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.path(sig), []byte("{corrupt"), 0o644))

	ds, err := loader.Load(context.Background(), path)
	require.NoError(t, err, "a corrupt cache entry degrades to a miss")
	assert.Len(t, ds.Sales, 1)

	// The re-parse repaired the entry.
	got, hit, err := store.Get(sig)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, ds, got)
}

func TestLoaderProgressReachesTotal(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"VENDA": {
			saleHeader,
			{"07/01/2024", "INV-1", "Casa", "A1", 1, 10, 1},
			{"08/01/2024", "INV-2", "Casa", "A2", 1, 20, 2},
		},
	})

	var last [2]int
	progress := func(processed, total int) { last = [2]int{processed, total} }
	_, err := NewLoader(testLogger, DefaultLoaderConfig(), nil, progress).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, last[0], last[1], "progress must finish at 100%")
	assert.Equal(t, 2, last[1])
}
