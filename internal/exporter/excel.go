// Package exporter writes analysis result tables to an Excel workbook,
// one sheet per table. Values are written raw; percentage-valued columns
// stay as ratios in [0,1] and display formatting is left to consumers.
package exporter

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// Table is one named tabular result with a stable column contract.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// WorkbookWriter writes result sets to .xlsx files.
type WorkbookWriter struct {
	logger *slog.Logger
}

// NewWorkbookWriter creates a WorkbookWriter. A nil logger falls back to
// slog.Default().
func NewWorkbookWriter(logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{logger: logger}
}

// Write creates the workbook at path with one sheet per table, in the
// given order. Empty tables still get their sheet and header row so the
// column contract stays visible.
func (w *WorkbookWriter) Write(path string, tables []Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("no tables to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, table := range tables {
		sheet := sheetName(table.Name)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename default sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %q: %w", sheet, err)
		}

		for col, name := range table.Columns {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return fmt.Errorf("header cell for %q: %w", sheet, err)
			}
			if err := f.SetCellValue(sheet, cell, name); err != nil {
				return fmt.Errorf("write header of %q: %w", sheet, err)
			}
		}
		for r, row := range table.Rows {
			for c, value := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+2)
				if err != nil {
					return fmt.Errorf("cell for %q: %w", sheet, err)
				}
				if err := f.SetCellValue(sheet, cell, value); err != nil {
					return fmt.Errorf("write cell %s of %q: %w", cell, sheet, err)
				}
			}
		}
		w.logger.Debug("sheet written",
			slog.String("sheet", sheet),
			slog.Int("rows", len(table.Rows)))
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	w.logger.Info("workbook exported",
		slog.String("path", path),
		slog.Int("sheets", len(tables)))
	return nil
}

// Filename builds an export filename from the analysis kind, an optional
// range suffix and a short run id, so repeated runs never clobber each
// other.
func Filename(kind, rangeSuffix string) string {
	if rangeSuffix == "" {
		rangeSuffix = "full_history"
	}
	runID := uuid.NewString()[:8]
	return fmt.Sprintf("%s_%s_%s.xlsx", strings.ToUpper(kind), rangeSuffix, runID)
}

// sheetName enforces the 31-character sheet name limit and strips the
// characters Excel rejects.
func sheetName(name string) string {
	replacer := strings.NewReplacer(":", "", "\\", "", "/", "", "?", "", "*", "", "[", "", "]", "")
	cleaned := replacer.Replace(name)
	if cleaned == "" {
		cleaned = "sheet"
	}
	if len(cleaned) > 31 {
		cleaned = cleaned[:31]
	}
	return cleaned
}
