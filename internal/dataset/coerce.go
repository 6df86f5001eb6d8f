package dataset

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// coercer converts raw cell text into typed values. Every failed parse
// is counted and logged once per row/field; the value fails soft to its
// zero default and the row is retained.
type coercer struct {
	logger   *slog.Logger
	warnings int
}

// dateLayouts are tried in order; all follow the day-first convention of
// the source workbooks (07/01/2026 is the 7th of January).
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
	"02/01/06",
}

// date parses a day-first calendar date truncated to midnight UTC.
// Unparsable input yields the zero time; the row is kept but excluded
// from date-dependent aggregations.
func (c *coercer) date(sheet, field, raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	c.warn(sheet, field, raw)
	return time.Time{}
}

// number strips percent signs and thousands/decimal separators, then
// parses a float. Unparsable input fails soft to zero.
func (c *coercer) number(sheet, field, raw string) float64 {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0
	}
	cleaned = strings.ReplaceAll(cleaned, "%", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	// Both "1.234,56" and "1,234.56" occur across sheet variants; the
	// separator closest to the end is the decimal mark.
	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}
	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		c.warn(sheet, field, raw)
		return 0
	}
	return val
}

// percent parses a numeric value and rescales anything above 1 by /100,
// so "25" and "0.25" both coerce to 0.25.
func (c *coercer) percent(sheet, field, raw string) float64 {
	val := c.number(sheet, field, raw)
	if val > 1 {
		val /= 100
	}
	return val
}

// text trims and substitutes the Unknown sentinel for empty values.
func (c *coercer) text(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Unknown
	}
	return trimmed
}

func (c *coercer) warn(sheet, field, raw string) {
	c.warnings++
	c.logger.Warn("unparsable cell defaulted",
		slog.String("sheet", sheet),
		slog.String("field", field),
		slog.String("value", raw))
}

// coerceSales turns raw sale sheets into SaleLine records. Derived
// columns are left zero; the enricher fills them.
func (c *coercer) coerceSales(tables []RawTable, indexes []columnIndex) []SaleLine {
	var out []SaleLine
	for ti, table := range tables {
		idx := indexes[ti]
		for _, row := range table.Rows {
			if emptyRow(row) {
				continue
			}
			var line SaleLine
			if raw, ok := idx.cell(row, FieldDate); ok {
				line.Date = c.date(table.Sheet, string(FieldDate), raw)
			}
			if line.Date.IsZero() {
				// Some sheet variants only carry an ANO_MES key.
				if raw, ok := idx.cell(row, FieldPeriodRaw); ok {
					line.Period = parseRawPeriod(raw)
				}
			} else {
				line.Period = PeriodOf(line.Date)
			}
			line.Invoice = c.text(cellOr(idx, row, FieldInvoice))
			line.Category = c.text(cellOr(idx, row, FieldCategory))
			line.ListingID = c.text(cellOr(idx, row, FieldListingID))
			line.ListingDesc = c.text(cellOr(idx, row, FieldListingDesc))
			line.SKU = c.text(cellOr(idx, row, FieldSKU))
			line.SKUDesc = c.text(cellOr(idx, row, FieldSKUDesc))
			line.ManufacturerID = c.text(cellOr(idx, row, FieldManufacturerID))
			line.ListingType = c.text(cellOr(idx, row, FieldListingType))
			line.RecordKind = c.text(cellOr(idx, row, FieldRecordKind))
			line.UnitsSold = c.number(table.Sheet, string(FieldUnitsSold), cellOr(idx, row, FieldUnitsSold))
			line.UnitPrice = c.number(table.Sheet, string(FieldUnitPrice), cellOr(idx, row, FieldUnitPrice))
			line.UnitCost = c.number(table.Sheet, string(FieldUnitCost), cellOr(idx, row, FieldUnitCost))
			line.GrossMarginPct = c.percent(table.Sheet, string(FieldGrossMarginPct), cellOr(idx, row, FieldGrossMarginPct))
			line.NetRevenue = c.number(table.Sheet, string(FieldNetRevenue), cellOr(idx, row, FieldNetRevenue))
			line.UnitsReturned = c.number(table.Sheet, string(FieldUnitsReturned), cellOr(idx, row, FieldUnitsReturned))
			line.ReturnRevenue = c.number(table.Sheet, string(FieldReturnRevenue), cellOr(idx, row, FieldReturnRevenue))
			out = append(out, line)
		}
	}
	return out
}

// coerceReturns turns raw return sheets into ReturnLine records.
func (c *coercer) coerceReturns(tables []RawTable, indexes []columnIndex) []ReturnLine {
	var out []ReturnLine
	for ti, table := range tables {
		idx := indexes[ti]
		for _, row := range table.Rows {
			if emptyRow(row) {
				continue
			}
			var line ReturnLine
			line.SaleDate = c.date(table.Sheet, string(FieldSaleDate), cellOr(idx, row, FieldSaleDate))
			line.ReturnDate = c.date(table.Sheet, string(FieldReturnDate), cellOr(idx, row, FieldReturnDate))
			line.Invoice = c.text(cellOr(idx, row, FieldInvoice))
			line.ReturnInvoice = c.text(cellOr(idx, row, FieldReturnInvoice))
			line.Category = c.text(cellOr(idx, row, FieldCategory))
			line.ListingID = c.text(cellOr(idx, row, FieldListingID))
			line.SKU = c.text(cellOr(idx, row, FieldSKU))
			line.RecordKind = c.text(cellOr(idx, row, FieldRecordKind))
			line.UnitsReturned = c.number(table.Sheet, string(FieldUnitsReturned), cellOr(idx, row, FieldUnitsReturned))
			line.ReturnRevenue = c.number(table.Sheet, string(FieldReturnRevenue), cellOr(idx, row, FieldReturnRevenue))
			line.UnitCost = c.number(table.Sheet, string(FieldUnitCost), cellOr(idx, row, FieldUnitCost))
			line.UnitPrice = c.number(table.Sheet, string(FieldUnitPrice), cellOr(idx, row, FieldUnitPrice))
			line.SalePeriod = PeriodOf(line.SaleDate)
			line.ReturnPeriod = PeriodOf(line.ReturnDate)
			out = append(out, line)
		}
	}
	return out
}

// parseRawPeriod reads an ANO_MES key like "202401", tolerating stray
// separators. Anything that does not reduce to six digits is discarded.
func parseRawPeriod(raw string) Period {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() != 6 {
		return Period{}
	}
	s := digits.String()
	year, _ := strconv.Atoi(s[:4])
	month, _ := strconv.Atoi(s[4:])
	if month < 1 || month > 12 {
		return Period{}
	}
	return Period{Year: year, Month: time.Month(month)}
}

func cellOr(idx columnIndex, row []string, f Field) string {
	v, _ := idx.cell(row, f)
	return v
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
