package dataset

// enrich computes the derived columns of every sale line, in dependency
// order. costIsLineTotal declares the sheet convention for the cost
// column: when true the raw value is a line total and is normalized back
// to per-unit before CostTotal is computed, so totals are never
// double-multiplied. The convention is declared once per run, never
// guessed per sheet.
func enrich(lines []SaleLine, costIsLineTotal bool) []SaleLine {
	for i := range lines {
		line := &lines[i]

		if costIsLineTotal {
			if line.UnitsSold > 0 {
				line.UnitCost = line.UnitCost / line.UnitsSold
			} else {
				line.UnitCost = 0
			}
		}

		line.GrossRevenue = line.UnitPrice * line.UnitsSold
		if line.NetRevenue == 0 {
			line.NetRevenue = line.GrossRevenue
		}
		line.CostTotal = line.UnitCost * line.UnitsSold
		line.EstGrossProfit = line.GrossRevenue * line.GrossMarginPct
		if line.UnitsSold > 0 {
			line.ReturnRate = line.UnitsReturned / line.UnitsSold
		} else {
			line.ReturnRate = 0
		}
	}
	return lines
}
