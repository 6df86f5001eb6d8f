package dataset

import (
	"strings"

	"salespulse/internal/errors"
)

// Field identifies one canonical column of the internal record shape.
type Field string

// Canonical sale-table fields.
const (
	FieldDate           Field = "date"
	FieldPeriodRaw      Field = "period_raw"
	FieldInvoice        Field = "invoice_id"
	FieldCategory       Field = "category"
	FieldListingID      Field = "listing_id"
	FieldListingDesc    Field = "listing_desc"
	FieldSKU            Field = "sku_id"
	FieldSKUDesc        Field = "sku_desc"
	FieldManufacturerID Field = "manufacturer_id"
	FieldListingType    Field = "listing_type"
	FieldUnitsSold      Field = "units_sold"
	FieldUnitPrice      Field = "unit_price"
	FieldUnitCost       Field = "unit_cost"
	FieldGrossMarginPct Field = "gross_margin_pct"
	FieldNetRevenue     Field = "net_revenue"
	FieldUnitsReturned  Field = "units_returned"
	FieldReturnRevenue  Field = "return_revenue"
	FieldRecordKind     Field = "record_kind"
)

// Canonical return-table fields (shared names reuse the sale constants).
const (
	FieldSaleDate      Field = "sale_date"
	FieldReturnDate    Field = "return_date"
	FieldReturnInvoice Field = "return_invoice_id"
)

// columnSpec declares one canonical field, whether it is required, and
// the locale-variant headers that map onto it. Aliases are compared
// after normalizeHeader, so accent and case variants collapse.
type columnSpec struct {
	field    Field
	required bool
	aliases  []string
}

// The source workbooks come from a Brazilian marketplace export; header
// aliases keep the original Portuguese names alongside generic ones.
var saleColumns = []columnSpec{
	{FieldDate, true, []string{"data", "data venda", "dt venda", "data da venda"}},
	{FieldPeriodRaw, false, []string{"ano_mes", "ano mes", "anomes"}},
	{FieldInvoice, true, []string{"nr_nota_fiscal", "nota fiscal", "nr_pedido", "nr pedido", "pedido"}},
	{FieldCategory, true, []string{"categoria", "category"}},
	{FieldListingID, false, []string{"cd_anuncio", "anuncio", "cd anuncio"}},
	{FieldListingDesc, false, []string{"ds_anuncio", "ds anuncio"}},
	{FieldSKU, true, []string{"cd_produto", "cd produto", "sku", "codigo produto"}},
	{FieldSKUDesc, false, []string{"ds_produto", "ds produto", "descricao produto"}},
	{FieldManufacturerID, false, []string{"cd_fabricante", "cd fabricante", "fabricante"}},
	{FieldListingType, false, []string{"tp_anuncio", "tp anuncio", "tipo anuncio", "tipo de anuncio"}},
	{FieldUnitsSold, true, []string{"qtd_sku", "qtd de sku no pedido", "qtd sku", "quantidade", "unidades"}},
	{FieldUnitPrice, true, []string{"preco vendido", "preco_vendido", "preco unitario", "preco_unitario"}},
	{FieldUnitCost, false, []string{"custo do produto", "custo_produto", "custo unitario", "custo_unitario"}},
	{FieldGrossMarginPct, false, []string{"perc margem bruta% rbld", "perc_margem_bruta", "margem bruta", "perc margem bruta"}},
	{FieldNetRevenue, false, []string{"rob", "rbld", "receita bruta"}},
	{FieldUnitsReturned, false, []string{"qtd produto devolvido", "qtd_devolvido", "qtd devolvido"}},
	{FieldReturnRevenue, false, []string{"devolucao receita bruta tot$", "devolucao_receita_bruta", "receita devolucao"}},
	{FieldRecordKind, false, []string{"tp_registro", "tp registro", "tipo registro"}},
}

var returnColumns = []columnSpec{
	{FieldSaleDate, true, []string{"data_venda", "data venda", "data"}},
	{FieldReturnDate, true, []string{"data_devolucao", "data devolucao", "dt devolucao"}},
	{FieldInvoice, true, []string{"nr_nota_fiscal", "nota fiscal", "nr_pedido", "nr pedido", "pedido"}},
	{FieldReturnInvoice, false, []string{"nr_nota_devolucao", "pedido_devolucao", "pedido devolucao", "nr devolucao"}},
	{FieldCategory, false, []string{"categoria", "category"}},
	{FieldListingID, false, []string{"cd_anuncio", "anuncio", "cd anuncio"}},
	{FieldSKU, true, []string{"cd_produto", "cd produto", "sku", "codigo produto"}},
	{FieldUnitsReturned, true, []string{"qtd_sku", "qtd sku", "qtd devolvida", "quantidade", "unidades"}},
	{FieldReturnRevenue, false, []string{"devolucao receita bruta tot$", "devolucao_receita_bruta", "receita devolucao"}},
	{FieldUnitCost, false, []string{"custo do produto", "custo_produto", "custo unitario", "custo_unitario"}},
	{FieldUnitPrice, false, []string{"preco vendido", "preco_vendido", "preco unitario", "preco_unitario"}},
	{FieldRecordKind, false, []string{"tp_registro", "tp registro", "tipo registro"}},
}

// RawTable is one sheet's untyped content as read from the workbook.
type RawTable struct {
	Sheet  string
	Header []string
	Rows   [][]string
}

// columnIndex maps canonical fields to the column position within one
// sheet; fields absent from the sheet are not present in the map.
type columnIndex map[Field]int

// resolveColumns matches a sheet header against the given specs.
// Unknown columns are ignored; they stay in the raw rows but are never
// read.
func resolveColumns(header []string, specs []columnSpec) columnIndex {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}
	idx := make(columnIndex)
	for _, spec := range specs {
		for _, alias := range spec.aliases {
			want := normalizeHeader(alias)
			for i, h := range normalized {
				if h == want {
					if _, taken := idx[spec.field]; !taken {
						idx[spec.field] = i
					}
					break
				}
			}
			if _, ok := idx[spec.field]; ok {
				break
			}
		}
	}
	return idx
}

// checkRequired verifies that every required field was matched in at
// least one sheet. The returned error names the first missing column and
// all inspected sheets.
func checkRequired(indexes []columnIndex, sheets []string, specs []columnSpec) error {
	for _, spec := range specs {
		if !spec.required {
			continue
		}
		found := false
		for _, idx := range indexes {
			if _, ok := idx[spec.field]; ok {
				found = true
				break
			}
		}
		if !found {
			return errors.NewSchemaError(string(spec.field), sheets)
		}
	}
	return nil
}

// normalizeHeader lower-cases, trims and strips diacritics so that
// accent variants of the same logical column collapse to one key.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Map(stripDiacritic, h)
}

func stripDiacritic(r rune) rune {
	switch r {
	case 'á', 'à', 'â', 'ã', 'ä':
		return 'a'
	case 'é', 'è', 'ê', 'ë':
		return 'e'
	case 'í', 'ì', 'î', 'ï':
		return 'i'
	case 'ó', 'ò', 'ô', 'õ', 'ö':
		return 'o'
	case 'ú', 'ù', 'û', 'ü':
		return 'u'
	case 'ç':
		return 'c'
	case 'ñ':
		return 'n'
	}
	return r
}

func (idx columnIndex) cell(row []string, f Field) (string, bool) {
	i, ok := idx[f]
	if !ok || i >= len(row) {
		return "", false
	}
	return row[i], true
}
