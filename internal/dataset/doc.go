// Package dataset turns raw sales/returns workbooks into the canonical
// enriched dataset every analysis consumes. It handles the complete data
// lifecycle from Excel ingestion to reconciled records.
//
// # Architecture
//
// The pipeline runs in fixed stages:
//
//  1. Loader: resolves sale and return sheets by name prefix and reads
//     their rows
//  2. Schema: matches locale-variant headers onto the canonical column
//     set and verifies required columns
//  3. Coercion: parses day-first dates and locale-formatted numbers,
//     failing soft to safe defaults with per-cell warnings
//  4. Enrichment: computes the derived metric columns in dependency
//     order
//  5. Reconciliation: joins returns to their originating sales by
//     (invoice, sku) for the dual monthly views
//
// Enriched datasets are cached on disk keyed by a signature of the
// source file, so repeated runs over an unchanged workbook skip the
// parse entirely.
//
// # Usage
//
//	loader := dataset.NewLoader(logger, dataset.DefaultLoaderConfig(), store, nil)
//	ds, err := loader.Load(ctx, "BASE.xlsx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	views := dataset.Reconcile(ds)
package dataset
