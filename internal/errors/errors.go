// Package errors defines the error taxonomy shared by the dataset
// pipeline and the analysis engines.
//
// Only a missing required column is fatal; every other failure mode is
// either recovered locally with a safe default (coercion) or reported as
// a normal empty outcome (eligibility filters).
package errors

import (
	"fmt"
	"strings"
)

// Machine-readable error codes surfaced alongside messages.
const (
	CodeSchemaMissing = "SCHEMA_MISSING_COLUMN"
	CodeEmptyResult   = "EMPTY_RESULT"
	CodeCacheMismatch = "CACHE_MISMATCH"
)

// SchemaError reports a required column absent from every candidate
// sheet. It aborts the run before any analysis executes.
type SchemaError struct {
	Column string
	Sheets []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("required column %q not found in any sheet (inspected: %s)",
		e.Column, strings.Join(e.Sheets, ", "))
}

// Code returns the machine-readable error code.
func (e *SchemaError) Code() string { return CodeSchemaMissing }

// NewSchemaError creates a SchemaError for the given column and the
// sheets that were inspected.
func NewSchemaError(column string, sheets []string) *SchemaError {
	return &SchemaError{Column: column, Sheets: sheets}
}

// EmptyResultError reports that an analysis filtered out every entity.
// It is a normal, reportable outcome rather than a crash: Reason names
// the filter that produced zero survivors.
type EmptyResultError struct {
	Analysis string
	Reason   string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%s produced no results: %s", e.Analysis, e.Reason)
}

// Code returns the machine-readable error code.
func (e *EmptyResultError) Code() string { return CodeEmptyResult }

// NewEmptyResultError creates an EmptyResultError for the given analysis
// and filter reason.
func NewEmptyResultError(analysis, reason string) *EmptyResultError {
	return &EmptyResultError{Analysis: analysis, Reason: reason}
}

// CacheMismatchError reports a cache entry whose signature matched but
// whose payload was unreadable or truncated. Callers treat it as a cache
// miss and re-run the pipeline.
type CacheMismatchError struct {
	Signature string
	Err       error
}

func (e *CacheMismatchError) Error() string {
	return fmt.Sprintf("cache entry %s unreadable: %v", e.Signature, e.Err)
}

func (e *CacheMismatchError) Unwrap() error { return e.Err }

// Code returns the machine-readable error code.
func (e *CacheMismatchError) Code() string { return CodeCacheMismatch }
