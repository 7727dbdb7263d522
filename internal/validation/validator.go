// =============================================================================
// Aging Report Converter - Validation Engine
// =============================================================================
//
// This module holds the typed errors of a conversion and the checks that
// produce them:
//   - Schema checks: a header row must provide every required column
//   - Amount checks: Open balance must be a number
//   - Record checks: every bill or credit needs a vendor
//
// ERROR HANDLING:
//   - Schema errors abort the conversion before any row is read
//   - Row errors are collected across the whole document and returned
//     together (errors.Join), so a single run reports every bad row
//   - Callers inspect errors with errors.As
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/report"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// SchemaError reports required columns missing from a header row.
type SchemaError struct {
	// Missing lists every absent column in required order.
	Missing []string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required column(s): %s", strings.Join(e.Missing, ", "))
}

// NumericParseError reports an amount cell that is not a number.
type NumericParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

// Error implements the error interface.
func (e *NumericParseError) Error() string {
	return fmt.Sprintf("line %d: column %q: cannot parse %q as a number", e.Line, e.Column, e.Value)
}

// Unwrap returns the underlying parse error.
func (e *NumericParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports a record that breaks a record rule.
type ValidationError struct {
	Line    int
	Field   string
	Value   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: field %q: %s (value: %q)", e.Line, e.Field, e.Message, e.Value)
}

// =============================================================================
// SCHEMA VALIDATION
// =============================================================================

// ValidateHeaders checks a canonicalized header row against the required
// columns.
//
// RETURNS:
//   - nil if every required column is present.
//   - A *SchemaError listing every missing column otherwise.
func ValidateHeaders(headers, required []string) error {
	if missing := report.MissingColumns(headers, required); len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// =============================================================================
// RECORD VALIDATION
// =============================================================================

// ValidateRecord checks a normalized record.
//
// RULES:
//   - Vendor must not be empty
//   - BillDate must be set
func ValidateRecord(record report.Record) error {
	if strings.TrimSpace(record.Vendor) == "" {
		return &ValidationError{
			Line:    record.SourceLine,
			Field:   report.OutVendor,
			Value:   record.Vendor,
			Message: "vendor is required",
		}
	}

	if record.BillDate.IsZero() {
		return &ValidationError{
			Line:    record.SourceLine,
			Field:   report.OutBillDate,
			Message: "bill date is required",
		}
	}

	return nil
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// Unjoin returns the individual errors of an errors.Join result, or err
// itself if it was not joined.
func Unjoin(err error) []error {
	if err == nil {
		return nil
	}

	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}

// FormatErrors formats conversion errors for display or logging.
//
// PARAMETERS:
//   - err: A single error or the result of errors.Join.
//
// RETURNS:
//   - A numbered list of every error, one per line.
func FormatErrors(err error) string {
	errs := Unjoin(err)
	if len(errs) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Conversion failed with %d error(s):\n", len(errs)))

	for i, e := range errs {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, e.Error()))
	}

	return builder.String()
}
