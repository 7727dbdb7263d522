// =============================================================================
// Aging Report Converter - Transformation Engine
// =============================================================================
//
// This module turns the raw cell values of an aging report into the typed
// values of a bill-import record.
//
// TRANSFORMATIONS:
//   - Amounts: thousands separators removed, parsed as exact decimals
//   - Dates: any of the common export layouts, rendered later as MM/DD/YYYY
//   - Renaming: Vendor, Date, Due date, Open balance and Num become Vendor,
//     BillDate, DueDate, Amount and RefNumber; every other column is dropped
//
// =============================================================================

package converter

import (
	"fmt"
	"strings"
	"time"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/report"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/validation"
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNTS
// =============================================================================

// ParseAmount parses an Open balance cell.
//
// ACCEPTED FORMATS:
//   - "1234.56", "-50", "1,234.56"
//   - "(1,234.56)" for negative amounts in accounting notation
//
// RETURNS:
//   - The amount.
//   - An error if the cell is blank, not a number, or has fractions of a cent.
func ParseAmount(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(value, ",", ""))

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = strings.TrimSpace(cleaned[1 : len(cleaned)-1])
	}

	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, err
	}

	// Import files carry whole cents; a sub-cent balance is not rounded away.
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, fmt.Errorf("amount %s has more than 2 decimal places", cleaned)
	}

	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

// =============================================================================
// DATES
// =============================================================================

// dateLayouts lists the accepted input layouts, most common first.
// Month and day accept one or two digits.
var dateLayouts = []string{
	"1/2/2006",
	"1/2/06",
	"2006-1-2",
	"2006/1/2",
	"1-2-2006",
	"1-2-06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
}

// ParseDate parses a date cell in any of the accepted layouts.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// FormatDate renders a date the way the import file expects it (MM/DD/YYYY).
// A zero date renders as "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(report.DateLayout)
}

// =============================================================================
// ROW PREDICATES
// =============================================================================

// isRepeatedHeader reports whether a row is a copy of the header row, as
// printed at the top of every page or vendor section.
func isRepeatedHeader(row report.RawRow) bool {
	return row.Get(report.ColDate) == report.ColDate
}

// isSelected reports whether the bookkeeper marked the row for import.
func isSelected(row report.RawRow) bool {
	return strings.ToLower(strings.TrimSpace(row.Get(report.ColSelect))) == "x"
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// normalizeRow builds the import record for a dated row.
//
// PARAMETERS:
//   - row: A row that survived filtering and selection.
//   - billDate: The already parsed Date cell.
//
// RETURNS:
//   - The record.
//   - A *validation.NumericParseError for a bad amount, or a
//     *validation.ValidationError for a record that breaks a record rule.
func normalizeRow(row report.RawRow, billDate time.Time) (report.Record, error) {
	rawAmount := row.Get(report.ColOpenBalance)
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return report.Record{}, &validation.NumericParseError{
			Line:   row.Line,
			Column: report.ColOpenBalance,
			Value:  rawAmount,
			Err:    err,
		}
	}

	// An unparseable due date is left blank; the row is still imported.
	dueDate, err := ParseDate(row.Get(report.ColDueDate))
	if err != nil {
		dueDate = time.Time{}
	}

	record := report.Record{
		Vendor:     strings.TrimSpace(row.Get(report.ColVendor)),
		BillDate:   billDate,
		DueDate:    dueDate,
		Amount:     amount,
		RefNumber:  strings.TrimSpace(row.Get(report.ColNum)),
		SourceLine: row.Line,
	}

	if err := validation.ValidateRecord(record); err != nil {
		return report.Record{}, err
	}

	return record, nil
}

// partition splits records by the sign of their amount. Zero amounts go to
// neither set and are counted.
func partition(records []report.Record) (bills, credits []report.Record, zero int) {
	bills = []report.Record{}
	credits = []report.Record{}

	for _, r := range records {
		switch r.Amount.Sign() {
		case 1:
			bills = append(bills, r)
		case -1:
			credits = append(credits, r)
		default:
			zero++
		}
	}

	return bills, credits, zero
}
