// =============================================================================
// Aging Report Converter - Shared Types
// =============================================================================
//
// This package contains the types shared by the parsers, the converter, the
// validation rules and the CSV writer. Keeping them here avoids import cycles:
//   - csvparser / xlsxparser produce RawRow values
//   - converter turns RawRow values into Record values
//   - csvwriter serializes RecordSet values
//
// =============================================================================

package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT COLUMNS
// =============================================================================

// Column labels as they appear in a vendor aging export.
const (
	ColDate              = "Date"
	ColTransactionType   = "Transaction type"
	ColNum               = "Num"
	ColVendorDisplayName = "Vendor display name"
	ColVendor            = "Vendor"
	ColDueDate           = "Due date"
	ColPastDue           = "Past due"
	ColAmount            = "Amount"
	ColOpenBalance       = "Open balance"
	ColSelect            = "Select"
	ColNotes             = "Notes"
)

// KnownColumns lists every input column label the converter understands,
// in export order.
var KnownColumns = []string{
	ColDate,
	ColTransactionType,
	ColNum,
	ColVendorDisplayName,
	ColVendor,
	ColDueDate,
	ColPastDue,
	ColAmount,
	ColOpenBalance,
	ColSelect,
	ColNotes,
}

// MissingColumns returns the entries of required that are not in have, in
// required order.
func MissingColumns(have, required []string) []string {
	present := make(map[string]bool, len(have))
	for _, c := range have {
		present[c] = true
	}

	var missing []string
	for _, c := range required {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// =============================================================================
// OUTPUT COLUMNS
// =============================================================================

// Column labels of the bill-import file.
const (
	OutVendor    = "Vendor"
	OutBillDate  = "BillDate"
	OutDueDate   = "DueDate"
	OutAmount    = "Amount"
	OutRefNumber = "RefNumber"
)

// OutputColumns is the exact column order of every generated file.
var OutputColumns = []string{OutVendor, OutBillDate, OutDueDate, OutAmount, OutRefNumber}

// DateLayout is the MM/DD/YYYY layout used for BillDate and DueDate.
const DateLayout = "01/02/2006"

// =============================================================================
// ROWS AND RECORDS
// =============================================================================

// RawRow is a single input row keyed by canonical column label.
type RawRow struct {
	// Line is the 1-based line (CSV) or row (XLSX) number in the source.
	// Useful for error reporting.
	Line int

	// Fields maps the canonical column label to its trimmed value.
	Fields map[string]string
}

// Get returns the value of a column, or "" if the row has no such column.
func (r RawRow) Get(column string) string {
	return r.Fields[column]
}

// Record is one normalized bill or credit ready for import.
type Record struct {
	Vendor    string
	BillDate  time.Time
	DueDate   time.Time // zero when the source value did not parse
	Amount    decimal.Decimal
	RefNumber string

	// SourceLine is the line of the RawRow this record came from.
	SourceLine int
}

// Values renders the record in OutputColumns order.
func (r Record) Values() []string {
	due := ""
	if !r.DueDate.IsZero() {
		due = r.DueDate.Format(DateLayout)
	}
	return []string{
		r.Vendor,
		r.BillDate.Format(DateLayout),
		due,
		r.Amount.StringFixed(2),
		r.RefNumber,
	}
}

// RecordSet is an ordered group of records that becomes one output file.
type RecordSet struct {
	// Name identifies the set: "bills", "credits" or "records".
	Name string

	// FileName is the output file the set is written to.
	FileName string

	Records []Record
}

// Len returns the number of records in the set.
func (s RecordSet) Len() int {
	return len(s.Records)
}

// Total returns the sum of all amounts in the set.
func (s RecordSet) Total() decimal.Decimal {
	total := decimal.Zero
	for _, r := range s.Records {
		total = total.Add(r.Amount)
	}
	return total
}

// Record set names.
const (
	SetRecords = "records"
	SetBills   = "bills"
	SetCredits = "credits"
)

// =============================================================================
// RESULT
// =============================================================================

// WarningKind classifies a non-fatal condition.
type WarningKind string

// EmptyResult means a record set ended up empty and its file is not written.
const EmptyResult WarningKind = "empty_result"

// Warning is a non-fatal condition reported alongside a successful conversion.
type Warning struct {
	Kind      WarningKind
	RecordSet string

	// FileName is the import file the warning concerns, if any.
	FileName string

	Message string
}

// Stats contains counters collected while converting one document.
type Stats struct {
	RowsRead        int
	HeaderRows      int // repeated "Date" header rows dropped
	UndatedRows     int // rows whose Date did not parse
	DeselectedRows  int // rows dropped by the Select column
	RecordsProduced int
	ZeroAmountRows  int // records excluded from both split sets
	ProcessingTime  time.Duration
}

// Result is the outcome of converting one document.
type Result struct {
	// Profile is the name of the input profile that was applied.
	// For auto-detection this names the detected layout.
	Profile string

	// Split reports whether the records were partitioned into bills and credits.
	Split bool

	// Sets holds the non-empty record sets in output order.
	Sets []RecordSet

	Warnings []Warning
	Stats    Stats
}

// Set returns the record set with the given name.
func (r *Result) Set(name string) (RecordSet, bool) {
	for _, s := range r.Sets {
		if s.Name == name {
			return s, true
		}
	}
	return RecordSet{}, false
}

// =============================================================================
// SOURCE TABLE
// =============================================================================

// Table is the cell grid read from an input document before any column
// mapping. Both the CSV and the XLSX readers produce it.
type Table struct {
	// Source is the file the table was read from, if any.
	Source string

	// Records holds the cells of every row after the skipped leading rows.
	Records [][]string

	// Lines holds the 1-based source line of each entry in Records.
	Lines []int
}

// Len returns the number of rows in the table.
func (t *Table) Len() int {
	return len(t.Records)
}
