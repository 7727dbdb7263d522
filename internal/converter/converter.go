// =============================================================================
// Aging Report Converter - Converter Module
// =============================================================================
//
// This module contains the core conversion logic. It turns one vendor aging
// report into the record sets of the bill-import files.
//
// CONVERSION PIPELINE:
//   1. Read the document (CSV or XLSX) into a cell grid
//   2. Resolve the column layout (fixed, header row, or auto-detected)
//   3. Filter: drop repeated header rows and rows without a valid Date
//   4. Select: keep only rows marked "x" when the profile selects
//   5. Normalize: rename columns, parse amounts and dates
//   6. Partition: bills (positive) and vendor credits (negative)
//
// The conversion itself never touches the file system; writing the record
// sets is left to the csvwriter package.
//
// CONCURRENCY:
//   A Converter holds no mutable state, so one instance may convert several
//   documents at once.
//
// =============================================================================

package converter

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/config"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/csvparser"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/report"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/validation"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/xlsxparser"
	"github.com/rs/zerolog"
)

// probeRows is the number of leading records auto-detection inspects.
const probeRows = 5

// =============================================================================
// OPTIONS
// =============================================================================

// Options contains the settings of a Converter.
type Options struct {
	// Profile is the input profile to apply. Required.
	Profile *config.Profile

	// Encoding and Delimiter apply to CSV inputs unless the profile sets its own.
	Encoding  string
	Delimiter string

	// Sheet overrides the profile's worksheet for XLSX inputs.
	Sheet string

	// Split overrides the profile's SplitCredits when set.
	Split *bool

	// BillsFileName and CreditsFileName name the generated files.
	BillsFileName   string
	CreditsFileName string
}

// OptionsFromConfig builds converter options from the main configuration.
func OptionsFromConfig(cfg *config.MainConfig, profile *config.Profile) Options {
	return Options{
		Profile:         profile,
		Encoding:        cfg.Encoding,
		Delimiter:       cfg.Delimiter,
		BillsFileName:   cfg.BillsFileName,
		CreditsFileName: cfg.CreditsFileName,
	}
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter converts vendor aging reports with one input profile.
type Converter struct {
	opts   Options
	logger zerolog.Logger
}

// New creates a new Converter instance.
//
// PARAMETERS:
//   - opts: The profile and file settings. Unset file names get the defaults.
//   - logger: Receives per-step debug output.
//
// RETURNS:
//   - A new Converter instance, or an error if opts has no valid profile.
func New(opts Options, logger zerolog.Logger) (*Converter, error) {
	if opts.Profile == nil {
		return nil, fmt.Errorf("no input profile given")
	}
	if err := opts.Profile.Validate(); err != nil {
		return nil, err
	}

	defaults := config.Default()
	if opts.BillsFileName == "" {
		opts.BillsFileName = defaults.BillsFileName
	}
	if opts.CreditsFileName == "" {
		opts.CreditsFileName = defaults.CreditsFileName
	}
	if opts.Encoding == "" {
		opts.Encoding = defaults.Encoding
	}
	if opts.Delimiter == "" {
		opts.Delimiter = defaults.Delimiter
	}

	return &Converter{
		opts:   opts,
		logger: logger.With().Str("profile", opts.Profile.Name).Logger(),
	}, nil
}

// Profile returns the input profile the converter applies.
func (c *Converter) Profile() *config.Profile {
	return c.opts.Profile
}

// split reports whether output is partitioned into bills and credits.
func (c *Converter) split() bool {
	if c.opts.Split != nil {
		return *c.opts.Split
	}
	return c.opts.Profile.SplitCredits
}

// =============================================================================
// DOCUMENT READING
// =============================================================================

// IsSpreadsheet reports whether a file is read with the XLSX parser.
func IsSpreadsheet(filePath string) bool {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// ReadFile reads an input file into a cell grid with the profile's settings.
func (c *Converter) ReadFile(filePath string) (*report.Table, error) {
	if IsSpreadsheet(filePath) {
		return xlsxparser.ParseFile(filePath, c.xlsxSettings())
	}

	return csvparser.ParseFile(filePath, c.csvSettings())
}

// xlsxSettings returns the worksheet settings of the converter.
func (c *Converter) xlsxSettings() xlsxparser.Settings {
	sheet := c.opts.Sheet
	if sheet == "" {
		sheet = c.opts.Profile.Sheet
	}
	return xlsxparser.Settings{
		Sheet:    sheet,
		SkipRows: c.opts.Profile.SkipRows,
	}
}

// csvSettings merges the profile's CSV overrides over the converter options.
func (c *Converter) csvSettings() csvparser.Settings {
	settings := csvparser.Settings{
		Encoding:  c.opts.Encoding,
		Delimiter: c.opts.Delimiter,
		SkipRows:  c.opts.Profile.SkipRows,
	}
	if c.opts.Profile.Encoding != "" {
		settings.Encoding = c.opts.Profile.Encoding
	}
	if c.opts.Profile.Delimiter != "" {
		settings.Delimiter = c.opts.Profile.Delimiter
	}
	return settings
}

// ConvertFile reads and converts one aging report file.
func (c *Converter) ConvertFile(filePath string) (*report.Result, error) {
	c.logger.Info().Str("file", filePath).Msg("Converting file")

	table, err := c.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(filePath), err)
	}

	return c.Convert(table)
}

// zipSignature starts every XLSX workbook.
var zipSignature = []byte("PK\x03\x04")

// ConvertReader converts an aging report read from a stream. Workbooks are
// recognized by their zip signature; anything else is read as CSV.
func (c *Converter) ConvertReader(r io.Reader) (*report.Result, error) {
	br := bufio.NewReader(r)

	var (
		table *report.Table
		err   error
	)
	if magic, _ := br.Peek(len(zipSignature)); bytes.Equal(magic, zipSignature) {
		table, err = xlsxparser.Parse(br, c.xlsxSettings())
	} else {
		table, err = csvparser.Parse(br, c.csvSettings())
	}
	if err != nil {
		return nil, err
	}
	return c.Convert(table)
}

// =============================================================================
// MAIN CONVERSION FUNCTION
// =============================================================================

// Convert runs the conversion pipeline on a cell grid.
//
// PARAMETERS:
//   - table: The records of the document after the profile's skipped rows.
//
// RETURNS:
//   - The Result with one record set, or bills and credits for split
//     profiles. Empty sets are reported as warnings and left out.
//   - A *validation.SchemaError if a header row lacks required columns, or
//     the joined row errors (*validation.NumericParseError,
//     *validation.ValidationError) of every bad row. No result is returned
//     with an error.
func (c *Converter) Convert(table *report.Table) (*report.Result, error) {
	startTime := time.Now()

	result := &report.Result{
		Profile: c.opts.Profile.Name,
		Split:   c.split(),
	}

	// =========================================================================
	// STEP 1: RESOLVE LAYOUT
	// =========================================================================

	layout, err := c.resolveLayout(table)
	if err != nil {
		return nil, err
	}
	if layout.detected != "" {
		result.Profile = fmt.Sprintf("%s (%s)", c.opts.Profile.Name, layout.detected)
	}

	rows := csvparser.ExtractRows(table, layout.headers, layout.start)
	result.Stats.RowsRead = len(rows)

	c.logger.Debug().
		Int("rows", len(rows)).
		Bool("select", layout.selects).
		Str("layout", layout.describe()).
		Msg("Resolved layout")

	// =========================================================================
	// STEP 2: FILTER
	// =========================================================================
	// Repeated header rows and rows without a valid Date (section headers,
	// vendor totals, report footers) are dropped silently.

	type datedRow struct {
		row  report.RawRow
		date time.Time
	}

	dated := make([]datedRow, 0, len(rows))
	for _, row := range rows {
		if isRepeatedHeader(row) {
			result.Stats.HeaderRows++
			continue
		}

		date, err := ParseDate(row.Get(report.ColDate))
		if err != nil {
			result.Stats.UndatedRows++
			continue
		}

		dated = append(dated, datedRow{row: row, date: date})
	}

	c.logger.Debug().
		Int("header_rows", result.Stats.HeaderRows).
		Int("undated_rows", result.Stats.UndatedRows).
		Int("remaining", len(dated)).
		Msg("Filtered rows")

	// =========================================================================
	// STEP 3: SELECT
	// =========================================================================

	if layout.selects {
		selected := dated[:0]
		for _, d := range dated {
			if isSelected(d.row) {
				selected = append(selected, d)
			} else {
				result.Stats.DeselectedRows++
			}
		}
		dated = selected

		c.logger.Debug().
			Int("deselected", result.Stats.DeselectedRows).
			Int("remaining", len(dated)).
			Msg("Applied selection")
	}

	// =========================================================================
	// STEP 4: NORMALIZE
	// =========================================================================
	// Every bad row is reported, not just the first one.

	records := make([]report.Record, 0, len(dated))
	var rowErrors []error

	for _, d := range dated {
		record, err := normalizeRow(d.row, d.date)
		if err != nil {
			rowErrors = append(rowErrors, err)
			continue
		}
		records = append(records, record)
	}

	if len(rowErrors) > 0 {
		c.logger.Debug().Int("errors", len(rowErrors)).Msg("Normalization failed")
		return nil, fmt.Errorf("failed to convert %d row(s): %w", len(rowErrors), errors.Join(rowErrors...))
	}

	result.Stats.RecordsProduced = len(records)

	// =========================================================================
	// STEP 5: PARTITION
	// =========================================================================

	if result.Split {
		bills, credits, zero := partition(records)
		result.Stats.ZeroAmountRows = zero

		c.addSet(result, report.SetBills, c.opts.BillsFileName, bills)
		c.addSet(result, report.SetCredits, c.opts.CreditsFileName, credits)
	} else {
		c.addSet(result, report.SetRecords, c.opts.BillsFileName, records)
	}

	result.Stats.ProcessingTime = time.Since(startTime)

	c.logger.Debug().
		Int("records", result.Stats.RecordsProduced).
		Int("zero_amount", result.Stats.ZeroAmountRows).
		Int("sets", len(result.Sets)).
		Dur("elapsed", result.Stats.ProcessingTime).
		Msg("Conversion complete")

	return result, nil
}

// addSet appends a non-empty record set, or an EmptyResult warning.
func (c *Converter) addSet(result *report.Result, name, fileName string, records []report.Record) {
	if len(records) == 0 {
		result.Warnings = append(result.Warnings, report.Warning{
			Kind:      report.EmptyResult,
			RecordSet: name,
			FileName:  fileName,
			Message:   fmt.Sprintf("no %s to import; %s not generated", name, fileName),
		})
		return
	}

	result.Sets = append(result.Sets, report.RecordSet{
		Name:     name,
		FileName: fileName,
		Records:  records,
	})
}

// =============================================================================
// LAYOUT RESOLUTION
// =============================================================================

// resolvedLayout describes how table cells map to columns.
type resolvedLayout struct {
	headers  []string
	start    int // index of the first data record
	selects  bool
	detected string // auto-detection outcome, empty for explicit layouts
}

func (l resolvedLayout) describe() string {
	if l.detected != "" {
		return l.detected
	}
	return fmt.Sprintf("%d columns", len(l.headers))
}

// resolveLayout applies the profile's layout rules to the table.
//
// LAYOUTS:
//   - fixed: the profile's column list, applied by position
//   - header: the first non-empty record is the header and is validated
//   - auto: header layout if one of the first records looks like a header
//     row, otherwise a fixed layout of 11 (with Select) or 9 columns
func (c *Converter) resolveLayout(table *report.Table) (resolvedLayout, error) {
	profile := c.opts.Profile

	switch profile.Layout {
	case config.LayoutFixed:
		return resolvedLayout{
			headers: profile.Columns,
			selects: profile.Selects(),
		}, nil

	case config.LayoutHeader:
		index := firstNonEmpty(table, 0)
		if index < 0 {
			return resolvedLayout{}, &validation.SchemaError{Missing: config.RequiredColumnsFor(profile.SelectMode)}
		}
		return headerLayout(table, index, profile.SelectMode)

	case config.LayoutAuto:
		return detectLayout(table, profile.SelectMode)

	default:
		return resolvedLayout{}, fmt.Errorf("unknown layout %q", profile.Layout)
	}
}

// headerLayout validates the header record at index and maps the columns.
func headerLayout(table *report.Table, index int, selectMode string) (resolvedLayout, error) {
	headers := csvparser.CleanHeaders(table.Records[index])

	// Bookkeepers mark rows in two unlabelled columns after the export's
	// own header labels.
	if selectMode != config.SelectNone && !csvparser.HasColumn(headers, report.ColSelect) {
		if width, ok := unlabelledSelection(table, index); ok {
			headers = append(append([]string{}, headers[:width]...), report.ColSelect, report.ColNotes)
		}
	}

	if err := validation.ValidateHeaders(headers, config.RequiredColumnsFor(selectMode)); err != nil {
		return resolvedLayout{}, err
	}

	selects := false
	switch selectMode {
	case config.SelectRequired:
		selects = true
	case config.SelectIfPresent:
		selects = csvparser.HasColumn(headers, report.ColSelect)
	}

	return resolvedLayout{
		headers: headers,
		start:   index + 1,
		selects: selects,
	}, nil
}

// unlabelledSelection reports whether the data rows below the header at
// index carry cells in the two positions after the last header label.
//
// RETURNS:
//   - The number of header cells up to the last label.
//   - true if any data row has a non-blank cell in either position.
func unlabelledSelection(table *report.Table, index int) (int, bool) {
	header := table.Records[index]

	width := len(header)
	for width > 0 && strings.TrimSpace(header[width-1]) == "" {
		width--
	}

	for _, record := range table.Records[index+1:] {
		for col := width; col < width+2 && col < len(record); col++ {
			if strings.TrimSpace(record[col]) != "" {
				return width, true
			}
		}
	}
	return width, false
}

// detectLayout looks for a header row among the first records.
func detectLayout(table *report.Table, selectMode string) (resolvedLayout, error) {
	limit := probeRows
	if table.Len() < limit {
		limit = table.Len()
	}

	wide := false
	for i := 0; i < limit; i++ {
		if looksLikeHeader(table.Records[i]) {
			layout, err := headerLayout(table, i, selectMode)
			if err != nil {
				return resolvedLayout{}, err
			}
			layout.detected = "header row"
			return layout, nil
		}
		if len(table.Records[i]) >= len(config.FixedColumns(true)) {
			wide = true
		}
	}

	if wide {
		return resolvedLayout{
			headers:  config.FixedColumns(true),
			selects:  selectMode != config.SelectNone,
			detected: "fixed 11 columns",
		}, nil
	}

	return resolvedLayout{
		headers:  config.FixedColumns(false),
		detected: "fixed 9 columns",
	}, nil
}

// looksLikeHeader reports whether a record contains the Date, Vendor and
// Open balance labels.
func looksLikeHeader(record []string) bool {
	headers := csvparser.CleanHeaders(record)
	return csvparser.HasColumn(headers, report.ColDate) &&
		csvparser.HasColumn(headers, report.ColVendor) &&
		csvparser.HasColumn(headers, report.ColOpenBalance)
}

// firstNonEmpty returns the index of the first record at or after start
// with a non-blank cell, or -1.
func firstNonEmpty(table *report.Table, start int) int {
	for i := start; i < table.Len(); i++ {
		for _, cell := range table.Records[i] {
			if strings.TrimSpace(cell) != "" {
				return i
			}
		}
	}
	return -1
}
