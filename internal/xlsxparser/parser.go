// =============================================================================
// Aging Report Converter - XLSX Parser
// =============================================================================
//
// This module reads vendor aging reports that were exported as Excel
// workbooks instead of CSV. The worksheet is turned into the same cell grid
// the CSV parser produces, so the converter does not care where a table
// came from.
//
// SHEET SELECTION:
//   - The sheet named in the profile (or by --sheet) when given
//   - Otherwise the first sheet of the workbook
//
// Cell values are read as displayed. Dates therefore arrive in the
// workbook's number format (for example "01/05/2024" or "1-5-24") and
// amounts may carry thousands separators, both of which the converter
// already understands.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"strings"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/report"
	"github.com/xuri/excelize/v2"
)

// Settings contains the options for reading one workbook.
type Settings struct {
	// Sheet is the worksheet to read. Empty means the first sheet.
	Sheet string

	// SkipRows is the number of leading worksheet rows discarded before
	// parsing. Empty rows count.
	SkipRows int
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseFile reads one worksheet of an XLSX file.
//
// PARAMETERS:
//   - filePath: The path to the workbook.
//   - settings: Sheet name and number of leading rows to skip.
//
// RETURNS:
//   - The table of rows with their 1-based worksheet row numbers.
//   - An error if the workbook cannot be opened or the sheet does not exist.
func ParseFile(filePath string, settings Settings) (*report.Table, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	table, err := parseSheet(f, settings)
	if err != nil {
		return nil, err
	}
	table.Source = filePath
	return table, nil
}

// Parse reads one worksheet of an XLSX document.
func Parse(r io.Reader, settings Settings) (*report.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return parseSheet(f, settings)
}

// parseSheet reads the selected sheet from an open workbook.
func parseSheet(f *excelize.File, settings Settings) (*report.Table, error) {
	sheetName, err := resolveSheet(f, settings.Sheet)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet %q: %w", sheetName, err)
	}

	table := &report.Table{
		Records: [][]string{},
		Lines:   []int{},
	}

	for i := settings.SkipRows; i < len(rows); i++ {
		table.Records = append(table.Records, trimTrailingEmpty(rows[i]))
		table.Lines = append(table.Lines, i+1)
	}

	return table, nil
}

// resolveSheet returns the sheet to read.
func resolveSheet(f *excelize.File, requested string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}

	if requested == "" {
		return sheets[0], nil
	}

	for _, name := range sheets {
		if strings.EqualFold(name, requested) {
			return name, nil
		}
	}

	return "", fmt.Errorf("sheet %q not found (available: %s)", requested, strings.Join(sheets, ", "))
}

// trimTrailingEmpty drops empty cells at the end of a row.
func trimTrailingEmpty(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}
