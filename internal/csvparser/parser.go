// =============================================================================
// Aging Report Converter - CSV Parser Module
// =============================================================================
//
// This module reads the CSV export of a vendor aging report. It handles:
//   - Leading title / blank rows that precede the data
//   - Different delimiters (comma, semicolon, tab, pipe)
//   - Different encodings (UTF-8 with or without BOM, Windows-1252, ISO-8859-1)
//   - Ragged rows (section headers and totals have fewer cells)
//
// It also owns the header helpers shared with the XLSX reader: header
// canonicalization and conversion of cell rows into report.RawRow values.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/config"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/report"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// SETTINGS
// =============================================================================

// Settings contains the options for reading one CSV document.
type Settings struct {
	// Delimiter is the field separator. Accepts "," ";" "|" "\t" and the
	// names "tab", "pipe", "semicolon".
	// Default: ","
	Delimiter string

	// Encoding is one of the encodings accepted by config.NormalizeEncoding.
	// A leading byte-order mark is always honored and removed.
	// Default: "UTF-8"
	Encoding string

	// SkipRows is the number of physical lines discarded before parsing.
	// Blank lines count.
	SkipRows int
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseFile reads a CSV file and returns its cell grid.
func ParseFile(filePath string, settings Settings) (*report.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	table, err := Parse(file, settings)
	if err != nil {
		return nil, err
	}
	table.Source = filePath
	return table, nil
}

// Parse reads a CSV document and returns its cell grid.
//
// PARAMETERS:
//   - r: The document.
//   - settings: Delimiter, encoding and the number of leading lines to skip.
//
// RETURNS:
//   - The table of records with their source line numbers.
//   - An error if the document cannot be decoded or is not valid CSV.
//
// PARSING PROCESS:
//   1. Decode the byte stream to UTF-8, dropping any byte-order mark
//   2. Discard SkipRows physical lines
//   3. Read the remaining records, remembering the line each starts on
func Parse(r io.Reader, settings Settings) (*report.Table, error) {
	decoder, err := newDecoder(settings.Encoding)
	if err != nil {
		return nil, err
	}

	reader := bufio.NewReader(transform.NewReader(r, unicode.BOMOverride(decoder.NewDecoder())))

	skipped, err := skipLines(reader, settings.SkipRows)
	if err != nil {
		return nil, fmt.Errorf("failed to skip leading rows: %w", err)
	}

	csvReader := csv.NewReader(reader)
	configureReader(csvReader, settings)

	table := &report.Table{}
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		line, _ := csvReader.FieldPos(0)
		table.Records = append(table.Records, record)
		table.Lines = append(table.Lines, line+skipped)
	}

	return table, nil
}

// newDecoder returns the text encoding for an encoding name.
func newDecoder(name string) (encoding.Encoding, error) {
	canonical, err := config.NormalizeEncoding(name)
	if err != nil {
		return nil, err
	}

	switch canonical {
	case config.EncodingWindows1252:
		return charmap.Windows1252, nil
	case config.EncodingISO88591:
		return charmap.ISO8859_1, nil
	default:
		return unicode.UTF8, nil
	}
}

// skipLines discards up to n physical lines and returns how many were read.
func skipLines(reader *bufio.Reader, n int) (int, error) {
	skipped := 0
	for skipped < n {
		_, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return skipped, nil
		}
		if err != nil {
			return skipped, err
		}
		skipped++
	}
	return skipped, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings Settings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Vendor section headers and "Total for ..." lines have fewer cells
	// than the data rows.
	reader.FieldsPerRecord = -1

	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// =============================================================================
// HEADER HANDLING
// =============================================================================

// CanonicalHeader maps a header cell to its canonical column label.
// Matching ignores case and surrounding whitespace. Unknown labels are
// returned trimmed.
func CanonicalHeader(header string) string {
	header = strings.TrimSpace(header)
	for _, known := range report.KnownColumns {
		if strings.EqualFold(header, known) {
			return known
		}
	}
	return header
}

// CleanHeaders canonicalizes a header row.
//
// CLEANING OPERATIONS:
//   - Trim whitespace
//   - Map known labels to their canonical spelling
//   - Name empty headers Column_N
func CleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = CanonicalHeader(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}

	return cleaned
}

// HasColumn reports whether headers contains the column.
func HasColumn(headers []string, column string) bool {
	for _, h := range headers {
		if h == column {
			return true
		}
	}
	return false
}

// =============================================================================
// ROW EXTRACTION
// =============================================================================

// ExtractRows converts table rows into RawRow values keyed by headers.
//
// PARAMETERS:
//   - table: The source table.
//   - headers: The column label for each cell position.
//   - start: Index of the first data row in table.Records.
//
// RETURNS:
//   - One RawRow per non-empty row, in input order. Missing cells are "",
//     cells beyond the header width are ignored.
func ExtractRows(table *report.Table, headers []string, start int) []report.RawRow {
	if start >= len(table.Records) {
		return []report.RawRow{}
	}

	rows := make([]report.RawRow, 0, len(table.Records)-start)

	for i := start; i < len(table.Records); i++ {
		record := table.Records[i]

		if isRowEmpty(record) {
			continue
		}

		fields := make(map[string]string, len(headers))
		for col, header := range headers {
			if col < len(record) {
				fields[header] = strings.TrimSpace(record[col])
			} else {
				fields[header] = ""
			}
		}

		line := 0
		if i < len(table.Lines) {
			line = table.Lines[i]
		}

		rows = append(rows, report.RawRow{Line: line, Fields: fields})
	}

	return rows
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
