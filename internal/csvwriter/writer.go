// =============================================================================
// Aging Report Converter - CSV Writer Module
// =============================================================================
//
// This module serializes record sets into bill-import CSV files.
//
// FILE FORMAT:
//   Vendor,BillDate,DueDate,Amount,RefNumber
//   Acme Supply,01/15/2024,02/14/2024,1234.56,INV-1001
//   Beta Parts,01/16/2024,,-25.50,CR-17
//
//   - Header row always present, columns always in this order
//   - Dates as MM/DD/YYYY, a missing due date as an empty cell
//   - Amounts as plain decimals with two fraction digits, no separators
//   - Cells are quoted only when they contain a delimiter, quote or newline
//   - UTF-8, prefixed with a byte-order mark unless disabled
//
// =============================================================================

package csvwriter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/report"
	"golang.org/x/text/encoding/unicode"
)

// Options contains options for CSV generation.
type Options struct {
	// WriteBOM prefixes the file with a UTF-8 byte-order mark.
	// Default: true (see DefaultOptions)
	WriteBOM bool
}

// DefaultOptions returns the default generation options.
func DefaultOptions() Options {
	return Options{
		WriteBOM: true,
	}
}

// =============================================================================
// CSV GENERATION FUNCTIONS
// =============================================================================

// Generate renders one record set as an import file.
//
// PARAMETERS:
//   - set: The records to write, in output order.
//   - opts: Generation options.
//
// RETURNS:
//   - The file contents. The same set always yields the same bytes.
//   - An error if the CSV encoder fails.
func Generate(set report.RecordSet, opts Options) ([]byte, error) {
	var buffer bytes.Buffer

	writer := csv.NewWriter(&buffer)

	if err := writer.Write(report.OutputColumns); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for _, record := range set.Records {
		if err := writer.Write(record.Values()); err != nil {
			return nil, fmt.Errorf("failed to write record from line %d: %w", record.SourceLine, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	if !opts.WriteBOM {
		return buffer.Bytes(), nil
	}

	data, err := unicode.UTF8BOM.NewEncoder().Bytes(buffer.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	return data, nil
}

// WriteFiles writes every record set of a result into a directory.
//
// Every file is generated and staged in a temporary file first; the staged
// files are renamed into place only when all of them were written, so a
// failure leaves no new import file behind.
//
// PARAMETERS:
//   - outputDir: The target directory. Created if missing.
//   - result: The conversion result. Empty sets were already left out.
//   - opts: Generation options.
//
// RETURNS:
//   - The paths of the written files, in result order.
//   - An error if a file cannot be generated or written.
func WriteFiles(outputDir string, result *report.Result, opts Options) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	type stagedFile struct {
		tmp  string
		path string
	}
	staged := make([]stagedFile, 0, len(result.Sets))

	discard := func(files []stagedFile) {
		for _, f := range files {
			os.Remove(f.tmp)
		}
	}

	for _, set := range result.Sets {
		data, err := Generate(set, opts)
		if err != nil {
			discard(staged)
			return nil, fmt.Errorf("failed to generate %s: %w", set.FileName, err)
		}

		tmp, err := writeTemp(outputDir, set.FileName, data)
		if err != nil {
			discard(staged)
			return nil, fmt.Errorf("failed to write %s: %w", set.FileName, err)
		}

		staged = append(staged, stagedFile{tmp: tmp, path: filepath.Join(outputDir, set.FileName)})
	}

	paths := make([]string, 0, len(staged))
	for i, f := range staged {
		if err := os.Rename(f.tmp, f.path); err != nil {
			discard(staged[i:])
			return paths, fmt.Errorf("failed to move %s into place: %w", filepath.Base(f.path), err)
		}
		paths = append(paths, f.path)
	}

	return paths, nil
}

// writeTemp writes data to a hidden temporary file next to the target.
func writeTemp(dir, name string, data []byte) (string, error) {
	file, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", err
	}

	_, err = file.Write(data)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(file.Name(), 0644)
	}
	if err != nil {
		os.Remove(file.Name())
		return "", err
	}

	return file.Name(), nil
}

// RemoveStale deletes the files of record sets that came out empty, so a
// reused output directory does not keep an import file from an earlier run.
//
// RETURNS:
//   - The paths of the removed files.
//   - An error if an existing file cannot be removed.
func RemoveStale(outputDir string, result *report.Result) ([]string, error) {
	var removed []string

	for _, warning := range result.Warnings {
		if warning.Kind != report.EmptyResult || warning.FileName == "" {
			continue
		}

		path := filepath.Join(outputDir, warning.FileName)
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = append(removed, path)
		case errors.Is(err, os.ErrNotExist):
		default:
			return removed, fmt.Errorf("failed to remove stale %s: %w", warning.FileName, err)
		}
	}

	return removed, nil
}
