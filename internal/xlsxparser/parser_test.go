package xlsxparser

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

// writeWorkbook saves a workbook with the given sheets to a temp dir.
func writeWorkbook(t *testing.T, sheets map[string][][]interface{}, order []string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("SetSheetName() error = %v", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("NewSheet() error = %v", err)
		}

		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName() error = %v", err)
			}
			values := row
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				t.Fatalf("SetSheetRow() error = %v", err)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "aging.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	return path
}

func TestParseFile_FirstSheetWithSkip(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"Aging": {
			{"Unpaid Bills"},
			{},
			{"Date", "Num", "Vendor"},
			{"01/05/2024", "INV-1", "Acme"},
		},
		"Other": {
			{"ignored"},
		},
	}, []string{"Aging", "Other"})

	table, err := ParseFile(path, Settings{SkipRows: 2})
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if table.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", table.Len(), table.Records)
	}
	if !reflect.DeepEqual(table.Records[0], []string{"Date", "Num", "Vendor"}) {
		t.Errorf("header row = %v", table.Records[0])
	}
	if table.Lines[0] != 3 || table.Lines[1] != 4 {
		t.Errorf("lines = %v, want [3 4]", table.Lines)
	}
	if table.Source != path {
		t.Errorf("Source = %q", table.Source)
	}
}

func TestParseFile_NamedSheet(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"Summary": {{"nothing here"}},
		"Detail":  {{"Vendor"}, {"Acme"}},
	}, []string{"Summary", "Detail"})

	table, err := ParseFile(path, Settings{Sheet: "detail"})
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if table.Len() != 2 || table.Records[1][0] != "Acme" {
		t.Errorf("records = %v", table.Records)
	}

	if _, err := ParseFile(path, Settings{Sheet: "Missing"}); err == nil {
		t.Error("expected error for unknown sheet")
	}
}

func TestParse_Reader(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"Sheet1": {{"Vendor", "Open balance"}, {"Acme", "12.50"}},
	}, []string{"Sheet1"})

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open fixture: %v", err)
	}
	defer file.Close()

	table, err := Parse(file, Settings{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if table.Records[1][1] != "12.50" {
		t.Errorf("amount cell = %q", table.Records[1][1])
	}
}

func TestParseFile_NotAWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	if err := os.WriteFile(path, []byte("not a zip"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	if _, err := ParseFile(path, Settings{}); err == nil {
		t.Error("expected error for invalid workbook")
	}
}

func TestTrimTrailingEmpty(t *testing.T) {
	got := trimTrailingEmpty([]string{"a", "", "b", " ", ""})
	if !reflect.DeepEqual(got, []string{"a", "", "b"}) {
		t.Errorf("trimTrailingEmpty() = %v", got)
	}
	if got := trimTrailingEmpty([]string{"", ""}); len(got) != 0 {
		t.Errorf("expected empty row, got %v", got)
	}
}
