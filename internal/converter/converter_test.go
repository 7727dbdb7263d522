package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/config"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/report"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/validation"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const header9 = "Date,Transaction type,Num,Vendor display name,Vendor,Due date,Past due,Amount,Open balance"

// row9 renders one 9-column aging detail line.
func row9(date, num, vendor, due, open string) string {
	return fmt.Sprintf("%s,Bill,%s,%s,%s,%s,12,%q,%q", date, num, vendor, vendor, due, open, open)
}

// row11 renders one 11-column aging detail line with Select and Notes.
func row11(date, num, vendor, due, open, sel string) string {
	return row9(date, num, vendor, due, open) + "," + sel + ",note"
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func newConverter(t *testing.T, profileName string) *Converter {
	t.Helper()

	profile, err := config.NewRegistry(nil).Get(profileName)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", profileName, err)
	}

	c, err := New(Options{Profile: profile}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func convertString(t *testing.T, c *Converter, input string) *report.Result {
	t.Helper()

	result, err := c.ConvertReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ConvertReader() error = %v", err)
	}
	return result
}

// setValues renders every record of a set in output column order.
func setValues(t *testing.T, result *report.Result, name string) [][]string {
	t.Helper()

	set, ok := result.Set(name)
	if !ok {
		t.Fatalf("record set %q not produced (warnings: %+v)", name, result.Warnings)
	}

	values := make([][]string, 0, set.Len())
	for _, r := range set.Records {
		values = append(values, r.Values())
	}
	return values
}

func checkRowCount(t *testing.T, result *report.Result) {
	t.Helper()

	s := result.Stats
	if got := s.HeaderRows + s.UndatedRows + s.DeselectedRows + s.RecordsProduced; got != s.RowsRead {
		t.Errorf("row count invariant broken: %d dropped+produced vs %d read (%+v)", got, s.RowsRead, s)
	}
}

func TestConvert_Fixed9Skip1_SingleOutput(t *testing.T) {
	input := lines(
		"Acme Corp Unpaid Bills",
		header9,
		row9("01/15/2024", "INV-1", "Acme", "02/14/2024", "1,234.56"),
		row9("01/20/2024", "CR-1", "Beta", "01/20/2024", "-50"),
		row9("01/21/2024", "ZERO", "Gamma", "02/21/2024", "0"),
	)

	result := convertString(t, newConverter(t, config.ProfileFixed9Skip1), input)

	if result.Split {
		t.Error("fixed9-skip1 must not split")
	}

	got := setValues(t, result, report.SetRecords)
	want := [][]string{
		{"Acme", "01/15/2024", "02/14/2024", "1234.56", "INV-1"},
		{"Beta", "01/20/2024", "01/20/2024", "-50.00", "CR-1"},
		{"Gamma", "01/21/2024", "02/21/2024", "0.00", "ZERO"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("records = %v, want %v", got, want)
	}

	set, _ := result.Set(report.SetRecords)
	if set.FileName != "converted_for_qb_import.csv" {
		t.Errorf("FileName = %q", set.FileName)
	}
	if result.Stats.HeaderRows != 1 {
		t.Errorf("HeaderRows = %d, want 1", result.Stats.HeaderRows)
	}
	checkRowCount(t, result)
}

func TestConvert_Fixed9Skip2_SplitsBillsAndCredits(t *testing.T) {
	input := lines(
		"Unpaid Bills Report",
		"",
		header9,
		"Acme",
		row9("01/15/2024", "INV-1", "Acme", "02/14/2024", "100.00"),
		row9("01/16/2024", "CR-9", "Acme", "", "-25.50"),
		"Total for Acme,,,,,,,,74.50",
		header9,
		row9("01/17/2024", "INV-2", "Beta", "02/16/2024", "0.00"),
		row9("01/18/2024", "INV-3", "Beta", "02/17/2024", "2,000"),
		"TOTAL,,,,,,,,\"2,074.50\"",
	)

	result := convertString(t, newConverter(t, config.ProfileFixed9Skip2), input)

	if !result.Split {
		t.Fatal("fixed9-skip2 must split")
	}

	bills := setValues(t, result, report.SetBills)
	wantBills := [][]string{
		{"Acme", "01/15/2024", "02/14/2024", "100.00", "INV-1"},
		{"Beta", "01/18/2024", "02/17/2024", "2000.00", "INV-3"},
	}
	if !reflect.DeepEqual(bills, wantBills) {
		t.Errorf("bills = %v, want %v", bills, wantBills)
	}

	credits := setValues(t, result, report.SetCredits)
	wantCredits := [][]string{
		{"Acme", "01/16/2024", "", "-25.50", "CR-9"},
	}
	if !reflect.DeepEqual(credits, wantCredits) {
		t.Errorf("credits = %v, want %v", credits, wantCredits)
	}

	s := result.Stats
	if s.HeaderRows != 2 {
		t.Errorf("HeaderRows = %d, want 2", s.HeaderRows)
	}
	if s.UndatedRows != 3 {
		t.Errorf("UndatedRows = %d, want 3", s.UndatedRows)
	}
	if s.ZeroAmountRows != 1 {
		t.Errorf("ZeroAmountRows = %d, want 1", s.ZeroAmountRows)
	}
	if len(bills)+len(credits)+s.ZeroAmountRows != s.RecordsProduced {
		t.Errorf("partition is incomplete: %d + %d + %d != %d", len(bills), len(credits), s.ZeroAmountRows, s.RecordsProduced)
	}
	checkRowCount(t, result)
}

func TestConvert_Fixed11Select(t *testing.T) {
	input := lines(
		"Unpaid Bills Report",
		"",
		header9+",Select,Notes",
		row11("01/15/2024", "INV-1", "Acme", "02/14/2024", "100", "x"),
		row11("01/16/2024", "INV-2", "Acme", "02/15/2024", "200", ""),
		row11("01/17/2024", "INV-3", "Beta", "02/16/2024", "300", " X "),
		row11("01/18/2024", "CR-1", "Beta", "02/17/2024", "-40", "x"),
		row11("01/19/2024", "INV-4", "Beta", "02/18/2024", "500", "no"),
	)

	result := convertString(t, newConverter(t, config.ProfileFixed11Select), input)

	bills := setValues(t, result, report.SetBills)
	if len(bills) != 2 || bills[0][4] != "INV-1" || bills[1][4] != "INV-3" {
		t.Errorf("bills = %v", bills)
	}

	credits := setValues(t, result, report.SetCredits)
	if len(credits) != 1 || credits[0][4] != "CR-1" {
		t.Errorf("credits = %v", credits)
	}

	if result.Stats.DeselectedRows != 2 {
		t.Errorf("DeselectedRows = %d, want 2", result.Stats.DeselectedRows)
	}
	checkRowCount(t, result)
}

func TestConvert_HeaderProfile(t *testing.T) {
	input := lines(
		"num,VENDOR, date ,Open Balance,Due Date,Memo",
		"INV-1,Acme,01/15/24,\"1,234.56\",2024-02-14,first",
		"INV-2,Beta,2024-01-16,-10,not a date,second",
	)

	result := convertString(t, newConverter(t, config.ProfileHeader), input)

	got := setValues(t, result, report.SetRecords)
	want := [][]string{
		{"Acme", "01/15/2024", "02/14/2024", "1234.56", "INV-1"},
		{"Beta", "01/16/2024", "", "-10.00", "INV-2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("records = %v, want %v", got, want)
	}
}

func TestConvert_HeaderProfile_MissingColumns(t *testing.T) {
	input := lines(
		"Date,Num,Vendor,Open balance",
		"01/15/2024,INV-1,Acme,10",
	)

	_, err := newConverter(t, config.ProfileHeader).ConvertReader(strings.NewReader(input))

	var schemaErr *validation.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected *SchemaError, got %v", err)
	}
	if !reflect.DeepEqual(schemaErr.Missing, []string{"Due date"}) {
		t.Errorf("Missing = %v, want [Due date]", schemaErr.Missing)
	}
	if !strings.Contains(err.Error(), "Due date") {
		t.Errorf("error %q does not name the missing column", err)
	}
}

func TestConvert_HeaderProfile_EmptyDocument(t *testing.T) {
	_, err := newConverter(t, config.ProfileHeader).ConvertReader(strings.NewReader(""))

	var schemaErr *validation.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected *SchemaError, got %v", err)
	}
	if len(schemaErr.Missing) != 5 {
		t.Errorf("Missing = %v", schemaErr.Missing)
	}
}

func TestConvert_Auto_DetectsHeaderRow(t *testing.T) {
	input := lines(
		"Unpaid Bills Report",
		"",
		header9+",Select,Notes",
		row11("01/15/2024", "INV-1", "Acme", "02/14/2024", "100", "x"),
		row11("01/16/2024", "INV-2", "Acme", "02/15/2024", "200", ""),
		row11("01/17/2024", "CR-1", "Acme", "02/16/2024", "-5", "x"),
	)

	result := convertString(t, newConverter(t, config.ProfileAuto), input)

	if !strings.Contains(result.Profile, "header row") {
		t.Errorf("Profile = %q", result.Profile)
	}
	if result.Stats.DeselectedRows != 1 {
		t.Errorf("DeselectedRows = %d, want 1", result.Stats.DeselectedRows)
	}
	if bills := setValues(t, result, report.SetBills); len(bills) != 1 {
		t.Errorf("bills = %v", bills)
	}
	if credits := setValues(t, result, report.SetCredits); len(credits) != 1 {
		t.Errorf("credits = %v", credits)
	}
}

func TestConvert_Auto_HeaderWithoutSelect(t *testing.T) {
	input := lines(
		header9,
		row9("01/15/2024", "INV-1", "Acme", "02/14/2024", "100"),
		row9("01/16/2024", "INV-2", "Acme", "02/15/2024", "200"),
	)

	result := convertString(t, newConverter(t, config.ProfileAuto), input)

	if result.Stats.DeselectedRows != 0 {
		t.Errorf("selection applied without a Select column")
	}
	if bills := setValues(t, result, report.SetBills); len(bills) != 2 {
		t.Errorf("bills = %v", bills)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].RecordSet != report.SetCredits {
		t.Errorf("expected one empty-credits warning, got %+v", result.Warnings)
	}
}

func TestConvert_Auto_FixedFallback(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		detected  string
		wantBills int
	}{
		{
			name: "eleven columns",
			input: lines(
				"Unpaid Bills Report",
				row11("01/15/2024", "INV-1", "Acme", "02/14/2024", "100", "x"),
				row11("01/16/2024", "INV-2", "Acme", "02/15/2024", "200", ""),
			),
			detected:  "fixed 11 columns",
			wantBills: 1,
		},
		{
			name: "nine columns",
			input: lines(
				"Unpaid Bills Report",
				row9("01/15/2024", "INV-1", "Acme", "02/14/2024", "100"),
				row9("01/16/2024", "INV-2", "Acme", "02/15/2024", "200"),
			),
			detected:  "fixed 9 columns",
			wantBills: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := convertString(t, newConverter(t, config.ProfileAuto), tt.input)

			if !strings.Contains(result.Profile, tt.detected) {
				t.Errorf("Profile = %q, want it to mention %q", result.Profile, tt.detected)
			}
			if bills := setValues(t, result, report.SetBills); len(bills) != tt.wantBills {
				t.Errorf("bills = %v, want %d", bills, tt.wantBills)
			}
			checkRowCount(t, result)
		})
	}
}

func TestConvert_BadAmountsFailWithEveryRow(t *testing.T) {
	input := lines(
		"Unpaid Bills Report",
		"",
		header9,
		row9("01/15/2024", "INV-1", "Acme", "02/14/2024", "abc"),
		row9("01/16/2024", "INV-2", "Acme", "02/15/2024", "100"),
		row9("01/17/2024", "INV-3", "Acme", "02/16/2024", ""),
	)

	result, err := newConverter(t, config.ProfileFixed9Skip2).ConvertReader(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected an error")
	}
	if result != nil {
		t.Error("no result may be returned with an error")
	}

	errs := validation.Unjoin(errors.Unwrap(err))
	if len(errs) != 2 {
		t.Fatalf("expected 2 row errors, got %d: %v", len(errs), err)
	}

	var numErr *validation.NumericParseError
	if !errors.As(errs[0], &numErr) {
		t.Fatalf("expected *NumericParseError, got %v", errs[0])
	}
	if numErr.Line != 4 || numErr.Value != "abc" || numErr.Column != report.ColOpenBalance {
		t.Errorf("unexpected error fields: %+v", numErr)
	}
	if !errors.As(errs[1], &numErr) || numErr.Line != 6 {
		t.Errorf("second error = %v", errs[1])
	}
}

func TestConvert_EmptyVendorFails(t *testing.T) {
	input := lines(
		header9,
		row9("01/15/2024", "INV-1", "", "02/14/2024", "10"),
	)

	_, err := newConverter(t, config.ProfileHeader).ConvertReader(strings.NewReader(input))

	var valErr *validation.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if valErr.Field != report.OutVendor || valErr.Line != 2 {
		t.Errorf("unexpected error fields: %+v", valErr)
	}
}

func TestConvert_SubCentAmountFails(t *testing.T) {
	input := lines(
		header9,
		row9("01/15/2024", "INV-1", "Acme", "02/14/2024", "1.005"),
	)

	_, err := newConverter(t, config.ProfileHeader).ConvertReader(strings.NewReader(input))

	var numErr *validation.NumericParseError
	if !errors.As(err, &numErr) {
		t.Fatalf("expected *NumericParseError, got %v", err)
	}
	if numErr.Value != "1.005" || numErr.Line != 2 {
		t.Errorf("unexpected error fields: %+v", numErr)
	}
}

func TestConvert_HeaderWithUnlabelledSelectColumns(t *testing.T) {
	// The export's 9 labels, then the bookkeeper's mark and note in two
	// unlabelled columns.
	input := lines(
		"Unpaid Bills Report",
		"",
		header9+",,",
		row11("01/15/2024", "B1", "Acme", "02/14/2024", "100", "x"),
		row11("01/16/2024", "B2", "Beta", "02/15/2024", "200", ""),
		row11("01/17/2024", "C1", "Acme", "02/16/2024", "-30", ""),
	)

	tests := []struct {
		profile string
		want    string
	}{
		{config.ProfileAuto, "auto (header row)"},
		{config.ProfileFixed11Select, config.ProfileFixed11Select},
	}

	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			result := convertString(t, newConverter(t, tt.profile), input)

			if result.Profile != tt.want {
				t.Errorf("Profile = %q, want %q", result.Profile, tt.want)
			}

			want := [][]string{{"Acme", "01/15/2024", "02/14/2024", "100.00", "B1"}}
			if got := setValues(t, result, report.SetBills); !reflect.DeepEqual(got, want) {
				t.Errorf("bills = %v, want %v", got, want)
			}
			if _, ok := result.Set(report.SetCredits); ok {
				t.Error("unmarked credit must not be imported")
			}
			if result.Stats.DeselectedRows != 2 {
				t.Errorf("DeselectedRows = %d, want 2", result.Stats.DeselectedRows)
			}
		})
	}
}

func TestConvert_HeaderWithBlankTrailingColumnsKeepsEveryRow(t *testing.T) {
	input := lines(
		header9+",,",
		row9("01/15/2024", "B1", "Acme", "02/14/2024", "100")+",,",
		row9("01/16/2024", "B2", "Beta", "02/15/2024", "200")+",,",
	)

	result := convertString(t, newConverter(t, config.ProfileAuto), input)

	if got := setValues(t, result, report.SetBills); len(got) != 2 {
		t.Errorf("bills = %v, want both rows", got)
	}
	if result.Stats.DeselectedRows != 0 {
		t.Errorf("DeselectedRows = %d, want 0", result.Stats.DeselectedRows)
	}
}

func TestConvert_NoRecordsWarnsForEverySet(t *testing.T) {
	input := lines(
		"Unpaid Bills Report",
		"",
		header9,
		"TOTAL,,,,,,,,0.00",
	)

	result := convertString(t, newConverter(t, config.ProfileFixed9Skip2), input)

	if len(result.Sets) != 0 {
		t.Errorf("expected no record sets, got %d", len(result.Sets))
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %+v", result.Warnings)
	}
	for _, w := range result.Warnings {
		if w.Kind != report.EmptyResult {
			t.Errorf("warning kind = %q", w.Kind)
		}
	}
}

func TestConvert_SplitOverride(t *testing.T) {
	profile, _ := config.NewRegistry(nil).Get(config.ProfileFixed9Skip2)
	noSplit := false

	c, err := New(Options{Profile: profile, Split: &noSplit, BillsFileName: "all.csv"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	input := lines(
		"title",
		"",
		row9("01/15/2024", "INV-1", "Acme", "02/14/2024", "10"),
		row9("01/16/2024", "CR-1", "Acme", "02/15/2024", "-10"),
	)

	result := convertString(t, c, input)

	set, ok := result.Set(report.SetRecords)
	if !ok || set.Len() != 2 || set.FileName != "all.csv" {
		t.Errorf("unexpected sets: %+v", result.Sets)
	}
}

func TestConvert_Idempotent(t *testing.T) {
	input := lines(
		"Unpaid Bills Report",
		"",
		header9,
		row9("01/15/2024", "INV-1", "Acme", "02/14/2024", "1,234.56"),
		row9("01/16/2024", "CR-1", "Beta", "02/15/2024", "-7.1"),
	)

	c := newConverter(t, config.ProfileFixed9Skip2)
	first := convertString(t, c, input)
	second := convertString(t, c, input)

	for _, name := range []string{report.SetBills, report.SetCredits} {
		if !reflect.DeepEqual(setValues(t, first, name), setValues(t, second, name)) {
			t.Errorf("%s differ between runs", name)
		}
	}
}

func TestNew_RequiresProfile(t *testing.T) {
	if _, err := New(Options{}, zerolog.Nop()); err == nil {
		t.Error("expected error without a profile")
	}

	bad := &config.Profile{Name: "bad", Layout: "sideways", SelectMode: config.SelectNone}
	if _, err := New(Options{Profile: bad}, zerolog.Nop()); err == nil {
		t.Error("expected error for an invalid profile")
	}
}

func TestConvertFile_CSVAndXLSX(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "aging.csv")
	csvInput := lines(
		"Unpaid Bills Report",
		"",
		header9,
		row9("01/15/2024", "INV-1", "Acme", "02/14/2024", "100"),
	)
	if err := os.WriteFile(csvPath, []byte(csvInput), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	xlsxPath := filepath.Join(dir, "aging.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Unpaid Bills Report"},
		{},
		{"Date", "Transaction type", "Num", "Vendor display name", "Vendor", "Due date", "Past due", "Amount", "Open balance"},
		{"01/15/2024", "Bill", "INV-1", "Acme", "Acme", "02/14/2024", "12", "100", "100"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	if err := f.SaveAs(xlsxPath); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	f.Close()

	c := newConverter(t, config.ProfileFixed9Skip2)
	want := [][]string{{"Acme", "01/15/2024", "02/14/2024", "100.00", "INV-1"}}

	for _, path := range []string{csvPath, xlsxPath} {
		result, err := c.ConvertFile(path)
		if err != nil {
			t.Fatalf("ConvertFile(%s) error = %v", filepath.Base(path), err)
		}
		if got := setValues(t, result, report.SetBills); !reflect.DeepEqual(got, want) {
			t.Errorf("%s: bills = %v, want %v", filepath.Base(path), got, want)
		}
	}

	// A workbook piped through a reader is recognized without a file name.
	data, err := os.ReadFile(xlsxPath)
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}
	result, err := c.ConvertReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ConvertReader(xlsx) error = %v", err)
	}
	if got := setValues(t, result, report.SetBills); !reflect.DeepEqual(got, want) {
		t.Errorf("xlsx stream: bills = %v, want %v", got, want)
	}

	if _, err := c.ConvertFile(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1,234.56", "1234.56", false},
		{"-50", "-50", false},
		{" 12.5 ", "12.5", false},
		{"(1,000.00)", "-1000", false},
		{"0", "0", false},
		{"abc", "", true},
		{"", "", true},
		{"  ", "", true},
		{"1.2300", "1.23", false},
		{"1.005", "", true},
		{"(0.001)", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAmount(%q) expected error, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) error = %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	valid := []string{
		"01/15/2024",
		"1/15/2024",
		"01/15/24",
		"2024-01-15",
		"2024/01/15",
		"01-15-2024",
		"01-15-24",
		"Jan 15, 2024",
		"January 15, 2024",
		"15 Jan 2024",
	}

	for _, input := range valid {
		t.Run(input, func(t *testing.T) {
			got, err := ParseDate(input)
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", input, err)
			}
			if !got.Equal(want) {
				t.Errorf("ParseDate(%q) = %v, want %v", input, got, want)
			}
			if FormatDate(got) != "01/15/2024" {
				t.Errorf("FormatDate() = %q", FormatDate(got))
			}
		})
	}

	withTime, err := ParseDate("2024-01-15 13:45:00")
	if err != nil || FormatDate(withTime) != "01/15/2024" {
		t.Errorf("date-time input: %v, %v", withTime, err)
	}

	for _, input := range []string{"", "Date", "Total for Acme", "13/45/2024", "2024-13-01"} {
		if _, err := ParseDate(input); err == nil {
			t.Errorf("ParseDate(%q) expected error", input)
		}
	}

	if FormatDate(time.Time{}) != "" {
		t.Error("zero date must format as empty")
	}
}
