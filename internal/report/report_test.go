package report

import (
	"reflect"
	"testing"
)

func TestMissingColumns(t *testing.T) {
	have := []string{ColDate, ColVendor, ColNum}
	required := []string{ColVendor, ColDate, ColDueDate, ColOpenBalance, ColNum}

	got := MissingColumns(have, required)
	want := []string{ColDueDate, ColOpenBalance}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MissingColumns() = %v, want %v", got, want)
	}

	if got := MissingColumns(required, required); len(got) != 0 {
		t.Errorf("MissingColumns() = %v, want none", got)
	}
}
