package tabular

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes a workbook with the given rows on the given sheet and
// returns its bytes.
func buildWorkbook(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("SetSheetName: %v", err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return buf.Bytes()
}

func TestParseXLSX_Basic(t *testing.T) {
	data := buildWorkbook(t, "Sheet1", [][]interface{}{
		{"Description", "Qty", "Rate"},
		{"Concrete", 10, 55.5},
		{"Rebar", 200, 1.25},
	})

	table, err := ParseXLSX(data, "")
	if err != nil {
		t.Fatalf("ParseXLSX() error = %v", err)
	}
	if len(table.Headers) != 3 || table.Headers[0] != "Description" {
		t.Fatalf("Headers = %v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2", len(table.Rows))
	}
	if table.Rows[0][1] != "10" {
		t.Errorf("Rows[0][1] = %q, want %q", table.Rows[0][1], "10")
	}
	if table.Rows[1][2] != "1.25" {
		t.Errorf("Rows[1][2] = %q, want %q", table.Rows[1][2], "1.25")
	}
}

func TestParseXLSX_NamedSheet(t *testing.T) {
	data := buildWorkbook(t, "Estimate", [][]interface{}{
		{"Description", "Qty"},
		{"Concrete", 10},
	})

	table, err := ParseXLSX(data, "Estimate")
	if err != nil {
		t.Fatalf("ParseXLSX() error = %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("Rows = %d, want 1", len(table.Rows))
	}
}

func TestParseXLSX_MissingSheet(t *testing.T) {
	data := buildWorkbook(t, "Sheet1", [][]interface{}{
		{"Description"},
		{"Concrete"},
	})

	_, err := ParseXLSX(data, "DoesNotExist")
	if err == nil {
		t.Fatal("ParseXLSX() expected error for missing sheet")
	}
}

func TestParseXLSX_SkipsLeadingEmptyRows(t *testing.T) {
	data := buildWorkbook(t, "Sheet1", [][]interface{}{
		{"", ""},
		{"Description", "Qty"},
		{"Concrete", 10},
	})

	table, err := ParseXLSX(data, "")
	if err != nil {
		t.Fatalf("ParseXLSX() error = %v", err)
	}
	if table.Headers[0] != "Description" {
		t.Errorf("Headers[0] = %q, want %q", table.Headers[0], "Description")
	}
	if len(table.Rows) != 1 {
		t.Fatalf("Rows = %d, want 1", len(table.Rows))
	}
}

func TestParseXLSX_NotAWorkbook(t *testing.T) {
	_, err := ParseXLSX([]byte("plain text, not a zip"), "")
	if err == nil {
		t.Fatal("ParseXLSX() expected error for non-workbook bytes")
	}
}
