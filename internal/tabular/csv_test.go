package tabular

import (
	"errors"
	"testing"
)

func TestParseCSV_Basic(t *testing.T) {
	data := []byte("Description,Qty,Rate\nConcrete,10,55.50\nRebar,200,1.25\n")

	table, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}

	wantHeaders := []string{"Description", "Qty", "Rate"}
	if len(table.Headers) != len(wantHeaders) {
		t.Fatalf("Headers = %v, want %v", table.Headers, wantHeaders)
	}
	for i, h := range wantHeaders {
		if table.Headers[i] != h {
			t.Errorf("Headers[%d] = %q, want %q", i, table.Headers[i], h)
		}
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2", len(table.Rows))
	}
	if table.Rows[1][2] != "1.25" {
		t.Errorf("Rows[1][2] = %q, want %q", table.Rows[1][2], "1.25")
	}
}

func TestParseCSV_BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Description,Qty\nConcrete,10\n")...)

	table, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if table.Headers[0] != "Description" {
		t.Errorf("Headers[0] = %q, want %q (BOM should be stripped)", table.Headers[0], "Description")
	}
}

func TestParseCSV_CRLF(t *testing.T) {
	data := []byte("Description,Qty\r\nConcrete,10\r\nRebar,200\r\n")

	table, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2", len(table.Rows))
	}
	if table.Rows[0][1] != "10" {
		t.Errorf("Rows[0][1] = %q, want %q", table.Rows[0][1], "10")
	}
}

func TestParseCSV_QuotedFields(t *testing.T) {
	data := []byte("Description,Notes\n\"Concrete, C30\",\"say \"\"ready mix\"\"\"\n")

	table, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if table.Rows[0][0] != "Concrete, C30" {
		t.Errorf("Rows[0][0] = %q, want %q", table.Rows[0][0], "Concrete, C30")
	}
	if table.Rows[0][1] != `say "ready mix"` {
		t.Errorf("Rows[0][1] = %q, want %q", table.Rows[0][1], `say "ready mix"`)
	}
}

func TestParseCSV_PadAndTruncate(t *testing.T) {
	data := []byte("A,B,C\nshort\nfull,row,here,extra,cells\n")

	table, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2", len(table.Rows))
	}
	for i, row := range table.Rows {
		if len(row) != 3 {
			t.Errorf("Rows[%d] has %d cells, want 3", i, len(row))
		}
	}
	if table.Rows[0][1] != "" {
		t.Errorf("short row should be padded with empty cells, got %q", table.Rows[0][1])
	}
	if table.Rows[1][2] != "here" {
		t.Errorf("long row should be truncated, Rows[1][2] = %q", table.Rows[1][2])
	}
}

func TestParseCSV_SkipsBlankRows(t *testing.T) {
	data := []byte("\nDescription,Qty\nConcrete,10\n,,\n\nRebar,200\n")

	table, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if table.Headers[0] != "Description" {
		t.Errorf("Headers[0] = %q, leading blank line should be skipped", table.Headers[0])
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2 (blank rows dropped)", len(table.Rows))
	}
}

func TestParseCSV_Empty(t *testing.T) {
	for _, data := range [][]byte{nil, []byte(""), []byte("\n\n,,\n")} {
		_, err := ParseCSV(data)
		if err == nil {
			t.Errorf("ParseCSV(%q) expected error", data)
			continue
		}
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("ParseCSV(%q) error = %T, want *ParseError", data, err)
		}
	}
}

func TestParseCSV_InvalidUTF8(t *testing.T) {
	data := []byte("Description,Qty\nConc\xffrete,10\n")

	table, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("Rows = %d, want 1", len(table.Rows))
	}
	// The invalid byte is replaced, not dropped
	if table.Rows[0][0] == "Concrete" {
		t.Error("invalid byte should be replaced with U+FFFD, not removed")
	}
}

func TestFormatForFilename(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"estimate.csv", FormatCSV},
		{"estimate.CSV", FormatCSV},
		{"estimate.xlsx", FormatXLSX},
		{"Estimate.XLSX", FormatXLSX},
		{"estimate.xlsm", FormatXLSX},
		{"estimate.txt", FormatCSV},
		{"noextension", FormatCSV},
	}

	for _, tt := range tests {
		if got := FormatForFilename(tt.name); got != tt.want {
			t.Errorf("FormatForFilename(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte("a,b\n1,2\n"), Format("ods"), "")
	if err == nil {
		t.Fatal("Parse() expected error for unsupported format")
	}
}
