// Package tabular turns untrusted delimited-text or spreadsheet uploads into
// a uniform header-plus-grid representation. It deliberately knows nothing
// about what the columns mean; semantic interpretation happens downstream.
package tabular

import (
	"fmt"
	"strings"
)

// Format identifies the declared format of an uploaded file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// RawTable is the parsed form of one upload: a header row plus a rectangular
// grid of string cells. Every row has exactly len(Headers) cells.
// RawTables are ephemeral; they are never persisted.
type RawTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// ParseError describes a malformed or unreadable file. It aborts the import
// before any row-level validation runs.
type ParseError struct {
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse dispatches on the declared format. The sheet selector is only
// meaningful for spreadsheets; an empty selector means the first sheet.
func Parse(data []byte, format Format, sheet string) (*RawTable, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(data)
	case FormatXLSX:
		return ParseXLSX(data, sheet)
	default:
		return nil, &ParseError{Format: format, Err: fmt.Errorf("unsupported format %q", format)}
	}
}

// FormatForFilename guesses the format from a file extension.
// Unknown extensions fall back to CSV, matching historic behavior for
// text exports with odd suffixes.
func FormatForFilename(name string) Format {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xlsm") {
		return FormatXLSX
	}
	return FormatCSV
}

// normalizeGrid pads or truncates every row to the header width and drops
// rows whose cells are all empty.
func normalizeGrid(headers []string, rows [][]string) *RawTable {
	width := len(headers)
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		if len(row) > width {
			row = row[:width]
		} else if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		}
		out = append(out, row)
	}
	return &RawTable{Headers: headers, Rows: out}
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
