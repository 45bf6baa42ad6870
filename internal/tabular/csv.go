package tabular

// csv.go handles the delimited-text half of the parser.
//
// Real-world exports are messy: UTF-8 BOMs from Excel, bare quotes inside
// unquoted fields, mixed \r\n and \n line endings, and trailing blank lines.
// encoding/csv with LazyQuotes and a variable field count absorbs most of it;
// the rest (BOM, invalid UTF-8, ragged rows) is cleaned up here.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV parses comma-separated bytes into a RawTable.
// The first non-empty record is the header row. Rows consisting entirely of
// empty fields are dropped; every remaining row is padded or truncated to the
// header's column count.
func ParseCSV(data []byte) (*RawTable, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, &ParseError{Format: FormatCSV, Err: err}
	}
	if len(records) == 0 {
		return nil, &ParseError{Format: FormatCSV, Err: errors.New("empty file")}
	}

	// Skip leading all-empty records before the header.
	start := 0
	for start < len(records) && isEmptyRow(records[start]) {
		start++
	}
	if start == len(records) {
		return nil, &ParseError{Format: FormatCSV, Err: errors.New("no header row found")}
	}

	return normalizeGrid(records[start], records[start+1:]), nil
}

// sanitizeUTF8 replaces invalid byte sequences with the Unicode replacement
// character so the rest of the pipeline can assume valid UTF-8.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
