package tabular

// xlsx.go reads workbook uploads through excelize. Only one sheet is read per
// import; cells come back as raw strings so numeric cells keep their plain
// decimal form rather than any display formatting.

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX parses a workbook into a RawTable. An empty sheet selector reads
// the first sheet. The first non-empty row of the sheet is the header.
func ParseXLSX(data []byte, sheet string) (*RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Format: FormatXLSX, Err: err}
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, &ParseError{Format: FormatXLSX, Err: errors.New("workbook has no sheets")}
		}
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ParseError{Format: FormatXLSX, Err: fmt.Errorf("sheet %q: %w", sheet, err)}
	}

	start := 0
	for start < len(rows) && isEmptyRow(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, &ParseError{Format: FormatXLSX, Err: fmt.Errorf("sheet %q has no header row", sheet)}
	}

	return normalizeGrid(rows[start], rows[start+1:]), nil
}
