// Package tabular reads delivery and EDI forecast spreadsheets (CSV and XLSX)
// into header-bound records.
package tabular

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file is empty")
	ErrNoHeadersFound    = errors.New("could not find data headers")
	ErrInvalidDelimiter  = errors.New("could not detect valid delimiter")
	ErrNoData            = errors.New("file has no data rows")
)

// Table is a header row followed by data rows. Headers are canonical column
// names (see CanonicalHeader).
type Table struct {
	Headers []string
	Rows    [][]string
}

// Read dispatches on the file extension.
func Read(filename string, data []byte) (*Table, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		return ReadCSV(data)
	case ".xlsx":
		return ReadExcel(data)
	case ".xls":
		return nil, fmt.Errorf("%w: legacy .xls workbooks must be saved as .xlsx", ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

var headerAliases = map[string]string{
	"material":     "avomaterialno",
	"materialcode": "avomaterialno",
	"materialno":   "avomaterialno",
	"qty":          "quantity",
	"quantite":     "quantity",
}

// CanonicalHeader lower-cases name and drops everything but letters and
// digits, so "Delivery No" and "DeliveryNo" bind to the same column.
func CanonicalHeader(name string) string {
	name = strings.TrimPrefix(name, "\uFEFF")
	canon := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, name)
	if alias, ok := headerAliases[canon]; ok {
		return alias
	}
	return canon
}

func newTable(header []string, rows [][]string) (*Table, error) {
	t := &Table{Headers: make([]string, len(header))}
	for i, h := range header {
		t.Headers[i] = CanonicalHeader(h)
	}
	for _, row := range rows {
		if blank(row) {
			continue
		}
		// pad short rows so every record lines up with the header
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		}
		t.Rows = append(t.Rows, row)
	}
	if len(t.Rows) == 0 {
		return nil, ErrNoData
	}
	return t, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
