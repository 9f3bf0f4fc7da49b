package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// ReadCSV decodes data to UTF-8, sniffs the delimiter and header row, and
// returns the rows below the header.
func ReadCSV(data []byte) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	text, _, err := DecodeText(data)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(text), "\n")
	dialect, err := Sniff(lines)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(strings.Join(lines[dialect.HeaderRow:], "\n")))
	r.Comma = dialect.Delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoHeadersFound
	}
	return newTable(records[0], records[1:])
}
