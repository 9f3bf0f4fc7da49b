package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/normalizer"
)

// Candidate is a row an extractor accepted: a material code and its quantity.
type Candidate struct {
	MaterialCode string
	Quantity     int64
}

// Extractor pulls candidate rows out of a single page.
type Extractor interface {
	Name() string
	Extract(page Page) []Candidate
}

var materialPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-_/]*[A-Za-z0-9]$`)

// headerScanRows is how many leading table rows may hold the column headers.
const headerScanRows = 3

// ============================================================================
// Table strategy
// ============================================================================

// TableExtractor reads invoice tables, locating the reference and quantity
// columns from their headers.
type TableExtractor struct {
	vocab *Vocabulary
	refs  *normalizer.ReferenceNormalizer
}

func NewTableExtractor(vocab *Vocabulary, refs *normalizer.ReferenceNormalizer) *TableExtractor {
	return &TableExtractor{vocab: vocab, refs: refs}
}

func (e *TableExtractor) Name() string { return "table" }

func (e *TableExtractor) Extract(page Page) []Candidate {
	var out []Candidate
	for _, tbl := range page.Tables() {
		out = append(out, e.extractTable(tbl)...)
	}
	return out
}

func (e *TableExtractor) extractTable(tbl [][]string) []Candidate {
	if len(tbl) < 2 {
		return nil
	}

	refIdx, qtyIdx := e.locateColumns(tbl)
	if refIdx < 0 || qtyIdx < 0 {
		return nil
	}

	var out []Candidate
	for _, row := range tbl[1:] {
		if len(row) == 0 || isTotalRow(joinCells(row)) {
			continue
		}

		rawRef := cellAt(row, refIdx)
		ref := e.refs.Normalize(rawRef, cellAt(row, refIdx+1))
		rawQty := cellAt(row, qtyIdx)
		if ref == "" || rawQty == "" || !materialPattern.MatchString(ref) {
			continue
		}

		qty, ok := normalizer.PlainQuantity(rawQty)
		if !ok {
			continue
		}
		out = append(out, Candidate{MaterialCode: ref, Quantity: qty})
	}
	return out
}

// locateColumns returns the reference and quantity column indexes, -1 when unknown.
func (e *TableExtractor) locateColumns(tbl [][]string) (int, int) {
	refIdx, qtyIdx := -1, -1

	for _, row := range tbl[:min(headerScanRows, len(tbl))] {
		for i, c := range row {
			if refIdx < 0 && e.vocab.IsReference(c) {
				refIdx = i
			}
			if qtyIdx < 0 && e.vocab.IsQuantity(c) {
				qtyIdx = i
			}
		}
		if refIdx >= 0 && qtyIdx >= 0 {
			return refIdx, qtyIdx
		}
	}

	for i, c := range tbl[0] {
		low := strings.ToLower(c)
		if refIdx < 0 && containsAny(low, looseReferenceHints) && !containsAny(low, looseReferenceVeto) {
			refIdx = i
		}
		if qtyIdx < 0 && containsAny(low, looseQuantityHints) {
			qtyIdx = i
		}
	}
	return refIdx, qtyIdx
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func joinCells(row []string) string {
	parts := make([]string, 0, len(row))
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}

// ============================================================================
// Line strategy
// ============================================================================

// LineExtractor matches the fixed positional layout of invoice lines:
// customs code, OUI/NON, reference, optional suffix, designation, quantity,
// then two to four decimal columns.
type LineExtractor struct {
	pattern *regexp.Regexp
	refs    *normalizer.ReferenceNormalizer
}

func NewLineExtractor(suffixTokens []string, refs *normalizer.ReferenceNormalizer) *LineExtractor {
	return &LineExtractor{pattern: linePattern(suffixTokens), refs: refs}
}

func linePattern(suffixTokens []string) *regexp.Regexp {
	quoted := make([]string, 0, len(suffixTokens))
	for _, t := range suffixTokens {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	suffix := `()`
	if len(quoted) > 0 {
		suffix = fmt.Sprintf(`(?:\s+(%s))?`, strings.Join(quoted, "|"))
	}
	return regexp.MustCompile(`(?i)^\s*\d{8}\s+(?:OUI|NON)\s+([A-Z0-9][A-Z0-9.\-]+)` + suffix +
		`\s+.+?\s+(\d{1,9})\s+(?:\d+[.,]\d+\s+){2,4}\S+`)
}

func (e *LineExtractor) Name() string { return "line" }

func (e *LineExtractor) Extract(page Page) []Candidate {
	var out []Candidate
	for _, line := range strings.Split(page.Text(), "\n") {
		if isTotalRow(line) {
			continue
		}
		m := e.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		ref := strings.TrimSpace(m[1])
		if sfx := strings.ToUpper(strings.TrimSpace(m[2])); sfx != "" && e.refs.IsSuffix(sfx) {
			ref += sfx
		}
		qty, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Candidate{MaterialCode: ref, Quantity: qty})
	}
	return out
}
