// Package normalizer coerces loosely formatted spreadsheet and document values
// into canonical delivery fields. None of the functions here fail: bad input
// degrades to a zero value.
package normalizer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	plainNumberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	separatorReplacer  = strings.NewReplacer(",", "", " ", "", "\u00a0", "")
)

// Quantity converts an arbitrary scalar into a signed integer quantity.
//
// Absent values, empty text, "nan" and "none" yield 0. Text is stripped of
// thousands separators and (non-breaking) spaces; a plain integer or decimal
// is then parsed and truncated toward zero. Numeric floats and decimals round
// half away from zero instead. Anything else keeps only its digits and minus
// signs, and yields 0 when that is not a number.
func Quantity(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return 0
		}
		return int64(n)
	case float32:
		return roundFloat(float64(n))
	case float64:
		return roundFloat(n)
	case decimal.Decimal:
		return n.Round(0).IntPart()
	case *string:
		if n == nil {
			return 0
		}
		return QuantityText(*n)
	case string:
		return QuantityText(n)
	case fmt.Stringer:
		return QuantityText(n.String())
	default:
		return QuantityText(fmt.Sprint(n))
	}
}

// QuantityText is Quantity for values already known to be text.
func QuantityText(s string) int64 {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "none":
		return 0
	}

	s = separatorReplacer.Replace(s)
	if plainNumberPattern.MatchString(s) {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0
		}
		return d.Truncate(0).IntPart()
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '-' {
			return r
		}
		return -1
	}, s)
	if digits == "" || digits == "-" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// PlainQuantity parses a document cell that must be a bare number once
// separators are removed. It reports false for anything else, which lets
// extractors reject rows instead of recording a zero.
func PlainQuantity(cell string) (int64, bool) {
	s := separatorReplacer.Replace(strings.TrimSpace(cell))
	if !plainNumberPattern.MatchString(s) {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.Truncate(0).IntPart(), true
}

func roundFloat(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	r := math.Round(f)
	if r > math.MaxInt64 || r < math.MinInt64 {
		return 0
	}
	return int64(r)
}
