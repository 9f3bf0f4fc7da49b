package extraction

import (
	"regexp"
	"strings"
	"time"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
)

var (
	documentNoPattern  = regexp.MustCompile(`(?i)FACTURE\s*n[°o]\s*([A-Za-z0-9\-_/]+)`)
	labeledDatePattern = regexp.MustCompile(`(?i)\bDate\s+(\d{1,2}/\d{1,2}/\d{4})\b`)
	anyDatePattern     = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`)
	totalRowPattern    = regexp.MustCompile(`(?i)^\s*TOTAL\b`)
	metadataDigits     = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})`)
)

// SiteRule maps a marker found on the first page to a site name.
type SiteRule struct {
	Marker *regexp.Regexp
	Site   string
}

// DefaultSiteRules recognize the AVOCARBON letterhead.
func DefaultSiteRules() []SiteRule {
	return []SiteRule{{Marker: regexp.MustCompile(`(?i)\bAVOCARBON[^\n]*`), Site: "Tunisia"}}
}

// Header is what the first page says about the whole document.
// Unresolved fields stay zero.
type Header struct {
	DeliveryNo string
	Date       time.Time
	Site       string
}

// HeaderParser reads the document header. It never fails.
type HeaderParser struct {
	sites []SiteRule
}

func NewHeaderParser(sites []SiteRule) *HeaderParser {
	return &HeaderParser{sites: sites}
}

// Parse inspects page one and falls back to document metadata for the date.
func (p *HeaderParser) Parse(doc Document) Header {
	var h Header

	pages := doc.Pages()
	if len(pages) > 0 {
		text := pages[0].Text()

		if m := documentNoPattern.FindStringSubmatch(text); m != nil {
			h.DeliveryNo = strings.TrimSpace(m[1])
		}

		m := labeledDatePattern.FindStringSubmatch(text)
		if m == nil {
			m = anyDatePattern.FindStringSubmatch(text)
		}
		if m != nil {
			h.Date = parseDayFirst(m[1])
		}

		for _, rule := range p.sites {
			if rule.Marker != nil && rule.Marker.MatchString(text) {
				h.Site = rule.Site
				break
			}
		}
	}

	if h.Date.IsZero() {
		meta := doc.Metadata()
		h.Date = parseMetadataDate(meta.CreationDate)
		if h.Date.IsZero() {
			h.Date = parseMetadataDate(meta.ModDate)
		}
	}

	return h
}

func parseDayFirst(s string) time.Time {
	t, err := time.Parse("2/1/2006", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseMetadataDate accepts PDF dates ("D:20240115103000+01'00'") and ISO dates.
func parseMetadataDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	if m := metadataDigits.FindStringSubmatch(strings.TrimPrefix(s, "D:")); m != nil {
		if t, err := time.Parse("20060102", m[1]+m[2]+m[3]); err == nil {
			return t
		}
	}

	for _, layout := range []string{time.RFC3339, delivery.DateLayout, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return delivery.Day(t)
		}
	}
	return time.Time{}
}

// isTotalRow reports whether a line or joined row is a TOTAL line.
func isTotalRow(s string) bool {
	return totalRowPattern.MatchString(s)
}
