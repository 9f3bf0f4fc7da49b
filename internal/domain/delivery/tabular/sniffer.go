package tabular

import (
	"strings"
)

// headerKeywords are column names that mark a delivery or forecast header row.
var headerKeywords = []string{
	"site", "avomaterialno", "material", "deliveryno", "delivery", "quantity", "qty",
	"status", "date", "clientcode", "clientmaterialno", "datefrom", "dateuntil",
	"forecast", "edistatus", "productname",
}

// Dialect is the detected layout of a delimited text file.
type Dialect struct {
	Delimiter rune
	HeaderRow int
}

// Sniff finds the header row and its delimiter among the first lines.
// Lines naming known columns win over the line with the most delimiters.
func Sniff(lines []string) (Dialect, error) {
	if len(lines) == 0 {
		return Dialect{}, ErrEmptyFile
	}

	fallbackIndex := -1
	fallbackDelimiter := rune(0)
	fallbackCount := 0

	keywordIndex := -1
	keywordDelimiter := rune(0)
	keywordScore := 0

	sawText := false
	for i, line := range lines {
		if i > 20 {
			break
		}

		line = cleanLine(line, i == 0)
		if line == "" {
			continue
		}
		sawText = true

		delimiter, count := detectDelimiter(line)
		if count < 1 {
			continue
		}

		matches := 0
		for _, cell := range strings.Split(line, string(delimiter)) {
			canon := CanonicalHeader(strings.Trim(cell, `" `))
			for _, kw := range headerKeywords {
				if canon == kw {
					matches++
					break
				}
			}
		}

		if matches > 0 {
			score := count*10 + matches
			if keywordIndex == -1 || score > keywordScore {
				keywordScore = score
				keywordDelimiter = delimiter
				keywordIndex = i
			}
		} else if count > fallbackCount {
			fallbackCount = count
			fallbackDelimiter = delimiter
			fallbackIndex = i
		}
	}

	if !sawText {
		return Dialect{}, ErrEmptyFile
	}
	if keywordIndex >= 0 {
		return Dialect{Delimiter: keywordDelimiter, HeaderRow: keywordIndex}, nil
	}
	if fallbackIndex >= 0 {
		return Dialect{Delimiter: fallbackDelimiter, HeaderRow: fallbackIndex}, nil
	}
	return Dialect{}, ErrInvalidDelimiter
}

func cleanLine(line string, firstLine bool) string {
	line = strings.TrimRight(line, "\r")
	if firstLine {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return strings.TrimSpace(line)
}

func detectDelimiter(line string) (rune, int) {
	delimiters := []rune{';', '\t', ',', '|'}
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}
