package tabular

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

// sampleSize bounds how much of a file the charset detector reads.
const sampleSize = 200 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText returns data as UTF-8 along with the detected charset name.
// Valid UTF-8 is returned unchanged (minus any BOM); anything else is
// decoded with the charset chardet reports, falling back to windows-1252.
func DecodeText(data []byte) ([]byte, string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return data[len(utf8BOM):], "utf-8", nil
	}
	if utf8.Valid(data) {
		return data, "utf-8", nil
	}

	sample := data
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	charset := "windows-1252"
	if res, err := chardet.NewTextDetector().DetectBest(sample); err == nil && res.Charset != "" {
		charset = strings.ToLower(res.Charset)
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		charset = "windows-1252"
		if enc, err = htmlindex.Get(charset); err != nil {
			return nil, "", fmt.Errorf("failed to load decoder: %w", err)
		}
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode %s text: %w", charset, err)
	}
	return out, charset, nil
}
