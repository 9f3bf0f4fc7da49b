package extraction

import (
	"strings"
	"sync"
	"unicode"

	"github.com/cloudflare/ahocorasick"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Default header vocabularies for invoice tables.
var (
	DefaultReferenceHeaders = []string{"REFERENCE ARTICLE", "REFERENCE", "REF"}
	DefaultQuantityHeaders  = []string{"QUANTITE", "QTE", "QTY"}
)

// Loose column hints applied to the first table row when the vocabulary finds nothing.
var (
	looseReferenceHints = []string{"ref"}
	looseReferenceVeto  = []string{"prix"}
	looseQuantityHints  = []string{"quant", "qty", "qte"}
)

// Vocabulary recognizes reference and quantity column headers. Matching is a
// case and accent insensitive substring search over all terms at once.
type Vocabulary struct {
	mu        sync.Mutex // Matcher.Match is not safe for concurrent use
	reference *ahocorasick.Matcher
	quantity  *ahocorasick.Matcher
}

// NewVocabulary builds a vocabulary from header synonyms.
func NewVocabulary(referenceTerms, quantityTerms []string) *Vocabulary {
	return &Vocabulary{
		reference: buildMatcher(referenceTerms),
		quantity:  buildMatcher(quantityTerms),
	}
}

// IsReference reports whether cell looks like a reference column header.
func (v *Vocabulary) IsReference(cell string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return matches(v.reference, cell)
}

// IsQuantity reports whether cell looks like a quantity column header.
func (v *Vocabulary) IsQuantity(cell string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return matches(v.quantity, cell)
}

func buildMatcher(terms []string) *ahocorasick.Matcher {
	folded := make([]string, 0, len(terms))
	for _, t := range terms {
		if f := fold(t); f != "" {
			folded = append(folded, f)
		}
	}
	if len(folded) == 0 {
		return nil
	}
	return ahocorasick.NewStringMatcher(folded)
}

func matches(m *ahocorasick.Matcher, cell string) bool {
	if m == nil {
		return false
	}
	f := fold(cell)
	if f == "" {
		return false
	}
	return len(m.Match([]byte(f))) > 0
}

// fold upper-cases s and strips diacritics, so "Quantité" matches "QUANTITE".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.TrimSpace(out))
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
