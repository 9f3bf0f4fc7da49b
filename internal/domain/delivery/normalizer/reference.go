package normalizer

import "strings"

// DefaultSuffixTokens are the material type suffixes used by AVO references.
var DefaultSuffixTokens = []string{"PL", "SP"}

// ReferenceNormalizer merges a material code with its type suffix token.
// The token set is configuration, so one normalizer is built per glossary.
type ReferenceNormalizer struct {
	suffixes map[string]struct{}
}

// NewReferenceNormalizer builds a normalizer for the given suffix tokens.
// Tokens are matched case-insensitively; an empty set disables suffix merging.
func NewReferenceNormalizer(tokens []string) *ReferenceNormalizer {
	n := &ReferenceNormalizer{suffixes: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			n.suffixes[t] = struct{}{}
		}
	}
	return n
}

// IsSuffix reports whether tok is a known suffix token.
func (n *ReferenceNormalizer) IsSuffix(tok string) bool {
	_, ok := n.suffixes[strings.ToUpper(strings.TrimSpace(tok))]
	return ok
}

// Normalize returns the canonical material code for primary.
//
// The first token of primary is the base code. A suffix is taken from the
// second token of primary, or failing that from the first token of hint
// (usually the adjacent table cell). "V504.243 PL" and ("V504.243", "PL x")
// both give "V504.243PL".
func (n *ReferenceNormalizer) Normalize(primary, hint string) string {
	parts := strings.Fields(primary)
	if len(parts) == 0 {
		return ""
	}

	code := parts[0]
	if len(parts) >= 2 && n.IsSuffix(parts[1]) {
		return code + strings.ToUpper(parts[1])
	}

	if next := strings.Fields(hint); len(next) > 0 && n.IsSuffix(next[0]) {
		return code + strings.ToUpper(next[0])
	}
	return code
}
