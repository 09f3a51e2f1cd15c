// Package textnorm canonicalises item titles so that trivially different
// spellings ("N95  Masks", "n95 masks ") compare and embed identically.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Title applies NFKC normalisation, lower-cases, strips control characters
// and collapses runs of whitespace to a single space.
func Title(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Titles normalises a slice of titles into a new slice.
func Titles(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Title(s)
	}
	return out
}

// Equal reports whether two titles are the same after normalisation.
func Equal(a, b string) bool {
	return Title(a) == Title(b)
}
