// Package match implements loose compound-name matching.
//
// Matching is deliberately permissive: it is insensitive to case and to the
// separator variation common in compound names ("MK-677", "mk 677" and
// "MK677" all normalize identically), and it uses pure substring containment
// with no tokenization or edit-distance tolerance. A term can therefore match
// inside a longer unrelated token; callers accept that tradeoff.
package match

import (
	"strings"
	"unicode"
)

// Normalize lowercases text and strips whitespace, hyphens and underscores.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Mentions reports whether the normalized needle occurs anywhere in the
// normalized haystack.
func Mentions(haystack, needle string) bool {
	n := Normalize(needle)
	if n == "" {
		return false
	}
	return strings.Contains(Normalize(haystack), n)
}
