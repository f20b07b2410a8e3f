// Package textnorm canonicalizes free text for location and feature matching.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combining diacritical marks block
func isCombiningMark(r rune) bool {
	return r >= 0x0300 && r <= 0x036F
}

// Normalize lowercases s, strips diacritics, drops everything except ASCII
// letters, digits and whitespace, and collapses whitespace runs to one space.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	// transformers carry state, so build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isCombiningMark)))
	decomposed, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		decomposed = strings.ToLower(s)
	}

	var sb strings.Builder
	sb.Grow(len(decomposed))
	pendingSpace := false
	for _, r := range decomposed {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			pendingSpace = false
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return sb.String()
}
