package portals

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeName lowercases, strips accents and punctuation, and collapses
// whitespace so "Automático" and "automatico" compare equal.
func normalizeName(s string) string {
	s = strings.ToLower(s)
	if stripped, _, err := transform.String(accentStripper, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// normalizeCompact is normalizeName without whitespace, used by portals
// whose catalogs jam words together ("NewFiesta").
func normalizeCompact(s string) string {
	return strings.ReplaceAll(normalizeName(s), " ", "")
}
