package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	zwnj = '‌' // zero-width non-joiner
	zwj  = '‍' // zero-width joiner
)

// MinDedupTitleLength is the normalized length at or below which a title is
// considered too generic to use as a dedup key.
const MinDedupTitleLength = 10

// NormalizeTitle composes to NFC, lowercases, and strips every code point
// that is not a letter, digit, underscore, ZWJ, or ZWNJ — preserving the
// zero-width joiners that carry Sinhala/Tamil conjunct consonants.
// Idempotent: NormalizeTitle(x) == NormalizeTitle(NormalizeTitle(x)).
func NormalizeTitle(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == zwj || r == zwnj {
			b.WriteRune(r)
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			continue
		}
	}
	return b.String()
}

// UsableForDedup reports whether a normalized title is long enough to serve
// as a duplicate-matching key.
func UsableForDedup(normalizedTitle string) bool {
	return len([]rune(normalizedTitle)) > MinDedupTitleLength
}
