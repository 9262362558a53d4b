// Package textutil implements the Unicode-safe text normalization, title
// normalization for deduplication, language detection, and date-extraction
// waterfall shared by every discoverer and scrape. Ported from
// original_source's news_agg/text/{normalize,dedup,language,dates}.py.
package textutil

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// mojibake holds the fixed substitution table for double-encoded UTF-8
// (text that was decoded as Latin-1 when it was really UTF-8), applied in
// order so the longer sequences are replaced before their shared prefix.
var mojibake = []struct{ bad, good string }{
	{"â€™", "'"},
	{"â€œ", "“"},
	{"â€", "”"},
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeText composes to NFC, decodes HTML entities, repairs known
// mojibake, and collapses runs of whitespace to a single ASCII space.
// Idempotent.
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	s = html.UnescapeString(s)
	for _, m := range mojibake {
		s = strings.ReplaceAll(s, m.bad, m.good)
	}
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
