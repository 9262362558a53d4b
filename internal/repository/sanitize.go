package repository

import "strings"

// sanitizeUTF8 drops invalid UTF-8 byte sequences so Postgres's UTF-8
// encoding never rejects a write over a mis-decoded scrape.
func sanitizeUTF8(s string) string {
	if s == "" {
		return s
	}
	if strings.ToValidUTF8(s, "") == s {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
