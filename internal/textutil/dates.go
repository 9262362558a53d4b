package textutil

import (
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ColomboLocation is the fixed UTC+05:30 offset applied to any parsed
// timestamp that arrives without its own timezone information.
var ColomboLocation = time.FixedZone("Asia/Colombo", 5*3600+30*60)

const minValidYear = 2006
const clockSkewTolerance = 48 * time.Hour

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

func lookupMonth(name string) (time.Month, bool) {
	m, ok := monthNames[strings.ToLower(name)]
	return m, ok
}

// metaLayouts are tried in this exact order, matching spec.md 4.4.1.
var metaLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

var (
	reMonthDYTime = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|Sept|Oct|Nov|Dec|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep)\.?\s+(\d{1,2}),?\s+(\d{4})\s+(\d{1,2}):(\d{2})\s*([AaPp][Mm])`)
	reMonthDY     = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|Sept|Oct|Nov|Dec|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep)\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
	reISODate     = regexp.MustCompile(`\b(\d{4})[-./](\d{1,2})[-./](\d{1,2})\b`)
	reDMonthYTime = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(January|February|March|April|May|June|July|August|September|Sept|Oct|Nov|Dec|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep)\.?\s+(\d{4})\s+(\d{1,2}):(\d{2})\s*([AaPp][Mm])`)
	reDMonthY     = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(January|February|March|April|May|June|July|August|September|Sept|Oct|Nov|Dec|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep)\.?\s+(\d{4})\b`)
	reDMY         = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
	reURLDate     = regexp.MustCompile(`/(\d{4})/(\d{1,2})/(\d{1,2})/`)
)

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func buildTime(year, month, day, hour, minute int, ampm string) time.Time {
	if ampm != "" {
		switch strings.ToLower(ampm) {
		case "pm":
			if hour != 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, ColomboLocation)
}

// parseMetaDate attempts the strict-format parses in spec.md order.
func parseMetaDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range metaLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if !strings.Contains(layout, "Z07:00") {
				t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), ColomboLocation)
			}
			return t, true
		}
	}
	if t, err := mail.ParseDate(s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// parseTextWaterfall runs the six-pattern regex cascade shared by selector
// text and body text extraction.
func parseTextWaterfall(s string) (time.Time, bool) {
	if m := reMonthDYTime.FindStringSubmatch(s); m != nil {
		if mo, ok := lookupMonth(m[1]); ok {
			return buildTime(atoi(m[3]), int(mo), atoi(m[2]), atoi(m[4]), atoi(m[5]), m[6]), true
		}
	}
	if m := reMonthDY.FindStringSubmatch(s); m != nil {
		if mo, ok := lookupMonth(m[1]); ok {
			return buildTime(atoi(m[3]), int(mo), atoi(m[2]), 0, 0, ""), true
		}
	}
	if m := reISODate.FindStringSubmatch(s); m != nil {
		return buildTime(atoi(m[1]), atoi(m[2]), atoi(m[3]), 0, 0, ""), true
	}
	if m := reDMonthYTime.FindStringSubmatch(s); m != nil {
		if mo, ok := lookupMonth(m[2]); ok {
			return buildTime(atoi(m[3]), int(mo), atoi(m[1]), atoi(m[4]), atoi(m[5]), m[6]), true
		}
	}
	if m := reDMonthY.FindStringSubmatch(s); m != nil {
		if mo, ok := lookupMonth(m[2]); ok {
			return buildTime(atoi(m[3]), int(mo), atoi(m[1]), 0, 0, ""), true
		}
	}
	if m := reDMY.FindStringSubmatch(s); m != nil {
		return buildTime(atoi(m[3]), atoi(m[2]), atoi(m[1]), 0, 0, ""), true
	}
	return time.Time{}, false
}

// extractDateFromURL finds a /YYYY/MM/DD/ path segment.
func extractDateFromURL(u string) (time.Time, bool) {
	m := reURLDate.FindStringSubmatch(u)
	if m == nil {
		return time.Time{}, false
	}
	return buildTime(atoi(m[1]), atoi(m[2]), atoi(m[3]), 0, 0, ""), true
}

// isValidDate enforces spec.md's year >= 2006 and <= now+2days window.
func isValidDate(t time.Time, now time.Time) bool {
	if t.Year() < minValidYear {
		return false
	}
	return !t.After(now.Add(clockSkewTolerance))
}

// ExtractDateWaterfall runs the five-tier cascade of spec.md §4.4 and
// returns the first valid timestamp, or false if none validated.
func ExtractDateWaterfall(metaDate, selectorText, url, bodyText, feedHintDate string, now time.Time) (time.Time, bool) {
	if t, ok := parseMetaDate(metaDate); ok && isValidDate(t, now) {
		return t, true
	}
	if t, ok := parseTextWaterfall(selectorText); ok && isValidDate(t, now) {
		return t, true
	}
	if t, ok := extractDateFromURL(url); ok && isValidDate(t, now) {
		return t, true
	}
	body := bodyText
	if len(body) > 3000 {
		body = body[:3000]
	}
	if t, ok := parseTextWaterfall(body); ok && isValidDate(t, now) {
		return t, true
	}
	if t, err := mail.ParseDate(strings.TrimSpace(feedHintDate)); err == nil && isValidDate(t, now) {
		return t, true
	}
	return time.Time{}, false
}
