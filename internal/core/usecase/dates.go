package usecase

import (
	"regexp"
	"strings"
	"time"
)

// Numeric dates are read day-first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2.1.2006",
	"2006.1.2",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2 2006",
	"January 2 2006",
}

var dateSeparators = strings.NewReplacer("/", ".", "-", ".")

// parseDate accepts ISO dates, numeric dates with . / or - separators and
// dates with English month names.
func parseDate(raw string) (time.Time, bool) {
	s := collapseSpaces(strings.ReplaceAll(strings.TrimSpace(raw), ",", " "))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts[:4] {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	numeric := dateSeparators.Replace(s)
	for _, layout := range dateLayouts[4:] {
		candidate := s
		if strings.Contains(layout, ".") {
			candidate = numeric
		}
		if t, err := time.Parse(layout, candidate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeDate returns raw as YYYY-MM-DD, or raw unchanged when it cannot
// be parsed.
func normalizeDate(raw string) (string, bool) {
	t, ok := parseDate(raw)
	if !ok {
		return raw, false
	}
	return t.Format("2006-01-02"), true
}

var contentDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{1,2}[./-]\d{1,2}[./-]\d{4})\b`),
	regexp.MustCompile(`\b(\d{4}[./-]\d{1,2}[./-]\d{1,2})\b`),
	regexp.MustCompile(`(?i)\b(\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4})\b`),
}

// extractDate returns the most recent plausible date found in content.
func extractDate(content string, now time.Time) (string, bool) {
	var latest time.Time
	for _, pattern := range contentDatePatterns {
		for _, match := range pattern.FindAllStringSubmatch(content, -1) {
			t, ok := parseDate(match[1])
			if !ok {
				continue
			}
			if t.Year() < 1990 || t.Year() > now.Year()+1 {
				continue
			}
			if t.After(latest) {
				latest = t
			}
		}
	}
	if latest.IsZero() {
		return "", false
	}
	return latest.Format("2006-01-02"), true
}
