package util

import (
	"fmt"
	"strings"
	"time"
)

// Date layouts observed on UTR profile pages. The history widget has shipped
// both ISO and US-style short dates over time, plus the long form used in
// tooltips.
var ratingDateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseRatingDate parses a date string as rendered in the rating history.
func ParseRatingDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range ratingDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

// MonthStart truncates t to the first day of its calendar month (UTC).
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths advances a month-start timestamp by n calendar months.
func AddMonths(t time.Time, n int) time.Time {
	return MonthStart(t).AddDate(0, n, 0)
}

// MonthsBetween returns the number of whole calendar months from a to b.
// Negative when b precedes a.
func MonthsBetween(a, b time.Time) int {
	a, b = MonthStart(a), MonthStart(b)
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
