package core

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid issue date")

// Accepted issue date layouts, tried in order. Slash dates are always
// day-first: invoices come from Spanish-locale documents.
var issueDateLayouts = []string{
	"2006-01-02",
	"2/1/2006",
	"2-1-2006",
	"2006/1/2",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseIssueDate normalizes an invoice issue date. Calendar dates are taken
// as-is in loc; RFC3339 timestamps are converted to loc before use.
func ParseIssueDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range issueDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// MonthKey returns the zero-padded YYYY-MM key for t.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// IssueMonth parses s and returns its month key.
func IssueMonth(s string, loc *time.Location) (string, bool) {
	t, err := ParseIssueDate(s, loc)
	if err != nil {
		return "", false
	}
	return MonthKey(t), true
}
