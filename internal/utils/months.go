package utils

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

// MonthYearLayout is the MM/YYYY format the Transparency Portal uses
const MonthYearLayout = "01/2006"

var trailingYear = regexp.MustCompile(`_\d{4}$`)

// ParseMonthYear parses an MM/YYYY value
func ParseMonthYear(s string) (time.Time, error) {
	t, err := time.Parse(MonthYearLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, want MM/YYYY", s)
	}
	return t, nil
}

// ExpandMonths returns every month from start to end inclusive
func ExpandMonths(start, end string) ([]time.Time, error) {
	first, err := ParseMonthYear(start)
	if err != nil {
		return nil, err
	}

	last, err := ParseMonthYear(end)
	if err != nil {
		return nil, err
	}

	if last.Before(first) {
		return nil, fmt.Errorf("month range %s..%s ends before it starts", start, end)
	}

	var months []time.Time
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
	}

	return months, nil
}

// FormatMonthYear renders a month as MM/YYYY
func FormatMonthYear(t time.Time) string {
	return t.Format(MonthYearLayout)
}

// MonthlyFilename derives the per-month file name:
// federal_transfers_2013.json -> federal_transfers_2013_05.json for May 2013.
// A trailing _YYYY on the stem is dropped first.
func MonthlyFilename(filename string, month time.Time) string {
	ext := path.Ext(filename)
	stem := trailingYear.ReplaceAllString(strings.TrimSuffix(filename, ext), "")
	if ext == "" {
		ext = ".json"
	}

	return fmt.Sprintf("%s_%s%s", stem, month.Format("2006_01"), ext)
}
