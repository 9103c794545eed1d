package sources

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO date used as record identity
const DateLayout = "2006-01-02"

// rocOffset converts Gregorian years to the Republic of China calendar
const rocOffset = 1911

// ParseDate parses an ISO yyyy-MM-dd date
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// Compact formats yyyyMMdd
func Compact(t time.Time) string { return t.Format("20060102") }

// Slashed formats yyyy/MM/dd
func Slashed(t time.Time) string { return t.Format("2006/01/02") }

// ROC formats the ROC calendar date yyy/MM/dd
func ROC(t time.Time) string {
	return fmt.Sprintf("%d/%s", t.Year()-rocOffset, t.Format("01/02"))
}

// ROCMonth formats the ROC calendar month yyy/MM
func ROCMonth(t time.Time) string {
	return fmt.Sprintf("%d/%s", t.Year()-rocOffset, t.Format("01"))
}

// FromROC converts yyy/MM/dd into an ISO date
func FromROC(s string) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid ROC date %q", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid ROC year %q: %w", s, err)
	}
	t, err := time.Parse("2006/01/02", fmt.Sprintf("%04d/%s/%s", year+rocOffset, parts[1], parts[2]))
	if err != nil {
		return "", fmt.Errorf("invalid ROC date %q: %w", s, err)
	}
	return t.Format(DateLayout), nil
}

// IsWeekend reports Saturdays and Sundays
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
