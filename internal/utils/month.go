package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoMonthPattern = regexp.MustCompile(`^(\d{4})-(0[1-9]|1[0-2])$`)
	isoDatePattern  = regexp.MustCompile(`^(\d{4})-(0[1-9]|1[0-2])-\d{2}`)
)

// NormalizeMonth canonicalises a monitoring month. YYYY-MM is kept, values
// starting with YYYY-MM-DD are cut down to YYYY-MM and any other non-blank
// text is returned trimmed as a legacy label such as "Yanvar".
func NormalizeMonth(value interface{}) (string, bool) {
	raw, ok := value.(string)
	if !ok {
		return "", false
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	if isoMonthPattern.MatchString(trimmed) {
		return trimmed, true
	}

	if isoDatePattern.MatchString(trimmed) {
		return trimmed[:7], true
	}

	return trimmed, true
}

// MonthToDate returns the first instant of an ISO month in UTC. Legacy labels
// have no date.
func MonthToDate(month string) (time.Time, bool) {
	match := isoMonthPattern.FindStringSubmatch(month)
	if match == nil {
		return time.Time{}, false
	}

	year, _ := strconv.Atoi(match[1])
	mon, _ := strconv.Atoi(match[2])

	return time.Date(year, time.Month(mon), 1, 0, 0, 0, 0, time.UTC), true
}

// IsMonthWithinStudyYear compares months, not days: a year running from
// 2024-09-02 to 2025-05-31 accepts both 2024-09 and 2025-05. Legacy labels are
// always accepted.
func IsMonthWithinStudyYear(month string, start, end time.Time) bool {
	monthDate, ok := MonthToDate(month)
	if !ok {
		return true
	}

	return !monthDate.Before(firstOfMonth(start)) && !monthDate.After(firstOfMonth(end))
}

func firstOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
