package utils

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrNotNumeric is returned when a supplied filter value cannot be read as a number.
var ErrNotNumeric = errors.New("value is not numeric")

// CoerceString trims spreadsheet cell values. Numbers are accepted because
// student IDs are frequently typed as numeric cells.
func CoerceString(value interface{}) (string, bool) {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case json.Number:
		raw = v.String()
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		raw = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		raw = strconv.Itoa(v)
	case int64:
		raw = strconv.FormatInt(v, 10)
	case uint:
		raw = strconv.FormatUint(uint64(v), 10)
	default:
		return "", false
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// CoerceNumber reads a finite number from a JSON value. Blank strings, null,
// booleans, NaN and infinities are rejected.
func CoerceNumber(value interface{}) (float64, bool) {
	var parsed float64
	switch v := value.(type) {
	case float64:
		parsed = v
	case float32:
		parsed = float64(v)
	case int:
		parsed = float64(v)
	case int64:
		parsed = float64(v)
	case uint:
		parsed = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		parsed = f
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		parsed = f
	default:
		return 0, false
	}

	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}

// CoerceID reads a non-negative whole number usable as a primary key.
func CoerceID(value interface{}) (uint, bool) {
	parsed, ok := CoerceNumber(value)
	if !ok || parsed < 0 || parsed != math.Trunc(parsed) || parsed > math.MaxUint32 {
		return 0, false
	}
	return uint(parsed), true
}

// ParseScopeID reads an optional batch filter. Null and "" mean no filter;
// anything else must be numeric.
func ParseScopeID(value interface{}) (*uint, error) {
	if value == nil {
		return nil, nil
	}
	if s, ok := value.(string); ok && s == "" {
		return nil, nil
	}

	id, ok := CoerceID(value)
	if !ok {
		return nil, ErrNotNumeric
	}
	return &id, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts RFC 3339 timestamps and plain calendar dates. Values
// without a zone are read as UTC.
func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, errors.New("date is empty")
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), nil
		}
	}

	return time.Time{}, errors.New("unrecognised date format")
}
