package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeMonth(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  string
		ok    bool
	}{
		{name: "iso month", input: "2024-09", want: "2024-09", ok: true},
		{name: "iso date truncated", input: " 2024-10-15 ", want: "2024-10", ok: true},
		{name: "timestamp truncated", input: "2025-01-01T00:00:00Z", want: "2025-01", ok: true},
		{name: "legacy label", input: "  Yanvar ", want: "Yanvar", ok: true},
		{name: "invalid month is legacy", input: "2024-13", want: "2024-13", ok: true},
		{name: "blank", input: "   ", ok: false},
		{name: "number", input: float64(202409), ok: false},
		{name: "nil", input: nil, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeMonth(tc.input)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMonthToDate(t *testing.T) {
	got, ok := MonthToDate("2024-02")
	require.True(t, ok)
	require.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), got)

	_, ok = MonthToDate("February")
	require.False(t, ok)
}

func TestIsMonthWithinStudyYear(t *testing.T) {
	start := time.Date(2024, time.September, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC)

	require.True(t, IsMonthWithinStudyYear("2024-09", start, end))
	require.True(t, IsMonthWithinStudyYear("2025-05", start, end))
	require.True(t, IsMonthWithinStudyYear("2025-01", start, end))
	require.False(t, IsMonthWithinStudyYear("2024-08", start, end))
	require.False(t, IsMonthWithinStudyYear("2025-06", start, end))
	require.True(t, IsMonthWithinStudyYear("Iyun", start, end))
}
