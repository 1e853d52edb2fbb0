package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFirstNumber(t *testing.T) {
	value, ok := ParseFirstNumber("10-B")
	require.True(t, ok)
	require.Equal(t, 10, value)

	value, ok = ParseFirstNumber("Grade 7 (2)")
	require.True(t, ok)
	require.Equal(t, 7, value)

	_, ok = ParseFirstNumber("Preparatory")
	require.False(t, ok)
}

func TestIncrementFirstNumberInText(t *testing.T) {
	cases := map[string]string{
		"5-A":         "6-A",
		"9":           "10",
		"Class 3 (B)": "Class 4 (B)",
		"07-sinf":     "8-sinf",
		"1-2":         "2-2",
	}

	for input, want := range cases {
		got, ok := IncrementFirstNumberInText(input)
		require.True(t, ok, input)
		require.Equal(t, want, got, input)
	}

	got, ok := IncrementFirstNumberInText("Kindergarten")
	require.False(t, ok)
	require.Equal(t, "Kindergarten", got)
}
