package utils

import (
	"regexp"
	"strconv"
)

var firstNumberPattern = regexp.MustCompile(`\d+`)

// ParseFirstNumber returns the first run of digits in text, so "10-B" yields 10.
func ParseFirstNumber(text string) (int, bool) {
	digits := firstNumberPattern.FindString(text)
	if digits == "" {
		return 0, false
	}

	value, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}

	return value, true
}

// IncrementFirstNumberInText bumps the first number in text by one and keeps
// everything around it: "5-A" becomes "6-A". Text without digits is not changed.
func IncrementFirstNumberInText(text string) (string, bool) {
	loc := firstNumberPattern.FindStringIndex(text)
	if loc == nil {
		return text, false
	}

	value, err := strconv.Atoi(text[loc[0]:loc[1]])
	if err != nil {
		return text, false
	}

	return text[:loc[0]] + strconv.Itoa(value+1) + text[loc[1]:], true
}
