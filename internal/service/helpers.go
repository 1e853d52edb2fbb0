package service

import (
	"errors"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

// cleanText strips markup from names that end up inside bot HTML messages.
func cleanText(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(strings.TrimSpace(value))))
}

func mapNotFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// flagEnabled reads an opt-out flag: only an explicit false turns it off.
func flagEnabled(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "false", "0", "no", "off":
			return false
		}
	}
	return true
}

// parseLooseBool accepts booleans and the usual form values ("true", "1", "yes", "on").
func parseLooseBool(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true
		}
	}
	return false
}

func uniqueUints(values []uint) []uint {
	seen := make(map[uint]struct{}, len(values))
	result := make([]uint, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
