package utils

import "strings"

// Returns nil on an empty or all whitespace string
func StringOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
