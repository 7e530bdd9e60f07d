package utils

import (
	"strings"
	"unicode"
)

// NormalizeUsername is the canonical form usernames are compared in.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// SanitizeString strips control characters, keeping newlines and tabs,
// and trims surrounding whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// TruncateString cuts s to maxLen bytes, marking the cut with "...".
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// LogSnippet prepares an untrusted payload for a log field.
func LogSnippet(s string, maxLen int) string {
	return TruncateString(SanitizeString(s), maxLen)
}
