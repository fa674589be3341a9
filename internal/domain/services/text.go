package services

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// truncate returns at most n characters of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// truncateEllipsis truncates s to n characters and appends "..." when
// anything was cut.
func truncateEllipsis(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return truncate(s, n) + "..."
}

// tail returns the last n characters of s.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// runeLen returns the number of characters in s.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// namedLogger returns a named child of logger, or a no-op logger.
func namedLogger(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(name)
}

// uniqueNames trims names and drops blanks and duplicates, keeping order.
func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	result := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		result = append(result, n)
	}
	return result
}
