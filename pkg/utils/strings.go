package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FormatCost formats a dollar amount with enough precision for token pricing
func FormatCost(cost float64) string {
	if cost > 0 && cost < 0.01 {
		return fmt.Sprintf("$%.6f", cost)
	}
	return fmt.Sprintf("$%.4f", cost)
}

// FormatDuration formats duration in seconds to human-readable format
func FormatDuration(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}

	minutes := int(seconds / 60)
	remainingSeconds := seconds - float64(minutes*60)

	if minutes < 60 {
		return fmt.Sprintf("%dm %.1fs", minutes, remainingSeconds)
	}

	hours := minutes / 60
	remainingMinutes := minutes % 60

	return fmt.Sprintf("%dh %dm %.1fs", hours, remainingMinutes, remainingSeconds)
}

// TruncateString truncates a string to maxLength runes with ellipsis
func TruncateString(s string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLength {
		return s
	}

	runes := []rune(s)
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	return string(runes[:maxLength-3]) + "..."
}

// SplitAndTrim splits a string and trims whitespace from each part, dropping empty parts
func SplitAndTrim(s, separator string) []string {
	parts := strings.Split(s, separator)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
