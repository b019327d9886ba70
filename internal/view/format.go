package view

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var idr = message.NewPrinter(language.Indonesian)

// FormatIDR formats an amount in rupiah with Indonesian digit grouping,
// e.g. "Rp 1.250.000".
func FormatIDR(amount uint64) string {
	return idr.Sprintf("Rp %d", amount)
}

// TruncateString truncates a string to the specified length with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// Percentage returns progress as a percentage.
func (p ProgressView) Percentage() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total) * 100
}

// Bar returns a text-based progress bar.
func (p ProgressView) Bar(width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(float64(width) * p.Percentage() / 100)
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
