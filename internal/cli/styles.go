// Package cli provides styled terminal output for the aromance shell.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette, named after the scents it borrows from.
var (
	amber    = lipgloss.Color("#D4A373")
	lavender = lipgloss.Color("#B388EB")
	vetiver  = lipgloss.Color("#4ECDC4")
	citrus   = lipgloss.Color("#FFE66D")
	rose     = lipgloss.Color("#FF6B6B")
	mint     = lipgloss.Color("#95E1D3")
	smoke    = lipgloss.Color("#666666")
)

var (
	// SuccessStyle colours completed workflows and verified tiers.
	SuccessStyle = lipgloss.NewStyle().Foreground(vetiver)
	// WarningStyle colours warnings and review stars.
	WarningStyle = lipgloss.NewStyle().Foreground(citrus)
	// SubtleStyle dims secondary text such as ids and hints.
	SubtleStyle = lipgloss.NewStyle().Foreground(smoke)
	// BoldStyle emphasises names and totals.
	BoldStyle = lipgloss.NewStyle().Bold(true)
	// BadgeStyle renders product badges.
	BadgeStyle = lipgloss.NewStyle().Foreground(lavender)
	// TableHeaderStyle renders tabwriter header cells. It must not add
	// borders or padding, which would break column alignment.
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(amber).MarginBottom(1)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(amber)
	panelStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(0, 1)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	ScentIcon   = "🌸"
	RobotIcon   = "🤖"
	CartIcon    = "🛒"
	WalletIcon  = "👛"
)

// tone pairs a message icon with its colour.
type tone struct {
	icon  string
	style lipgloss.Style
}

func (t tone) render(message string) string {
	return t.style.Render(t.icon + " " + message)
}

var (
	successTone = tone{SuccessIcon, SuccessStyle}
	warningTone = tone{WarningIcon, WarningStyle}
	errorTone   = tone{ErrorIcon, lipgloss.NewStyle().Foreground(rose)}
	infoTone    = tone{InfoIcon, lipgloss.NewStyle().Foreground(mint)}
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string { return successTone.render(message) }

// FormatError formats an error message with icon.
func FormatError(message string) string { return errorTone.render(message) }

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string { return warningTone.render(message) }

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string { return infoTone.render(message) }

// FormatTitle formats a section title.
func FormatTitle(title string) string {
	return titleStyle.Render(ScentIcon + " " + title)
}

// FormatPrompt formats the shell prompt.
func FormatPrompt(prompt string) string {
	return promptStyle.Render(prompt + " › ")
}

// RenderBox renders content in a rounded panel under a bold title.
func RenderBox(title, content string) string {
	head := titleStyle.UnsetMargins().Render(title)
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, head, content))
}
