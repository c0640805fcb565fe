package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/prlens/internal/model"
)

// Color palette.
var (
	colorRed       = lipgloss.Color("#ff5555")
	colorGreen     = lipgloss.Color("#50fa7b")
	colorYellow    = lipgloss.Color("#f1fa8c")
	colorBlue      = lipgloss.Color("#8be9fd")
	colorPurple    = lipgloss.Color("#bd93f9")
	colorDim       = lipgloss.Color("#6272a4")
	colorBgLight   = lipgloss.Color("#343746")
	colorFg        = lipgloss.Color("#f8f8f2")
	colorOrange    = lipgloss.Color("#ffb86c")
	colorBorder    = lipgloss.Color("#44475a")
	colorHighlight = lipgloss.Color("#44475a")
)

// Style definitions.
var (
	// File list
	fileListStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	fileItemStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	fileItemSelectedStyle = lipgloss.NewStyle().
				Foreground(colorFg).
				Background(colorHighlight).
				Bold(true)

	// Issue panel
	issueViewStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	fileHeaderStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true).
			Padding(0, 0, 1, 0)

	lineNumberStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(6).
			Align(lipgloss.Right)

	issueTypeStyle = lipgloss.NewStyle().
			Foreground(colorPurple)

	suggestionStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)

	// Severity badges
	severityCriticalStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	severityHighStyle = lipgloss.NewStyle().
				Foreground(colorOrange).
				Bold(true)

	severityMediumStyle = lipgloss.NewStyle().
				Foreground(colorYellow)

	severityLowStyle = lipgloss.NewStyle().
				Foreground(colorBlue)

	// Job state
	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorPurple)

	progressStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	completedStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	failedStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	summaryHeaderStyle = lipgloss.NewStyle().
				Foreground(colorBlue).
				Bold(true).
				Padding(1, 0)

	// Status bar
	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Background(colorBgLight).
			Padding(0, 1)

	// Help
	helpBarStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)

// SeverityStyle returns the badge style for a severity.
func SeverityStyle(s model.Severity) lipgloss.Style {
	switch s {
	case model.SeverityCritical:
		return severityCriticalStyle
	case model.SeverityHigh:
		return severityHighStyle
	case model.SeverityMedium:
		return severityMediumStyle
	default:
		return severityLowStyle
	}
}
