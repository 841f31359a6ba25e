// Package ui renders assistant output for the terminal: search results,
// answers, task lists, and briefings, with color when stdout is a TTY.
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette. Single violet accent; everything else stays neutral.
const (
	colorAccent    = "135" // paths, headers
	colorAccentDim = "97"  // section breadcrumbs
	colorGray      = "245" // scores, metadata
	colorDarkGray  = "238" // separators
	colorGreen     = "114" // done tasks, success
	colorYellow    = "220" // warnings, priorities
	colorRed       = "196" // errors, overdue
)

// Styles holds the render styles.
type Styles struct {
	Header  lipgloss.Style
	Path    lipgloss.Style
	Section lipgloss.Style
	Score   lipgloss.Style
	Dim     lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// DefaultStyles returns the colored style set.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Path:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		Section: lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccentDim)),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorDarkGray)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
	}
}

// PlainStyles returns an unstyled set for pipes and dumb terminals.
func PlainStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Path:    lipgloss.NewStyle(),
		Section: lipgloss.NewStyle(),
		Score:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
	}
}

// StylesFor picks styles based on whether w is a terminal. NO_COLOR is
// honored regardless.
func StylesFor(w io.Writer) Styles {
	if os.Getenv("NO_COLOR") != "" {
		return PlainStyles()
	}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return DefaultStyles()
	}
	return PlainStyles()
}
