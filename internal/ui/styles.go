package ui

import "github.com/charmbracelet/lipgloss"

// Palette.
const (
	ColorAccent  = "39" // blue
	ColorDim     = "240"
	ColorLabel   = "245"
	ColorSuccess = "42"
	ColorWarning = "220"
	ColorError   = "196"
)

// Styles holds the lipgloss styles shared by renderers and CLI output.
type Styles struct {
	Header  lipgloss.Style
	Active  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Label   lipgloss.Style
}

// DefaultStyles returns the colored styles.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSuccess)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWarning)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDim)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLabel)),
	}
}

// NoColorStyles returns unstyled components.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:  plain,
		Active:  plain,
		Success: plain,
		Warning: plain,
		Error:   plain,
		Dim:     plain,
		Label:   plain,
	}
}

// GetStyles picks styles by color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
