// Package styles holds the chat view's palette and lipgloss styles.
package styles

import "github.com/charmbracelet/lipgloss"

// Theme is the chat view's colour palette.
type Theme struct {
	// Primary marks the assistant and titles.
	Primary lipgloss.Color
	// Secondary marks the user.
	Secondary lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Border    lipgloss.Color
	// Bar is the status bar background.
	Bar lipgloss.Color
}

// DefaultTheme is an orange-on-dark palette.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:   lipgloss.Color("#F97316"),
		Secondary: lipgloss.Color("#06B6D4"),
		Text:      lipgloss.Color("#CDD6F4"),
		Muted:     lipgloss.Color("#6C7086"),
		Warning:   lipgloss.Color("#F9E2AF"),
		Error:     lipgloss.Color("#F38BA8"),
		Border:    lipgloss.Color("#45475A"),
		Bar:       lipgloss.Color("#181825"),
	}
}

// Styles are the rendered styles used by the chat view.
type Styles struct {
	theme *Theme

	Title   lipgloss.Style
	Normal  lipgloss.Style
	Muted   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	// InputField frames the message box.
	InputField lipgloss.Style
	StatusBar  lipgloss.Style

	// User and Assistant label transcript lines.
	User      lipgloss.Style
	Assistant lipgloss.Style
	// Reply indents the body of an assistant answer.
	Reply lipgloss.Style
}

// NewStyles builds styles from theme, falling back to DefaultTheme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return &Styles{
		theme:   theme,
		Title:   fg(theme.Primary).Bold(true),
		Normal:  fg(theme.Text),
		Muted:   fg(theme.Muted),
		Warning: fg(theme.Warning),
		Error:   fg(theme.Error),

		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
		StatusBar: fg(theme.Muted).Background(theme.Bar).Padding(0, 1),

		User:      fg(theme.Secondary).Bold(true),
		Assistant: fg(theme.Primary).Bold(true),
		Reply:     fg(theme.Text).PaddingLeft(2),
	}
}

// DefaultStyles returns NewStyles(DefaultTheme()).
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the palette the styles were built from.
func (s *Styles) Theme() *Theme {
	return s.theme
}
