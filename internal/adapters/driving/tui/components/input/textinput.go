// Package input is the single-line chat prompt with history recall.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/shopbot/internal/adapters/driving/tui/styles"
)

const (
	charLimit    = 1000
	historyLimit = 50
	// chrome is the width taken by the label and the field border.
	chrome   = 12
	minField = 20
)

// ChatInput is a bubbles textinput that remembers sent lines. Up and Down
// step through earlier lines; stepping past the newest restores the draft.
type ChatInput struct {
	field  textinput.Model
	styles *styles.Styles
	width  int

	history []string
	// cursor indexes history while recalling; len(history) means the draft.
	cursor int
	draft  string
}

// NewChatInput creates a focused prompt.
func NewChatInput(s *styles.Styles) *ChatInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	field := textinput.New()
	field.Placeholder = "Ask about products, prices, shipping..."
	field.CharLimit = charLimit
	field.Width = 60
	field.Focus()

	return &ChatInput{field: field, styles: s, width: 60}
}

// Init starts the cursor blinking.
func (c *ChatInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles history keys and forwards everything else to the field.
func (c *ChatInput) Update(msg tea.Msg) (*ChatInput, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.Type {
		case tea.KeyUp:
			c.recall(-1)
			return c, nil
		case tea.KeyDown:
			c.recall(1)
			return c, nil
		}
	}
	var cmd tea.Cmd
	c.field, cmd = c.field.Update(msg)
	return c, cmd
}

func (c *ChatInput) recall(step int) {
	if len(c.history) == 0 {
		return
	}
	if c.cursor == len(c.history) {
		c.draft = c.field.Value()
	}
	c.cursor = min(max(c.cursor+step, 0), len(c.history))
	if c.cursor == len(c.history) {
		c.field.SetValue(c.draft)
	} else {
		c.field.SetValue(c.history[c.cursor])
	}
	c.field.CursorEnd()
}

// Remember adds a sent line to the history. Repeats of the newest entry
// are not stored twice.
func (c *ChatInput) Remember(line string) {
	if n := len(c.history); line != "" && (n == 0 || c.history[n-1] != line) {
		c.history = append(c.history, line)
		if len(c.history) > historyLimit {
			c.history = c.history[len(c.history)-historyLimit:]
		}
	}
	c.cursor = len(c.history)
	c.draft = ""
}

// History returns the remembered lines, oldest first.
func (c *ChatInput) History() []string {
	return c.history
}

// View renders the label and the framed field.
func (c *ChatInput) View() string {
	//nolint:misspell // lipgloss spells it Center
	return lipgloss.JoinHorizontal(lipgloss.Center,
		c.styles.User.Render("You: "),
		c.styles.InputField.Render(c.field.View()),
	)
}

func (c *ChatInput) Value() string         { return c.field.Value() }
func (c *ChatInput) SetValue(value string) { c.field.SetValue(value) }
func (c *ChatInput) Reset()                { c.field.Reset() }
func (c *ChatInput) Focus() tea.Cmd        { return c.field.Focus() }
func (c *ChatInput) Blur()                 { c.field.Blur() }
func (c *ChatInput) Focused() bool         { return c.field.Focused() }
func (c *ChatInput) Width() int            { return c.width }

// SetWidth fits the field to the terminal width.
func (c *ChatInput) SetWidth(width int) {
	c.width = width
	c.field.Width = max(width-chrome, minField)
}
