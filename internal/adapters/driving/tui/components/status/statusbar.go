// Package status renders the one-line bar under the chat input.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/shopbot/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/shopbot/internal/adapters/driving/tui/styles"
)

// State is the phase of the current turn.
type State string

const (
	StateReady    State = "ready"
	StateThinking State = "thinking"
	StateError    State = "error"
)

// Bar shows the turn state on the left and key hints on the right.
type Bar struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	width  int

	state   State
	message string
	turns   int
	elapsed time.Duration
}

// NewBar creates a bar; nil arguments select the defaults.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{styles: s, keymap: km, width: 80, state: StateReady}
}

// Begin marks a turn in progress.
func (s *Bar) Begin() {
	s.state = StateThinking
	s.message = ""
}

// Done records a successful turn and how long it took.
func (s *Bar) Done(elapsed time.Duration) {
	s.state = StateReady
	s.turns++
	s.elapsed = elapsed
}

// Fail records a failed turn. message is shown until the next turn.
func (s *Bar) Fail(message string) {
	s.state = StateError
	s.message = message
	s.turns++
}

// Clear forgets all turns.
func (s *Bar) Clear() {
	*s = Bar{styles: s.styles, keymap: s.keymap, width: s.width, state: StateReady}
}

func (s *Bar) State() State    { return s.state }
func (s *Bar) Message() string { return s.message }
func (s *Bar) Turns() int      { return s.turns }
func (s *Bar) Width() int      { return s.width }

// SetWidth sets the rendered width in cells.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// View renders the bar padded to its width.
func (s *Bar) View() string {
	left, right := s.summary(), s.hints()
	gap := max(s.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return s.styles.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (s *Bar) summary() string {
	switch s.state {
	case StateThinking:
		return s.styles.Muted.Render("Thinking...")
	case StateError:
		if s.message == "" {
			return s.styles.Error.Render("Error")
		}
		return s.styles.Error.Render("Error: " + s.message)
	}
	if s.turns == 0 {
		return s.styles.Muted.Render("Ready")
	}
	return s.styles.Normal.Render(fmt.Sprintf("%d turns, last %s", s.turns, s.elapsed.Round(10*time.Millisecond)))
}

func (s *Bar) hints() string {
	var parts []string
	for _, b := range s.keymap.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return s.styles.Muted.Render(strings.Join(parts, " | "))
}
