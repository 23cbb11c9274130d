package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/shopbot/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/shopbot/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/shopbot/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/shopbot/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/shopbot/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/shopbot/internal/core/services"
)

// Greeting opens every session.
const Greeting = "Hi! Ask me about our products, prices, stock or store policies."

// speaker identifies who said a transcript line.
type speaker int

const (
	speakerUser speaker = iota
	speakerAssistant
	speakerNotice
)

type line struct {
	who  speaker
	text string
}

// App is the chat TUI following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	input     *input.ChatInput
	statusBar *status.Bar
	viewport  viewport.Model
	spinner   spinner.Model

	transcript []line
	thinking   bool

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new chat application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:      ports,
		ctx:        context.Background(),
		styles:     s,
		keymap:     km,
		input:      input.NewChatInput(s),
		statusBar:  status.NewBar(s, km),
		viewport:   viewport.New(80, 20),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		transcript: []line{{who: speakerAssistant, text: Greeting}},
	}, nil
}

// WithContext sets the context chat turns run under.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("shopbot"),
		a.input.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.ReplyReceived:
		a.thinking = false
		if msg.Failed() {
			a.statusBar.Fail(msg.Err.Error())
			a.append(speakerNotice, services.FallbackReply(msg.Err))
		} else {
			a.statusBar.Done(msg.Elapsed)
			a.append(speakerAssistant, msg.Reply)
		}
		return a, a.input.Focus()

	case spinner.TickMsg:
		if !a.thinking {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case messages.Quit:
		return a, tea.Quit
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch {
	case keymap.Matches(key, a.keymap.Quit):
		return a, tea.Quit

	case keymap.Matches(key, a.keymap.ScrollUp), keymap.Matches(key, a.keymap.ScrollDown):
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd

	case keymap.Matches(key, a.keymap.Clear):
		a.transcript = nil
		a.statusBar.Clear()
		a.refresh()
		return a, nil

	case keymap.Matches(key, a.keymap.Send):
		return a.submit()
	}

	if a.thinking {
		return a, nil
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit sends the current line unless a turn is already running.
func (a *App) submit() (tea.Model, tea.Cmd) {
	if a.thinking {
		return a, nil
	}
	utterance := strings.TrimSpace(a.input.Value())
	if utterance == "" {
		return a, nil
	}
	if IsExitCommand(utterance) {
		return a, tea.Quit
	}

	a.input.Remember(utterance)
	a.input.Reset()
	a.input.Blur()
	a.append(speakerUser, utterance)
	a.thinking = true
	a.statusBar.Begin()

	return a, tea.Batch(a.spinner.Tick, a.respond(utterance))
}

// respond runs one chat turn off the UI goroutine.
func (a *App) respond(utterance string) tea.Cmd {
	ctx := a.ctx
	chat := a.ports.Chat
	return func() tea.Msg {
		start := time.Now()
		reply, err := chat.Respond(ctx, utterance)
		return messages.ReplyReceived{
			Utterance: utterance,
			Reply:     reply,
			Err:       err,
			Elapsed:   time.Since(start),
		}
	}
}

func (a *App) append(who speaker, text string) {
	a.transcript = append(a.transcript, line{who: who, text: text})
	a.refresh()
}

// refresh re-renders the transcript into the viewport and scrolls to the end.
func (a *App) refresh() {
	a.viewport.SetContent(a.renderTranscript())
	a.viewport.GotoBottom()
}

func (a *App) renderTranscript() string {
	wrap := a.styles.Reply.Width(max(a.viewport.Width-2, 20))
	parts := make([]string, 0, len(a.transcript))
	for _, l := range a.transcript {
		var label string
		switch l.who {
		case speakerUser:
			label = a.styles.User.Render("You")
		case speakerAssistant:
			label = a.styles.Assistant.Render("Assistant")
		case speakerNotice:
			label = a.styles.Warning.Render("Assistant")
		}
		parts = append(parts, label+"\n"+wrap.Render(l.text))
	}
	return strings.Join(parts, "\n\n")
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	title := a.styles.Title.Render("shopbot")
	prompt := a.input.View()
	if a.thinking {
		prompt = a.spinner.View() + " " + a.styles.Muted.Render("Thinking...")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		a.viewport.View(),
		prompt,
		a.statusBar.View(),
	)
}

// SetDimensions sizes every component to the terminal.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true

	// Title, input box (3 lines) and status bar.
	a.viewport.Width = width
	a.viewport.Height = max(height-6, 3)
	a.input.SetWidth(width)
	a.statusBar.SetWidth(width)
	a.refresh()
}

// Thinking reports whether a turn is running.
func (a *App) Thinking() bool {
	return a.thinking
}

// Transcript returns the conversation as plain "You: ..." and
// "Assistant: ..." lines.
func (a *App) Transcript() []string {
	out := make([]string, len(a.transcript))
	for i, l := range a.transcript {
		name := "Assistant"
		if l.who == speakerUser {
			name = "You"
		}
		out[i] = name + ": " + l.text
	}
	return out
}

// Ready returns whether the app has been sized.
func (a *App) Ready() bool {
	return a.ready
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// IsExitCommand reports whether the line ends a chat session.
func IsExitCommand(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exit", "quit":
		return true
	}
	return false
}
