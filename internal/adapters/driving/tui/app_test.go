package tui

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shopbot/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/services"
)

type mockChat struct {
	reply string
	err   error
	got   []string
}

func (m *mockChat) Respond(_ context.Context, utterance string) (string, error) {
	m.got = append(m.got, utterance)
	return m.reply, m.err
}

func newTestApp(t *testing.T, chat *mockChat) *App {
	t.Helper()
	app, err := NewApp(&Ports{Chat: chat})
	require.NoError(t, err)
	app.SetDimensions(100, 30)
	return app
}

func typeLine(app *App, text string) {
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestNewApp_RequiresChat(t *testing.T) {
	_, err := NewApp(&Ports{})
	assert.ErrorIs(t, err, ErrMissingChatService)

	_, err = NewApp(nil)
	assert.ErrorIs(t, err, ErrMissingChatService)
}

func TestApp_ViewBeforeSizing(t *testing.T) {
	app, err := NewApp(&Ports{Chat: &mockChat{}})
	require.NoError(t, err)

	assert.False(t, app.Ready())
	assert.Equal(t, "Initialising...", app.View())
}

func TestApp_GreetingShown(t *testing.T) {
	app := newTestApp(t, &mockChat{})

	assert.Equal(t, []string{"Assistant: " + Greeting}, app.Transcript())
	assert.Contains(t, app.View(), "shopbot")
}

func TestApp_SubmitRunsTurn(t *testing.T) {
	chat := &mockChat{reply: "Yes, the Rain Boot is in stock."}
	app := newTestApp(t, chat)

	typeLine(app, "any rain boots?")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, app.Thinking())
	assert.Contains(t, app.Transcript(), "You: any rain boots?")

	reply := app.respond("any rain boots?")()
	app.Update(reply)

	assert.False(t, app.Thinking())
	assert.Equal(t, []string{"any rain boots?"}, chat.got)
	assert.Contains(t, app.Transcript(), "Assistant: Yes, the Rain Boot is in stock.")
}

func TestApp_FailedTurnShowsFallback(t *testing.T) {
	app := newTestApp(t, &mockChat{})

	app.Update(messages.ReplyReceived{
		Utterance: "hello",
		Err:       fmt.Errorf("generate: %w", domain.ErrTimeout),
		Elapsed:   time.Second,
	})

	assert.Contains(t, app.Transcript(), "Assistant: "+services.ReplyTimeout)
}

func TestApp_BlankLineIgnored(t *testing.T) {
	chat := &mockChat{}
	app := newTestApp(t, chat)

	typeLine(app, "   ")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.False(t, app.Thinking())
	assert.Len(t, app.Transcript(), 1)
}

func TestApp_ExitCommandQuits(t *testing.T) {
	app := newTestApp(t, &mockChat{})

	typeLine(app, "quit")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_EscQuits(t *testing.T) {
	app := newTestApp(t, &mockChat{})

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_SecondSubmitWhileThinkingIgnored(t *testing.T) {
	app := newTestApp(t, &mockChat{reply: "ok"})

	typeLine(app, "first")
	app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, app.Thinking())

	typeLine(app, "second")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.NotContains(t, app.Transcript(), "You: second")
}

func TestApp_ClearEmptiesTranscript(t *testing.T) {
	app := newTestApp(t, &mockChat{})

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlL})

	assert.Empty(t, app.Transcript())
}

func TestApp_WindowResize(t *testing.T) {
	app, err := NewApp(&Ports{Chat: &mockChat{err: errors.New("unused")}})
	require.NoError(t, err)

	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.True(t, app.Ready())
	assert.Equal(t, 120, app.viewport.Width)
	assert.Equal(t, 34, app.viewport.Height)
}

func TestIsExitCommand(t *testing.T) {
	assert.True(t, IsExitCommand("exit"))
	assert.True(t, IsExitCommand(" QUIT "))
	assert.False(t, IsExitCommand("exit please"))
	assert.False(t, IsExitCommand(""))
}
