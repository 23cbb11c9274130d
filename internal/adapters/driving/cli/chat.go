package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/shopbot/internal/adapters/driving/tui"
	"github.com/custodia-labs/shopbot/internal/core/ports/driving"
	"github.com/custodia-labs/shopbot/internal/core/services"
	"github.com/custodia-labs/shopbot/internal/logger"
)

var chatPlain bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the shop assistant",
	Long: `Start an interactive chat with the shop assistant.

On a terminal this opens a full-screen chat view. When input is piped, each
line is answered in turn and replies are printed one per line. Type 'exit'
or 'quit' to leave.

Controls:
  Enter     - Send
  PgUp/PgDn - Scroll the conversation
  Ctrl+L    - Clear
  Esc       - Quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "use the line-based REPL even on a terminal")
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck // best effort on exit

	if !chatPlain && isTerminal(os.Stdin) {
		return runChatTUI(cmd.Context(), svc.Chat)
	}
	return runREPL(cmd.Context(), svc.Chat, cmd.InOrStdin(), cmd.OutOrStdout())
}

func runChatTUI(ctx context.Context, chat driving.ChatService) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("TUI panic: %v", r)
		}
	}()

	app, err := tui.NewApp(&tui.Ports{Chat: chat})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(ctx)

	// Logs would corrupt the alternate screen.
	logger.SetOutput(io.Discard)
	defer logger.SetOutput(os.Stderr)

	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runREPL answers one line at a time until EOF or an exit command. A
// failed turn prints the fallback reply and the session continues.
func runREPL(ctx context.Context, chat driving.ChatService, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if tui.IsExitCommand(line) {
			return nil
		}

		fmt.Fprintln(out, answer(ctx, chat, line))

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return scanner.Err()
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck // best effort on exit

	cmd.Println(answer(cmd.Context(), svc.Chat, strings.Join(args, " ")))
	return nil
}

// answer runs one turn and substitutes the fallback reply on failure.
func answer(ctx context.Context, chat driving.ChatService, utterance string) string {
	reply, err := chat.Respond(ctx, utterance)
	if err != nil {
		logger.Error("chat turn failed: %v", err)
		return services.FallbackReply(err)
	}
	return reply
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}
