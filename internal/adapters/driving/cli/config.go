package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and change settings",
	Long: `Settings live in config.toml inside the config directory
(~/.shopbot by default). Environment variables such as SHOPBOT_LLM_API_KEY
and OPENAI_API_KEY override stored values.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file location",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting with its effective value",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the effective value of a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a setting",
	Long: `Stores a setting after checking the result is valid. When the value is
omitted it is read from stdin; on a terminal the input is hidden, which
keeps API keys out of shell history.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Remove a stored setting so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check settings and ping the configured providers",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	settings, err := openSettings()
	if err != nil {
		return err
	}
	cmd.Println(settings.Path())
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	settings, err := openSettings()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, key := range settings.Keys() {
		value, err := settings.Value(key)
		if err != nil {
			return err
		}
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "%s\t%s\n", key, value)
	}
	return w.Flush()
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	settings, err := openSettings()
	if err != nil {
		return err
	}
	value, err := settings.Value(args[0])
	if err != nil {
		return err
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	settings, err := openSettings()
	if err != nil {
		return err
	}

	value := ""
	if len(args) == 2 {
		value = args[1]
	} else {
		cmd.Printf("Value for %s: ", args[0])
		value, err = readValue(cmd.InOrStdin())
		cmd.Println()
		if err != nil {
			return err
		}
	}

	if err := settings.Set(args[0], value); err != nil {
		return err
	}
	shown, err := settings.Value(args[0])
	if err != nil {
		return err
	}
	cmd.Printf("Set %s = %s\n", args[0], shown)
	return nil
}

// readValue reads one line, hiding the input when in is a terminal.
func readValue(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		b, err := term.ReadPassword(int(f.Fd())) //nolint:gosec // fd fits in int
		if err != nil {
			return "", fmt.Errorf("reading value: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading value: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	settings, err := openSettings()
	if err != nil {
		return err
	}
	if err := settings.Unset(args[0]); err != nil {
		return err
	}
	cmd.Printf("Unset %s\n", args[0])
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	settings, err := openSettings()
	if err != nil {
		return err
	}

	if _, err := settings.Get(); err != nil {
		return fmt.Errorf("settings invalid: %w", err)
	}
	cmd.Println("Settings:  ok")

	var failed bool
	if err := settings.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("Embedding: %v\n", err)
		failed = true
	} else {
		cmd.Println("Embedding: ok")
	}
	if err := settings.ValidateLLMConfig(); err != nil {
		cmd.Printf("LLM:       %v\n", err)
		failed = true
	} else {
		cmd.Println("LLM:       ok")
	}

	if failed {
		return errors.New("provider check failed")
	}
	return nil
}
