package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

func TestConfigPath(t *testing.T) {
	newTestEnv(t)

	out, err := run(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/shopbot/config.toml\n", out)
}

func TestConfigList(t *testing.T) {
	newTestEnv(t)

	out, err := run(t, "config", "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"llm.provider", "openai"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"llm.api_key", "sk-****"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"store.dsn", "-"}, strings.Fields(lines[2]))
}

func TestConfigGet(t *testing.T) {
	newTestEnv(t)

	out, err := run(t, "config", "get", "llm.provider")
	require.NoError(t, err)
	assert.Equal(t, "openai\n", out)

	_, err = run(t, "config", "get", "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestConfigSet(t *testing.T) {
	t.Run("value from args", func(t *testing.T) {
		env := newTestEnv(t)

		out, err := run(t, "config", "set", "llm.provider", "anthropic")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", env.settings.values["llm.provider"])
		assert.Contains(t, out, "Set llm.provider = anthropic")
	})

	t.Run("value from stdin", func(t *testing.T) {
		env := newTestEnv(t)

		out, err := runInput(t, "  sk-secret \n", "config", "set", "llm.api_key")
		require.NoError(t, err)
		assert.Equal(t, "sk-secret", env.settings.values["llm.api_key"])
		assert.Contains(t, out, "Value for llm.api_key:")
	})

	t.Run("rejected value", func(t *testing.T) {
		env := newTestEnv(t)
		env.settings.rejectValue = "bogus"

		_, err := run(t, "config", "set", "llm.provider", "bogus")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		assert.Equal(t, "openai", env.settings.values["llm.provider"])
	})
}

func TestReadValue_EOFWithoutNewline(t *testing.T) {
	value, err := readValue(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", value)
}

func TestConfigUnset(t *testing.T) {
	env := newTestEnv(t)

	out, err := run(t, "config", "unset", "llm.provider")
	require.NoError(t, err)
	assert.Contains(t, out, "Unset llm.provider")
	assert.NotContains(t, env.settings.values, "llm.provider")
}

func TestConfigValidate(t *testing.T) {
	t.Run("all ok", func(t *testing.T) {
		newTestEnv(t)

		out, err := run(t, "config", "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "Embedding: ok")
		assert.Contains(t, out, "LLM:       ok")
	})

	t.Run("provider failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.settings.llmErr = domain.ErrLLMUnavailable

		out, err := run(t, "config", "validate")
		assert.Error(t, err)
		assert.Contains(t, out, "Embedding: ok")
		assert.Contains(t, out, "LLM:       "+domain.ErrLLMUnavailable.Error())
	})

	t.Run("invalid settings", func(t *testing.T) {
		env := newTestEnv(t)
		env.settings.getErr = domain.ErrConfiguration

		_, err := run(t, "config", "validate")
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}
