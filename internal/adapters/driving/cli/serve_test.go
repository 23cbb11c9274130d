package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServeMessenger_RequiresCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.settings.settings.Messenger.VerifyToken = "verify"

	_, err := run(t, "serve", "messenger", "--addr", "127.0.0.1:0")
	assert.ErrorIs(t, err, ErrMessengerNotConfigured)
}

func TestServeMessenger_Flags(t *testing.T) {
	flag := serveMessengerCmd.Flags().Lookup("addr")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "", flag.DefValue)
	}
}

func TestMCPServe_Flags(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "0", flag.DefValue)
	}
}
