// Package tui is the full-screen terminal chat with the shop assistant.
package tui

import (
	"errors"

	"github.com/custodia-labs/shopbot/internal/core/ports/driving"
)

// ErrMissingChatService is returned by NewApp without a chat service.
var ErrMissingChatService = errors.New("tui: chat service is required")

// Ports are the core services the chat view calls.
type Ports struct {
	Chat driving.ChatService
}

// Validate checks that the chat service is set.
func (p *Ports) Validate() error {
	if p == nil || p.Chat == nil {
		return ErrMissingChatService
	}
	return nil
}
