// Package keymap binds keys for the chat view.
package keymap

import (
	"slices"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds every chat view binding.
type KeyMap struct {
	Send       key.Binding
	History    key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Clear      key.Binding
	Quit       key.Binding
}

func binding(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Send:       binding("enter", "send", "enter"),
		History:    binding("up/down", "history", "up", "down"),
		ScrollUp:   binding("pgup", "scroll up", "pgup", "ctrl+u"),
		ScrollDown: binding("pgdn", "scroll down", "pgdown", "ctrl+d"),
		Clear:      binding("ctrl+l", "clear", "ctrl+l"),
		Quit:       binding("esc", "quit", "ctrl+c", "esc"),
	}
}

// ShortHelp is the subset shown in the status bar.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.ScrollUp, k.Quit}
}

// FullHelp groups every binding.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.History, k.Clear},
		{k.ScrollUp, k.ScrollDown},
		{k.Quit},
	}
}

// Matches reports whether keyStr is one of binding's keys.
func Matches(keyStr string, binding key.Binding) bool {
	return slices.Contains(binding.Keys(), keyStr)
}
