// Package messages defines Bubbletea message types for the chat TUI.
package messages

import "time"

// ReplySubmitted is sent when a line is handed to the chat service.
type ReplySubmitted struct {
	Utterance string
}

// ReplyReceived carries the outcome of one chat turn.
type ReplyReceived struct {
	Utterance string
	Reply     string
	Err       error
	Elapsed   time.Duration
}

// Failed reports whether the turn ended with an error.
func (m ReplyReceived) Failed() bool {
	return m.Err != nil
}

// Quit is sent to exit the application.
type Quit struct{}
