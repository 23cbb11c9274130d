package driven

import "context"

// MessageSender delivers replies to a messaging-platform user.
type MessageSender interface {
	// Send delivers text to the recipient identified by recipientID.
	Send(ctx context.Context, recipientID, text string) error

	// SendTyping shows a typing indicator while an answer is prepared.
	SendTyping(ctx context.Context, recipientID string) error
}
