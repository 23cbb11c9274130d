package driving

import "context"

// ChatService answers one user utterance per call. Every front end reduces
// to this shape.
type ChatService interface {
	// Respond returns the completion text for utterance.
	Respond(ctx context.Context, utterance string) (string, error)
}
