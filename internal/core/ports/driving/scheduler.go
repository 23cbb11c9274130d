package driving

import "context"

// Scheduler keeps background reconciliation running while a server front
// end is up.
type Scheduler interface {
	// Start runs passes until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop ends the loop and waits for a pass in progress.
	Stop() error
}
