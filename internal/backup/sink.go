package backup

import "context"

// Sink persists snapshots to a destination.
type Sink interface {
	// Store writes the snapshot and returns the destination location
	// (a file path or object URL).
	Store(ctx context.Context, snapshot *Snapshot) (string, error)
}
