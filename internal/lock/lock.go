// Package lock provides advisory locking used to coordinate exclusive
// operations, such as data exports, across goroutines or server instances.
package lock

import (
	"context"
	"time"
)

// Locker defines the interface for advisory locks with a TTL.
// Locks expire automatically so a crashed holder cannot wedge the system.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it is held elsewhere.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release releases a lock.
	// Returns true if the lock was released, false if it was not held.
	Release(ctx context.Context, key string) (bool, error)
}

// Keys generates lock keys for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// Export returns the lock key guarding data exports.
// Prevents two exports from snapshotting and uploading concurrently.
func (lockKeys) Export() string {
	return "lock:export"
}
