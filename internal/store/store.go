// Package store defines the embedded key-indexed object store for Waverly
// Store. Records are schemaless JSON documents grouped into named collections;
// each collection is keyed by an automatically assigned, strictly increasing
// numeric identifier and may declare secondary indexes, unique or not.
//
// The interfaces here abstract the storage engine, allowing different
// implementations (SQLite for embedded deployments, PostgreSQL for hosted
// ones) while keeping the repository layer clean.
package store

import (
	"context"
)

// Record is a single schemaless document. Documents round-trip through JSON;
// the engine injects the assigned identifier under the "id" key on reads.
type Record map[string]any

// ID returns the record's numeric identifier, or 0 if unset.
func (r Record) ID() int64 {
	switch v := r["id"].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

// ListOptions controls ordering for index scans.
type ListOptions struct {
	// OrderBy names a declared index of the collection to sort by.
	// Empty means engine order.
	OrderBy string

	// Descending sorts in descending order if true.
	Descending bool
}

// Store is the transactional object store. Every operation is atomic at the
// single-collection, single-operation granularity: no partial writes are
// observable. Operations against the same collection observe a consistent
// ordering equivalent to sequential execution.
//
// Error contract:
//   - a unique index conflict surfaces as domain.ErrConstraintViolation;
//   - an absent record on Get/GetByIndex is (nil, nil), not an error;
//   - deleting an absent identifier is a no-op;
//   - any engine failure surfaces as *domain.StorageError and is never
//     retried automatically.
type Store interface {
	// Add persists a new record and returns its assigned identifier.
	Add(ctx context.Context, collection string, doc Record) (int64, error)

	// Get retrieves a record by identifier. Returns (nil, nil) if absent.
	Get(ctx context.Context, collection string, id int64) (Record, error)

	// GetAll returns all records in the collection as a single
	// point-in-time snapshot.
	GetAll(ctx context.Context, collection string) ([]Record, error)

	// Put inserts or replaces the record with the caller-supplied identifier.
	Put(ctx context.Context, collection string, id int64, doc Record) error

	// Delete removes a record by identifier. Absent identifiers are a no-op.
	Delete(ctx context.Context, collection string, id int64) error

	// Clear removes all records in the collection.
	Clear(ctx context.Context, collection string) error

	// GetByIndex retrieves a single record whose indexed field equals value.
	// Returns (nil, nil) if absent.
	GetByIndex(ctx context.Context, collection, index string, value any) (Record, error)

	// ListByIndex returns all records whose indexed field equals value,
	// optionally ordered by another declared index.
	ListByIndex(ctx context.Context, collection, index string, value any, opts ListOptions) ([]Record, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context, collection string) (int64, error)

	// Snapshot reads all listed collections within a single transaction,
	// yielding a mutually consistent point-in-time view.
	Snapshot(ctx context.Context, collections ...string) (map[string][]Record, error)

	// Close releases the underlying engine resources.
	Close() error
}
