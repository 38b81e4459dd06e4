// Package backup exports full-store snapshots to pluggable sinks.
// A snapshot is a point-in-time JSON dump of every collection, suitable for
// offline inspection or for importing into another deployment.
package backup

import (
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/waverly-store/internal/store"
)

// Snapshot is a point-in-time dump of the store.
type Snapshot struct {
	// ID uniquely identifies this export.
	ID string `json:"id"`

	// SchemaVersion is the store schema version the dump was taken at.
	SchemaVersion int `json:"schemaVersion"`

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"createdAt"`

	// Collections maps collection name to all of its records.
	Collections map[string][]store.Record `json:"collections"`
}

// NewSnapshot assembles a snapshot envelope around collection dumps.
func NewSnapshot(schemaVersion int, collections map[string][]store.Record) *Snapshot {
	return &Snapshot{
		ID:            uuid.NewString(),
		SchemaVersion: schemaVersion,
		CreatedAt:     time.Now().UTC(),
		Collections:   collections,
	}
}
