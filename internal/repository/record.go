package repository

import (
	"encoding/json"
	"fmt"

	"github.com/prn-tf/waverly-store/internal/store"
)

// toRecord converts a typed entity into a store document by round-tripping
// through JSON, so the document shape is exactly the entity's JSON shape.
func toRecord(v any) (store.Record, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var doc store.Record
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("failed to build record: %w", err)
	}
	return doc, nil
}

// fromRecord converts a store document back into a typed entity.
func fromRecord(doc store.Record, v any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}
