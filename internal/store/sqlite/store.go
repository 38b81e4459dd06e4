package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/store"
)

// Store implements store.Store on SQLite. Each collection is a table with an
// AUTOINCREMENT identifier, one column per declared index (extracted from the
// document on write) and the full document as JSON text. SQLite serializes
// writes per database, which satisfies the per-collection ordering contract.
type Store struct {
	db          *DB
	schema      store.Schema
	collections map[string]*store.Collection
	logger      zerolog.Logger
}

// NewStore creates a new SQLite-backed store. The schema must already have
// been applied via DB.Migrate.
func NewStore(db *DB, schema store.Schema, logger zerolog.Logger) *Store {
	collections := make(map[string]*store.Collection, len(schema.Collections))
	for i := range schema.Collections {
		collections[schema.Collections[i].Name] = &schema.Collections[i]
	}
	return &Store{
		db:          db,
		schema:      schema,
		collections: collections,
		logger:      logger.With().Str("component", "sqlite_store").Logger(),
	}
}

// collection resolves a declared collection by name. Unknown names are an
// engine error; table names are only ever interpolated from declarations.
func (s *Store) collection(name string) (*store.Collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, domain.NewStorageError("resolve", name, fmt.Errorf("unknown collection %q", name))
	}
	return c, nil
}

// Add persists a new record and returns its assigned identifier.
func (s *Store) Add(ctx context.Context, collection string, doc store.Record) (int64, error) {
	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}

	payload, values, err := encodeDoc(c, doc)
	if err != nil {
		return 0, domain.NewStorageError("add", collection, err)
	}

	cols := make([]string, 0, len(c.Indexes)+1)
	marks := make([]string, 0, len(c.Indexes)+1)
	args := make([]any, 0, len(c.Indexes)+1)
	for i, idx := range c.Indexes {
		cols = append(cols, idx.Column)
		marks = append(marks, "?")
		args = append(args, values[i])
	}
	cols = append(cols, "doc")
	marks = append(marks, "?")
	args = append(args, payload)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.Name, strings.Join(cols, ", "), strings.Join(marks, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", domain.ErrConstraintViolation, err)
		}
		return 0, domain.NewStorageError("add", collection, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, domain.NewStorageError("add", collection, err)
	}
	return id, nil
}

// Get retrieves a record by identifier. Returns (nil, nil) if absent.
func (s *Store) Get(ctx context.Context, collection string, id int64) (store.Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	var payload string
	query := fmt.Sprintf("SELECT doc FROM %s WHERE id = ?", c.Name)
	err = s.db.QueryRowContext(ctx, query, id).Scan(&payload)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, domain.NewStorageError("get", collection, err)
	}

	return decodeDoc(collection, id, payload)
}

// GetAll returns all records in the collection. The single query yields an
// internally consistent point-in-time snapshot.
func (s *Store) GetAll(ctx context.Context, collection string) ([]store.Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id, doc FROM %s ORDER BY id", c.Name)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.NewStorageError("get_all", collection, err)
	}
	defer rows.Close()

	return scanRecords(collection, rows, "get_all")
}

// Put inserts or replaces the record with the caller-supplied identifier.
func (s *Store) Put(ctx context.Context, collection string, id int64, doc store.Record) error {
	c, err := s.collection(collection)
	if err != nil {
		return err
	}

	payload, values, err := encodeDoc(c, doc)
	if err != nil {
		return domain.NewStorageError("put", collection, err)
	}

	cols := []string{"id"}
	marks := []string{"?"}
	args := []any{id}
	sets := make([]string, 0, len(c.Indexes)+1)
	for i, idx := range c.Indexes {
		cols = append(cols, idx.Column)
		marks = append(marks, "?")
		args = append(args, values[i])
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", idx.Column, idx.Column))
	}
	cols = append(cols, "doc")
	marks = append(marks, "?")
	args = append(args, payload)
	sets = append(sets, "doc = excluded.doc")

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		c.Name, strings.Join(cols, ", "), strings.Join(marks, ", "), strings.Join(sets, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", domain.ErrConstraintViolation, err)
		}
		return domain.NewStorageError("put", collection, err)
	}
	return nil
}

// Delete removes a record by identifier. Absent identifiers are a no-op.
func (s *Store) Delete(ctx context.Context, collection string, id int64) error {
	c, err := s.collection(collection)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.Name)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return domain.NewStorageError("delete", collection, err)
	}
	return nil
}

// Clear removes all records in the collection.
func (s *Store) Clear(ctx context.Context, collection string) error {
	c, err := s.collection(collection)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s", c.Name)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return domain.NewStorageError("clear", collection, err)
	}
	return nil
}

// GetByIndex retrieves a single record whose indexed field equals value.
// Returns (nil, nil) if absent.
func (s *Store) GetByIndex(ctx context.Context, collection, index string, value any) (store.Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	idx := c.Index(index)
	if idx == nil {
		return nil, domain.NewStorageError("get_by_index", collection, fmt.Errorf("unknown index %q", index))
	}

	var id int64
	var payload string
	query := fmt.Sprintf("SELECT id, doc FROM %s WHERE %s = ? LIMIT 1", c.Name, idx.Column)
	err = s.db.QueryRowContext(ctx, query, value).Scan(&id, &payload)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, domain.NewStorageError("get_by_index", collection, err)
	}

	return decodeDoc(collection, id, payload)
}

// ListByIndex returns all records whose indexed field equals value,
// optionally ordered by another declared index.
func (s *Store) ListByIndex(ctx context.Context, collection, index string, value any, opts store.ListOptions) ([]store.Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	idx := c.Index(index)
	if idx == nil {
		return nil, domain.NewStorageError("list_by_index", collection, fmt.Errorf("unknown index %q", index))
	}

	query := fmt.Sprintf("SELECT id, doc FROM %s WHERE %s = ?", c.Name, idx.Column)
	if opts.OrderBy != "" {
		orderIdx := c.Index(opts.OrderBy)
		if orderIdx == nil {
			return nil, domain.NewStorageError("list_by_index", collection, fmt.Errorf("unknown order index %q", opts.OrderBy))
		}
		query += fmt.Sprintf(" ORDER BY %s", orderIdx.Column)
		if opts.Descending {
			query += " DESC"
		}
	}

	rows, err := s.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, domain.NewStorageError("list_by_index", collection, err)
	}
	defer rows.Close()

	return scanRecords(collection, rows, "list_by_index")
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.Name)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, domain.NewStorageError("count", collection, err)
	}
	return count, nil
}

// Snapshot reads all listed collections within a single transaction.
func (s *Store) Snapshot(ctx context.Context, collections ...string) (map[string][]store.Record, error) {
	resolved := make([]*store.Collection, 0, len(collections))
	for _, name := range collections {
		c, err := s.collection(name)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, c)
	}

	result := make(map[string][]store.Record, len(resolved))
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, c := range resolved {
			query := fmt.Sprintf("SELECT id, doc FROM %s ORDER BY id", c.Name)
			rows, err := tx.QueryContext(ctx, query)
			if err != nil {
				return err
			}
			records, err := scanRecords(c.Name, rows, "snapshot")
			rows.Close()
			if err != nil {
				return err
			}
			result[c.Name] = records
		}
		return nil
	})
	if err != nil {
		if domain.IsStorageError(err) {
			return nil, err
		}
		return nil, domain.NewStorageError("snapshot", "", err)
	}
	return result, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// encodeDoc marshals the document (minus the injected "id" key) and extracts
// the declared index values in declaration order.
func encodeDoc(c *store.Collection, doc store.Record) (string, []any, error) {
	stripped := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "id" {
			continue
		}
		stripped[k] = v
	}

	payload, err := json.Marshal(stripped)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode document: %w", err)
	}

	values := make([]any, len(c.Indexes))
	for i, idx := range c.Indexes {
		values[i] = indexValue(&idx, stripped)
	}
	return string(payload), values, nil
}

// indexValue coerces the document field covered by idx to the declared kind.
// Missing or null fields index as NULL.
func indexValue(idx *store.Index, doc map[string]any) any {
	v, ok := doc[idx.Field]
	if !ok || v == nil {
		return nil
	}

	switch idx.Kind {
	case store.KindInt:
		switch t := v.(type) {
		case int64:
			return t
		case int:
			return int64(t)
		case float64:
			return int64(t)
		case json.Number:
			n, err := t.Int64()
			if err != nil {
				return nil
			}
			return n
		}
		return nil
	case store.KindReal:
		switch t := v.(type) {
		case float64:
			return t
		case float32:
			return float64(t)
		case int64:
			return float64(t)
		case int:
			return float64(t)
		case json.Number:
			f, err := t.Float64()
			if err != nil {
				return nil
			}
			return f
		}
		return nil
	default:
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
}

// decodeDoc unmarshals a stored document and injects its identifier.
func decodeDoc(collection string, id int64, payload string) (store.Record, error) {
	var doc store.Record
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, domain.NewStorageError("decode", collection, err)
	}
	doc["id"] = id
	return doc, nil
}

// scanRecords drains a result set of (id, doc) rows.
func scanRecords(collection string, rows *sql.Rows, op string) ([]store.Record, error) {
	var records []store.Record
	for rows.Next() {
		var id int64
		var payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, domain.NewStorageError(op, collection, err)
		}
		doc, err := decodeDoc(collection, id, payload)
		if err != nil {
			return nil, err
		}
		records = append(records, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError(op, collection, err)
	}
	return records, nil
}

// Ensure Store implements store.Store.
var _ store.Store = (*Store)(nil)
