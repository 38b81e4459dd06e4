package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/store"
)

// Store implements store.Store on PostgreSQL. The table layout mirrors the
// SQLite engine: a BIGSERIAL identifier, one column per declared index and
// the full document as JSONB.
type Store struct {
	db          *DB
	schema      store.Schema
	collections map[string]*store.Collection
	logger      zerolog.Logger
}

// NewStore creates a new PostgreSQL-backed store. The schema must already
// have been applied via Migrate.
func NewStore(db *DB, schema store.Schema, logger zerolog.Logger) *Store {
	collections := make(map[string]*store.Collection, len(schema.Collections))
	for i := range schema.Collections {
		collections[schema.Collections[i].Name] = &schema.Collections[i]
	}
	return &Store{
		db:          db,
		schema:      schema,
		collections: collections,
		logger:      logger.With().Str("component", "postgres_store").Logger(),
	}
}

// Migrate applies the schema, gated by a version table, creating what's
// missing. Idempotent.
func (db *DB) Migrate(ctx context.Context, schema store.Schema) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err = db.Pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	if currentVersion >= schema.Version {
		return nil
	}

	for i := range schema.Collections {
		c := &schema.Collections[i]

		cols := []string{"id BIGSERIAL PRIMARY KEY"}
		for _, idx := range c.Indexes {
			cols = append(cols, fmt.Sprintf("%s %s", idx.Column, columnType(idx.Kind)))
		}
		cols = append(cols, "doc JSONB NOT NULL")

		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", c.Name, strings.Join(cols, ", "))
		if _, err := db.Pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", c.Name, err)
		}

		for _, idx := range c.Indexes {
			unique := ""
			if idx.Unique {
				unique = "UNIQUE "
			}
			ddl := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
				unique, c.Name, idx.Name, c.Name, idx.Column)
			if _, err := db.Pool.Exec(ctx, ddl); err != nil {
				return fmt.Errorf("failed to create index %s on %s: %w", idx.Name, c.Name, err)
			}
		}
	}

	if _, err := db.Pool.Exec(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1)`, schema.Version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	db.logger.Info().Int("version", schema.Version).Msg("applied migration")
	return nil
}

// columnType maps an index kind to a PostgreSQL column type.
func columnType(k store.IndexKind) string {
	switch k {
	case store.KindInt:
		return "BIGINT"
	case store.KindReal:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// isUniqueViolation checks if an error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

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
		marks = append(marks, fmt.Sprintf("$%d", i+1))
		args = append(args, values[i])
	}
	cols = append(cols, "doc")
	marks = append(marks, fmt.Sprintf("$%d", len(args)+1))
	args = append(args, payload)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		c.Name, strings.Join(cols, ", "), strings.Join(marks, ", "))

	var id int64
	if err := s.db.Pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", domain.ErrConstraintViolation, err)
		}
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

	var payload []byte
	query := fmt.Sprintf("SELECT doc FROM %s WHERE id = $1", c.Name)
	err = s.db.Pool.QueryRow(ctx, query, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.NewStorageError("get", collection, err)
	}

	return decodeDoc(collection, id, payload)
}

// GetAll returns all records in the collection.
func (s *Store) GetAll(ctx context.Context, collection string) ([]store.Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id, doc FROM %s ORDER BY id", c.Name)
	rows, err := s.db.Pool.Query(ctx, query)
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
	marks := []string{"$1"}
	args := []any{id}
	sets := make([]string, 0, len(c.Indexes)+1)
	for i, idx := range c.Indexes {
		cols = append(cols, idx.Column)
		marks = append(marks, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, values[i])
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", idx.Column, idx.Column))
	}
	cols = append(cols, "doc")
	marks = append(marks, fmt.Sprintf("$%d", len(args)+1))
	args = append(args, payload)
	sets = append(sets, "doc = excluded.doc")

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		c.Name, strings.Join(cols, ", "), strings.Join(marks, ", "), strings.Join(sets, ", "))

	if _, err := s.db.Pool.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", domain.ErrConstraintViolation, err)
		}
		return domain.NewStorageError("put", collection, err)
	}

	// Keep the sequence ahead of caller-supplied identifiers.
	seq := fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence('%s', 'id'), (SELECT MAX(id) FROM %s))",
		c.Name, c.Name)
	if _, err := s.db.Pool.Exec(ctx, seq); err != nil {
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

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", c.Name)
	if _, err := s.db.Pool.Exec(ctx, query, id); err != nil {
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
	if _, err := s.db.Pool.Exec(ctx, query); err != nil {
		return domain.NewStorageError("clear", collection, err)
	}
	return nil
}

// GetByIndex retrieves a single record whose indexed field equals value.
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
	var payload []byte
	query := fmt.Sprintf("SELECT id, doc FROM %s WHERE %s = $1 LIMIT 1", c.Name, idx.Column)
	err = s.db.Pool.QueryRow(ctx, query, value).Scan(&id, &payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.NewStorageError("get_by_index", collection, err)
	}

	return decodeDoc(collection, id, payload)
}

// ListByIndex returns all records whose indexed field equals value.
func (s *Store) ListByIndex(ctx context.Context, collection, index string, value any, opts store.ListOptions) ([]store.Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	idx := c.Index(index)
	if idx == nil {
		return nil, domain.NewStorageError("list_by_index", collection, fmt.Errorf("unknown index %q", index))
	}

	query := fmt.Sprintf("SELECT id, doc FROM %s WHERE %s = $1", c.Name, idx.Column)
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

	rows, err := s.db.Pool.Query(ctx, query, value)
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
	if err := s.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
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
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, c := range resolved {
			query := fmt.Sprintf("SELECT id, doc FROM %s ORDER BY id", c.Name)
			rows, err := tx.Query(ctx, query)
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

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// encodeDoc marshals the document (minus the injected "id" key) and extracts
// the declared index values in declaration order.
func encodeDoc(c *store.Collection, doc store.Record) ([]byte, []any, error) {
	stripped := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "id" {
			continue
		}
		stripped[k] = v
	}

	payload, err := json.Marshal(stripped)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode document: %w", err)
	}

	values := make([]any, len(c.Indexes))
	for i, idx := range c.Indexes {
		values[i] = indexValue(&idx, stripped)
	}
	return payload, values, nil
}

// indexValue coerces the document field covered by idx to the declared kind.
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
func decodeDoc(collection string, id int64, payload []byte) (store.Record, error) {
	var doc store.Record
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, domain.NewStorageError("decode", collection, err)
	}
	doc["id"] = id
	return doc, nil
}

// scanRecords drains a result set of (id, doc) rows.
func scanRecords(collection string, rows pgx.Rows, op string) ([]store.Record, error) {
	var records []store.Record
	for rows.Next() {
		var id int64
		var payload []byte
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
