package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/waverly-store/internal/backup"
	"github.com/prn-tf/waverly-store/internal/lock"
	"github.com/prn-tf/waverly-store/internal/store"
)

// MockStore implements store.Store over plain maps. Only the methods the
// stats service touches carry behavior; the rest exist to satisfy the
// interface.
type MockStore struct {
	collections map[string][]store.Record
	snapshotErr error
}

func NewMockStore() *MockStore {
	return &MockStore{collections: make(map[string][]store.Record)}
}

func (m *MockStore) Add(ctx context.Context, collection string, doc store.Record) (int64, error) {
	m.collections[collection] = append(m.collections[collection], doc)
	return int64(len(m.collections[collection])), nil
}

func (m *MockStore) Get(ctx context.Context, collection string, id int64) (store.Record, error) {
	return nil, nil
}

func (m *MockStore) GetAll(ctx context.Context, collection string) ([]store.Record, error) {
	return m.collections[collection], nil
}

func (m *MockStore) Put(ctx context.Context, collection string, id int64, doc store.Record) error {
	return nil
}

func (m *MockStore) Delete(ctx context.Context, collection string, id int64) error { return nil }
func (m *MockStore) Clear(ctx context.Context, collection string) error            { return nil }

func (m *MockStore) GetByIndex(ctx context.Context, collection, index string, value any) (store.Record, error) {
	return nil, nil
}

func (m *MockStore) ListByIndex(ctx context.Context, collection, index string, value any, opts store.ListOptions) ([]store.Record, error) {
	return nil, nil
}

func (m *MockStore) Count(ctx context.Context, collection string) (int64, error) {
	return int64(len(m.collections[collection])), nil
}

func (m *MockStore) Snapshot(ctx context.Context, collections ...string) (map[string][]store.Record, error) {
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	out := make(map[string][]store.Record, len(collections))
	for _, name := range collections {
		out[name] = m.collections[name]
	}
	return out, nil
}

func (m *MockStore) Close() error { return nil }

var _ store.Store = (*MockStore)(nil)

// MockSink records the snapshot it was handed.
type MockSink struct {
	stored   *backup.Snapshot
	storeErr error
}

func (m *MockSink) Store(ctx context.Context, snapshot *backup.Snapshot) (string, error) {
	if m.storeErr != nil {
		return "", m.storeErr
	}
	m.stored = snapshot
	return "/exports/" + snapshot.ID + ".json", nil
}

func seedStore(s *MockStore) {
	s.collections[store.CollectionUsers] = []store.Record{
		{"id": int64(1), "email": "anna@example.com"},
		{"id": int64(2), "email": "bob@example.com"},
	}
	s.collections[store.CollectionOrders] = []store.Record{
		{"id": int64(1), "userId": int64(1), "total": 100.50},
		{"id": int64(2), "userId": int64(1), "total": "$1,299.99"},
		{"id": int64(3), "userId": int64(2), "total": "free"},
	}
	s.collections[store.CollectionAddresses] = []store.Record{
		{"id": int64(1), "userId": int64(1)},
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestStatsService_Stats(t *testing.T) {
	mock := NewMockStore()
	seedStore(mock)
	svc := NewStatsService(mock, store.DefaultSchema(), nil, lock.NewMemoryLocker(), zerolog.Nop())

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.TotalUsers)
	require.Equal(t, int64(3), stats.TotalOrders)
	require.Equal(t, int64(1), stats.TotalAddresses)
	// 100.50 + 1299.99; the unparseable total contributes zero.
	require.InDelta(t, 1400.49, stats.TotalRevenue, 0.001)
}

func TestStatsService_Stats_Empty(t *testing.T) {
	svc := NewStatsService(NewMockStore(), store.DefaultSchema(), nil, lock.NewMemoryLocker(), zerolog.Nop())

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.TotalUsers)
	require.Zero(t, stats.TotalOrders)
	require.Zero(t, stats.TotalAddresses)
	require.Zero(t, stats.TotalRevenue)
}

func TestStatsService_Stats_StoreError(t *testing.T) {
	mock := NewMockStore()
	mock.snapshotErr = errors.New("disk gone")
	svc := NewStatsService(mock, store.DefaultSchema(), nil, lock.NewMemoryLocker(), zerolog.Nop())

	_, err := svc.Stats(context.Background())
	require.ErrorIs(t, err, ErrInternalError)
}

func TestStatsService_Export(t *testing.T) {
	mock := NewMockStore()
	seedStore(mock)
	sink := &MockSink{}
	schema := store.DefaultSchema()
	svc := NewStatsService(mock, schema, sink, lock.NewMemoryLocker(), zerolog.Nop())

	result, err := svc.Export(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, result.SnapshotID)
	require.Equal(t, "/exports/"+result.SnapshotID+".json", result.Location)
	require.Equal(t, int64(2), result.Stats.TotalUsers)

	require.NotNil(t, sink.stored)
	require.Equal(t, result.SnapshotID, sink.stored.ID)
	require.Equal(t, schema.Version, sink.stored.SchemaVersion)
	require.Len(t, sink.stored.Collections[store.CollectionOrders], 3)
}

func TestStatsService_Export_NoSink(t *testing.T) {
	svc := NewStatsService(NewMockStore(), store.DefaultSchema(), nil, lock.NewMemoryLocker(), zerolog.Nop())

	_, err := svc.Export(context.Background())
	require.ErrorIs(t, err, ErrInternalError)
}

func TestStatsService_Export_Serialized(t *testing.T) {
	mock := NewMockStore()
	seedStore(mock)
	locker := lock.NewMemoryLocker()
	defer locker.Stop()
	svc := NewStatsService(mock, store.DefaultSchema(), &MockSink{}, locker, zerolog.Nop())

	// A held export lock turns a concurrent export away.
	acquired, err := locker.Acquire(context.Background(), lock.Keys.Export(), time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = svc.Export(context.Background())
	require.ErrorIs(t, err, ErrExportInProgress)

	// Once released, exports run again and release the lock behind them.
	_, err = locker.Release(context.Background(), lock.Keys.Export())
	require.NoError(t, err)

	_, err = svc.Export(context.Background())
	require.NoError(t, err)
	_, err = svc.Export(context.Background())
	require.NoError(t, err)
}

func TestStatsService_Export_SinkError(t *testing.T) {
	mock := NewMockStore()
	seedStore(mock)
	sink := &MockSink{storeErr: errors.New("bucket unreachable")}
	svc := NewStatsService(mock, store.DefaultSchema(), sink, lock.NewMemoryLocker(), zerolog.Nop())

	_, err := svc.Export(context.Background())
	require.ErrorIs(t, err, ErrInternalError)
}
