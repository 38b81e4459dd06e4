package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/backup"
	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/lock"
	"github.com/prn-tf/waverly-store/internal/store"
)

// exportLockTTL bounds how long a crashed export can block the next one.
const exportLockTTL = 5 * time.Minute

// Stats summarizes the store contents.
type Stats struct {
	// TotalUsers is the number of registered users.
	TotalUsers int64 `json:"totalUsers"`

	// TotalOrders is the number of orders across all users.
	TotalOrders int64 `json:"totalOrders"`

	// TotalAddresses is the number of saved addresses across all users.
	TotalAddresses int64 `json:"totalAddresses"`

	// TotalRevenue is the sum of all order totals. Totals of any stored
	// representation are coerced tolerantly; unparseable values count as
	// zero rather than failing the aggregation.
	TotalRevenue float64 `json:"totalRevenue"`
}

// ExportResult describes a completed export.
type ExportResult struct {
	// SnapshotID is the unique identifier of the export.
	SnapshotID string `json:"snapshotId"`

	// Location is where the sink stored the snapshot.
	Location string `json:"location"`

	// Stats summarize what the snapshot contains.
	Stats Stats `json:"stats"`
}

// StatsService aggregates store-wide statistics and drives exports. It
// reads the store directly rather than through the repositories: both
// operations want a consistent multi-collection view, which only the
// store's snapshot read provides.
type StatsService struct {
	store  store.Store
	schema store.Schema
	sink   backup.Sink
	locker lock.Locker
	logger zerolog.Logger
}

// NewStatsService creates a new StatsService. sink may be nil, in which
// case Export fails with an explanatory error. The locker serializes
// exports; pass a memory locker for single-node deployments.
func NewStatsService(s store.Store, schema store.Schema, sink backup.Sink, locker lock.Locker, logger zerolog.Logger) *StatsService {
	return &StatsService{
		store:  s,
		schema: schema,
		sink:   sink,
		locker: locker,
		logger: logger.With().Str("service", "stats").Logger(),
	}
}

// Stats computes counts and total revenue from a single consistent
// snapshot of all collections.
func (s *StatsService) Stats(ctx context.Context) (*Stats, error) {
	dump, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return statsOf(dump), nil
}

// Export dumps every collection into a snapshot and hands it to the
// configured sink.
func (s *StatsService) Export(ctx context.Context) (*ExportResult, error) {
	if s.sink == nil {
		return nil, fmt.Errorf("%w: no export sink configured", ErrInternalError)
	}

	acquired, err := s.locker.Acquire(ctx, lock.Keys.Export(), exportLockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return nil, ErrExportInProgress
	}
	defer func() {
		if _, err := s.locker.Release(context.WithoutCancel(ctx), lock.Keys.Export()); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release export lock")
		}
	}()

	dump, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := backup.NewSnapshot(s.schema.Version, dump)
	location, err := s.sink.Store(ctx, snapshot)
	if err != nil {
		s.logger.Error().Err(err).Str("snapshot_id", snapshot.ID).Msg("failed to store snapshot")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("snapshot_id", snapshot.ID).
		Str("location", location).
		Msg("store exported")

	return &ExportResult{
		SnapshotID: snapshot.ID,
		Location:   location,
		Stats:      *statsOf(dump),
	}, nil
}

// snapshot reads all schema collections in one transaction.
func (s *StatsService) snapshot(ctx context.Context) (map[string][]store.Record, error) {
	names := make([]string, 0, len(s.schema.Collections))
	for _, c := range s.schema.Collections {
		names = append(names, c.Name)
	}

	dump, err := s.store.Snapshot(ctx, names...)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to snapshot store")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return dump, nil
}

// statsOf derives the aggregate view from a collection dump.
func statsOf(dump map[string][]store.Record) *Stats {
	stats := &Stats{
		TotalUsers:     int64(len(dump[store.CollectionUsers])),
		TotalOrders:    int64(len(dump[store.CollectionOrders])),
		TotalAddresses: int64(len(dump[store.CollectionAddresses])),
	}
	for _, rec := range dump[store.CollectionOrders] {
		stats.TotalRevenue += domain.ParseTotal(rec["total"])
	}
	return stats
}
