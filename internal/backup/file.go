package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileSink writes snapshots as JSON files into a directory.
type FileSink struct {
	dir    string
	logger zerolog.Logger
}

// NewFileSink creates a FileSink rooted at dir. The directory is created
// on first use.
func NewFileSink(dir string, logger zerolog.Logger) *FileSink {
	return &FileSink{
		dir:    dir,
		logger: logger.With().Str("component", "backup_file").Logger(),
	}
}

// Store writes the snapshot to <dir>/export-<timestamp>-<id>.json via a
// temporary file and rename, so a crash never leaves a partial export
// behind under the final name.
func (s *FileSink) Store(_ context.Context, snapshot *Snapshot) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	name := fmt.Sprintf("export-%s-%s.json", snapshot.CreatedAt.Format("20060102T150405Z"), snapshot.ID)
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".export-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to finalize snapshot file: %w", err)
	}

	s.logger.Info().Str("path", path).Str("snapshot_id", snapshot.ID).Msg("snapshot exported")
	return path, nil
}

// Ensure FileSink implements Sink.
var _ Sink = (*FileSink)(nil)
