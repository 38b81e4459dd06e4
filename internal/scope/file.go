package scope

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileScope implements Scope backed by a single JSON file, giving values
// that survive process restarts. Values are stored base64-encoded so
// arbitrary bytes round-trip, including ciphertext. Writes go through a
// temp file rename so a crash never leaves a torn file.
type FileScope struct {
	mu   sync.Mutex
	path string
}

// NewFileScope creates a file-backed scope at path. The parent directory is
// created if missing.
func NewFileScope(path string) (*FileScope, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create scope directory: %w", err)
		}
	}
	return &FileScope{path: path}, nil
}

// Get retrieves the value for key.
func (f *FileScope) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.load()
	if err != nil {
		return nil, err
	}

	value, ok := items[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

// Set stores the value for key.
func (f *FileScope) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.load()
	if err != nil {
		return err
	}

	items[key] = value
	return f.save(items)
}

// Delete removes the key.
func (f *FileScope) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.load()
	if err != nil {
		return err
	}

	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return f.save(items)
}

// load reads the backing file. A missing file is an empty scope.
func (f *FileScope) load() (map[string][]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string][]byte), nil
		}
		return nil, fmt.Errorf("failed to read scope file: %w", err)
	}

	items := make(map[string][]byte)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to parse scope file: %w", err)
		}
	}
	return items, nil
}

// save writes the backing file atomically.
func (f *FileScope) save(items map[string][]byte) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode scope file: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write scope file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace scope file: %w", err)
	}
	return nil
}

// Ensure FileScope implements Scope.
var _ Scope = (*FileScope)(nil)
