package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"classbook/internal/core"
	"classbook/internal/log"
)

// FileStore keeps the snapshot as a JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("snapshot file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (core.Snapshot, bool, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.DebugContext(ctx, "No snapshot file yet",
			log.FieldComponent, log.ComponentStorage,
			log.FieldPath, s.path)
		return core.Snapshot{}.Normalize(), false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("read snapshot file: %w", err)
	}
	snap, err := core.DecodeSnapshot(b)
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("%s: %w", s.path, err)
	}
	return snap, true, nil
}

// Save writes to a temporary file and renames it over the old one, so a
// crash mid-write never leaves a truncated snapshot.
func (s *FileStore) Save(ctx context.Context, snap core.Snapshot) error {
	b, err := core.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot written",
		log.FieldComponent, log.ComponentStorage,
		log.FieldPath, s.path,
		"bytes", len(b))
	return nil
}
