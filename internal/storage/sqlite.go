package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"classbook/internal/core"
	"classbook/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the snapshot as a single row of the snapshots table.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

func NewSQLiteStore(dbPath, key string) (*SQLiteStore, error) {
	if key == "" {
		key = DefaultSnapshotKey
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, key: key}, nil
}

// Key returns the name of the row this store reads and writes.
func (s *SQLiteStore) Key() string { return s.key }

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (core.Snapshot, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM snapshots WHERE key = ?", s.key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}.Normalize(), false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("load snapshot %q: %w", s.key, err)
	}

	snap, err := core.DecodeSnapshot([]byte(payload))
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("load snapshot %q: %w", s.key, err)
	}
	return snap, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap core.Snapshot) error {
	b, err := core.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, payload, version, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		s.key, string(b), core.SnapshotVersion,
	)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", s.key, err)
	}

	slog.DebugContext(ctx, "Snapshot saved to SQLite",
		log.FieldComponent, log.ComponentStorage,
		"key", s.key,
		"students", len(snap.Students),
		"sessions", len(snap.Sessions),
		"payments", len(snap.Payments))
	return nil
}
