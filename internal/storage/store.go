// Package storage persists ledger snapshots. Every backend stores one
// named record holding the encoded students, sessions and payments.
package storage

import (
	"context"
	"sync"

	"classbook/internal/core"
)

// DefaultSnapshotKey names the persisted record.
const DefaultSnapshotKey = "calligraphy-storage"

// SnapshotStore loads and saves the whole ledger. Load reports found=false
// (with an empty snapshot) when nothing has been saved yet.
type SnapshotStore interface {
	Load(ctx context.Context) (snap core.Snapshot, found bool, err error)
	Save(ctx context.Context, snap core.Snapshot) error
}

// MemoryStore keeps the encoded snapshot in memory. It goes through the
// same codec as the durable stores.
type MemoryStore struct {
	mu      sync.Mutex
	payload []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (core.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payload == nil {
		return core.Snapshot{}.Normalize(), false, nil
	}
	snap, err := core.DecodeSnapshot(s.payload)
	if err != nil {
		return core.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *MemoryStore) Save(_ context.Context, snap core.Snapshot) error {
	b, err := core.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = b
	return nil
}
