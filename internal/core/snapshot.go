package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SnapshotVersion is written into every persisted envelope.
const SnapshotVersion = 0

// Snapshot is the full persisted ledger state.
type Snapshot struct {
	Students []Student      `json:"students"`
	Sessions []ClassSession `json:"sessions"`
	Payments []Payment      `json:"payments"`
}

type snapshotEnvelope struct {
	State   *Snapshot `json:"state"`
	Version int       `json:"version"`
}

// Normalize returns a copy in canonical form: nil collections become
// empty, session attendees are de-duplicated and payment timestamps are
// in UTC without a monotonic reading. A normalized snapshot compares
// equal to itself after an encode/decode round trip.
func (s Snapshot) Normalize() Snapshot {
	if s.Students == nil {
		s.Students = []Student{}
	}
	sessions := make([]ClassSession, len(s.Sessions))
	for i, cs := range s.Sessions {
		cs.StudentIDs = UniqueIDs(cs.StudentIDs)
		sessions[i] = cs
	}
	s.Sessions = sessions
	payments := make([]Payment, len(s.Payments))
	for i, p := range s.Payments {
		p.Date = p.Date.UTC()
		payments[i] = p
	}
	s.Payments = payments
	return s
}

// EncodeSnapshot writes s inside the {"state": ..., "version": N} envelope.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	s = s.Normalize()
	b, err := json.Marshal(snapshotEnvelope{State: &s, Version: SnapshotVersion})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot reads an enveloped or bare snapshot. Unknown fields are
// ignored; empty input yields an empty snapshot.
func DecodeSnapshot(b []byte) (Snapshot, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return Snapshot{}.Normalize(), nil
	}
	var env snapshotEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if env.State != nil {
		return env.State.Normalize(), nil
	}
	var bare Snapshot
	if err := json.Unmarshal(b, &bare); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return bare.Normalize(), nil
}
