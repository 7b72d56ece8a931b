package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process SnapshotStore used by the chat CLI and tests.
// Snapshots are stored as marshalled JSON so callers never share slices with
// the stored copy.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: map[string][]byte{}}
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("memstore: encoding snapshot: %w", err)
	}
	m.mu.Lock()
	m.runs[snap.RunID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetSnapshot(_ context.Context, runID string) (Snapshot, bool, error) {
	m.mu.RLock()
	raw, ok := m.runs[runID]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, false, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("memstore: decoding snapshot: %w", err)
	}
	return snap, true, nil
}

// PruneSuspendedBefore drops suspended runs last updated before the cutoff.
func (m *MemoryStore) PruneSuspendedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, raw := range m.runs {
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			continue
		}
		if snap.Status == StatusSuspended && snap.UpdatedAt.Before(cutoff) {
			delete(m.runs, id)
			n++
		}
	}
	return n, nil
}
