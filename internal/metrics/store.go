package metrics

import (
	"context"
	"sync"
)

// SnapshotStore holds cached metric snapshots keyed by (metric type,
// period). Snapshots never expire on their own; staleness is checked
// explicitly by the aggregator at read time. Writes are last-writer-wins.
type SnapshotStore interface {
	// Get returns the stored snapshot, or nil when none exists.
	Get(ctx context.Context, metricType MetricType, period Period) (*Snapshot, error)
	// Put creates or replaces the snapshot for its key.
	Put(ctx context.Context, snapshot Snapshot) error
}

// MemoryStore is an in-process SnapshotStore.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]Snapshot)}
}

// Get returns a copy of the stored snapshot, or nil when absent.
func (s *MemoryStore) Get(ctx context.Context, metricType MetricType, period Period) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[snapshotKey(metricType, period)]
	if !ok {
		return nil, nil
	}
	copied := snap
	copied.Value = append([]byte(nil), snap.Value...)
	return &copied, nil
}

// Put replaces the snapshot for its key.
func (s *MemoryStore) Put(ctx context.Context, snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot.Value = append([]byte(nil), snapshot.Value...)
	s.snapshots[snapshotKey(snapshot.MetricType, snapshot.Period)] = snapshot
	return nil
}

func snapshotKey(metricType MetricType, period Period) string {
	return string(metricType) + ":" + string(period)
}
