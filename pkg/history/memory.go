package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]Snapshot
	retention time.Duration
}

func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{
		snapshots: make(map[string][]Snapshot),
		retention: retention,
	}
}

func (m *MemoryStore) Record(ctx context.Context, s Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list := append(m.snapshots[s.ProjectID], s)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })

	cutoff := list[len(list)-1].Timestamp.Add(-m.retention)
	i := sort.Search(len(list), func(i int) bool { return !list[i].Timestamp.Before(cutoff) })
	m.snapshots[s.ProjectID] = list[i:]
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, projectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.snapshots, projectID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Current(ctx context.Context, projectID string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.snapshots[projectID]
	if len(list) == 0 {
		return Snapshot{}, fmt.Errorf("project %s: %w", projectID, ErrNoHistory)
	}
	return list[len(list)-1], nil
}

func (m *MemoryStore) Since(ctx context.Context, projectID string, since time.Time) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Snapshot
	for _, s := range m.snapshots[projectID] {
		if !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}
