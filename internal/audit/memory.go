package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory audit store for dev and tests. Appends are
// serialized by a mutex so concurrent assignment calls chain correctly.
type MemoryStore struct {
	mu     sync.RWMutex
	events []AssignmentEvent
	byID   map[string]int
	heads  map[string]string // prItemId -> latest hash
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  map[string]int{},
		heads: map[string]string{},
	}
}

func (m *MemoryStore) AppendEvent(ctx context.Context, ev *AssignmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := seal(ev, m.heads[ev.PRItemID]); err != nil {
		return err
	}
	m.byID[ev.ID] = len(m.events)
	m.events = append(m.events, *ev)
	m.heads[ev.PRItemID] = ev.Hash
	return nil
}

func (m *MemoryStore) GetEvent(ctx context.Context, id string) (*AssignmentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	ev := m.events[idx]
	return &ev, nil
}

func (m *MemoryStore) ListByItem(ctx context.Context, prItemID string) ([]AssignmentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AssignmentEvent
	for _, ev := range m.events {
		if ev.PRItemID == prItemID {
			out = append(out, ev)
		}
	}
	sortByTs(out)
	return out, nil
}

func (m *MemoryStore) ListRange(ctx context.Context, start, end time.Time) ([]AssignmentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AssignmentEvent
	for _, ev := range m.events {
		if !ev.Ts.Before(start) && ev.Ts.Before(end) {
			out = append(out, ev)
		}
	}
	sortByTs(out)
	return out, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func sortByTs(events []AssignmentEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Ts.Before(events[j].Ts)
	})
}
