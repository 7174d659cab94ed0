package audit

import (
	"context"
	"sort"
	"sync"
)

type MemoryRepo struct {
	mu     sync.RWMutex
	events map[string]Event
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{events: make(map[string]Event)}
}

func (r *MemoryRepo) Record(ctx context.Context, e Event) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[e.ID]; ok {
		return false, nil
	}
	r.events[e.ID] = e
	return true, nil
}

func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Event, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.TenderID != 0 && e.TenderID != f.TenderID {
			continue
		}
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if n := f.limit(); len(out) > n {
		out = out[:n]
	}
	return out, nil
}
