package rules

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory rule store for tests and demo mode.
//
// Rules live in a slice where index i holds the rule with id i+1, so the
// contiguous-id invariant is structural: renumbering after a delete is just
// rewriting the id column to match the index.
type MemoryStore struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewMemoryStore creates an empty in-memory rule store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) List(_ context.Context) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, condition, action string, enabled bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := len(s.rules) + 1
	s.rules = append(s.rules, Rule{
		ID:        id,
		Condition: condition,
		Action:    action,
		Enabled:   enabled,
	})
	return id, nil
}

func (s *MemoryStore) Update(_ context.Context, id int, condition, action string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 1 || id > len(s.rules) {
		return ErrRuleNotFound
	}
	s.rules[id-1] = Rule{ID: id, Condition: condition, Action: action, Enabled: enabled}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 1 || id > len(s.rules) {
		return ErrRuleNotFound
	}
	s.rules = append(s.rules[:id-1], s.rules[id:]...)
	for i := range s.rules {
		s.rules[i].ID = i + 1
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
