package decision

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	decisions map[string]*Decision
	amounts   map[string]float64
	order     []string // transaction ids in insertion order
	reports   map[string]*FraudReport
}

// NewMemoryStore creates an empty in-memory decision store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		decisions: make(map[string]*Decision),
		amounts:   make(map[string]float64),
		reports:   make(map[string]*FraudReport),
	}
}

// Record inserts a decision, failing with ErrDuplicate on a repeated id.
func (s *MemoryStore) Record(_ context.Context, d *Decision, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.decisions[d.TransactionID]; exists {
		return ErrDuplicate
	}
	stored := *d
	s.decisions[d.TransactionID] = &stored
	s.amounts[d.TransactionID] = amount
	s.order = append(s.order, d.TransactionID)
	return nil
}

// Get returns the decision for a transaction id.
func (s *MemoryStore) Get(_ context.Context, transactionID string) (*Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.decisions[transactionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *d
	return &out, nil
}

// List returns the most recent decisions, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]*Decision, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		d := *s.decisions[s.order[i]]
		out = append(out, &d)
	}
	return out, nil
}

// Report appends a fraud report, failing with ErrDuplicate if the
// transaction id was already reported.
func (s *MemoryStore) Report(_ context.Context, r *FraudReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[r.TransactionID]; exists {
		return ErrDuplicate
	}
	stored := *r
	s.reports[r.TransactionID] = &stored
	return nil
}
