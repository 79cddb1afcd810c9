package store

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and scheduler-less runs.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts map[string]*Attempt
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string]*Attempt)}
}

// CreateAttempt inserts a new attempt.
func (m *MemoryStore) CreateAttempt(a *Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.attempts[a.ID]; exists {
		return fmt.Errorf("attempt already exists: %s", a.ID)
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	copied := *a
	m.attempts[a.ID] = &copied
	return nil
}

// UpdateAttemptState records a state change.
func (m *MemoryStore) UpdateAttemptState(id, state, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[id]
	if !ok {
		return fmt.Errorf("attempt not found: %s", id)
	}
	a.State = state
	a.Error = errMsg
	a.UpdatedAt = time.Now().UTC()
	if state == "failed" || state == "reconciled_done" {
		t := a.UpdatedAt
		a.CompletedAt = &t
	}
	return nil
}

// SetAttemptJobID records the scheduler-assigned job id.
func (m *MemoryStore) SetAttemptJobID(id, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[id]
	if !ok {
		return fmt.Errorf("attempt not found: %s", id)
	}
	a.JobID = jobID
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// GetAttempt fetches an attempt by ledger id.
func (m *MemoryStore) GetAttempt(id string) (*Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.attempts[id]
	if !ok {
		return nil, fmt.Errorf("attempt not found: %s", id)
	}
	copied := *a
	return &copied, nil
}

// ListAttempts returns all attempts, newest first.
func (m *MemoryStore) ListAttempts() ([]*Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	attempts := make([]*Attempt, 0, len(m.attempts))
	for _, a := range m.attempts {
		copied := *a
		attempts = append(attempts, &copied)
	}
	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].CreatedAt.After(attempts[j].CreatedAt)
	})
	return attempts, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
