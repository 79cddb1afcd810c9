package store

import "time"

// Attempt is one persisted submission attempt: enough to answer "what did we
// submit, where is it staged, and how did it end" across processes.
type Attempt struct {
	ID          string     `json:"id"` // ledger id, not the scheduler's
	Fingerprint string     `json:"fingerprint"`
	Kind        string     `json:"kind"`
	Name        string     `json:"name"`
	JobID       string     `json:"job_id,omitempty"` // scheduler-assigned
	State       string     `json:"state"`
	Error       string     `json:"error,omitempty"`
	WorkDir     string     `json:"work_dir,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store persists submission attempts. SQLite backs production; MemoryStore
// backs tests.
type Store interface {
	CreateAttempt(a *Attempt) error
	UpdateAttemptState(id, state, errMsg string) error
	SetAttemptJobID(id, jobID string) error
	GetAttempt(id string) (*Attempt, error)
	ListAttempts() ([]*Attempt, error)
	Close() error
}
