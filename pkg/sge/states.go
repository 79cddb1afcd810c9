package sge

import (
	"fmt"
	"time"

	"github.com/pbauer/gridq/pkg/task"
)

// JobState is the internal view of one submission attempt.
type JobState string

const (
	StateQueued         JobState = "queued"
	StateRunning        JobState = "running"
	StateTransferring   JobState = "transferring"
	StateFailed         JobState = "failed"
	StateUnknown        JobState = "unknown"
	StateReconciledDone JobState = "reconciled_done"
)

// validTransitions maps from-state to allowed to-states. Non-terminal states
// may move freely between each other (the queue can requeue a running job);
// terminal states allow nothing. Unknown only resolves to a terminal state.
var validTransitions = map[JobState]map[JobState]bool{
	StateQueued: {
		StateQueued:       true,
		StateRunning:      true,
		StateTransferring: true,
		StateUnknown:      true,
		StateFailed:       true,
	},
	StateRunning: {
		StateQueued:       true,
		StateRunning:      true,
		StateTransferring: true,
		StateUnknown:      true,
		StateFailed:       true,
	},
	StateTransferring: {
		StateQueued:       true,
		StateRunning:      true,
		StateTransferring: true,
		StateUnknown:      true,
		StateFailed:       true,
	},
	StateUnknown: {
		StateFailed:         true,
		StateReconciledDone: true,
	},
	// Terminal states (no transitions allowed)
	StateFailed:         {},
	StateReconciledDone: {},
}

// ValidateTransition checks if a state transition is valid.
func ValidateTransition(from, to JobState) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminalState returns true if the state is terminal (no further transitions).
func IsTerminalState(state JobState) bool {
	return state == StateFailed || state == StateReconciledDone
}

// RemoteJob is one submission attempt of a task descriptor. It is created at
// submit time and discarded, or left in the attempt ledger for debugging,
// once terminal.
type RemoteJob struct {
	ID           string // scheduler-assigned, opaque
	Task         *task.Descriptor
	OutFile      string // stdout capture path
	ErrFile      string // stderr capture path
	WorkDir      string // staging directory
	State        JobState
	PollInterval time.Duration
	CreatedAt    time.Time
}

// setState applies a transition, enforcing monotonicity toward a terminal
// state. An invalid transition is a programming error here, so it panics
// rather than letting a terminal job silently come back to life.
func (j *RemoteJob) setState(to JobState) {
	if j.State == to {
		return
	}
	if err := ValidateTransition(j.State, to); err != nil {
		panic(fmt.Sprintf("sge: job %s: %v", j.ID, err))
	}
	j.State = to
}
