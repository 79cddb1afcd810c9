package task

import "time"

// Policy overrides the orchestrator's circuit breaker per task: how long
// failures are counted for, and how many are tolerated inside that window
// before the task is disabled. The lifecycle manager never retries anything
// itself; it only exposes these values.
type Policy struct {
	// DisableWindow is the span over which failures are counted.
	DisableWindow time.Duration

	// Tolerance is the number of failures allowed inside DisableWindow
	// before the orchestrator stops scheduling the task.
	Tolerance int
}

// DefaultPolicy counts failures over a week and tolerates none: any failure
// is significant unless the task explicitly widens tolerance.
func DefaultPolicy() Policy {
	return Policy{
		DisableWindow: 7 * 24 * time.Hour,
		Tolerance:     0,
	}
}

// WindowOrDefault returns the disable window, falling back to the default
// when the policy was left zero-valued.
func (p Policy) WindowOrDefault() time.Duration {
	if p.DisableWindow <= 0 {
		return DefaultPolicy().DisableWindow
	}
	return p.DisableWindow
}
