package sge

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pbauer/gridq/pkg/logging"
	"github.com/pbauer/gridq/pkg/metrics"
)

// Poller tracks a submitted job until the scheduler stops reporting on it.
// It blocks between queries; the interval must stay large (minutes) to avoid
// hammering the shared control node, but smaller than the queue's own status
// update period.
type Poller struct {
	Query    StatusQuerier
	Interval time.Duration
	Log      *logging.Logger
}

// NewPoller creates a poller backed by the real qstat.
func NewPoller(interval time.Duration, log *logging.Logger) *Poller {
	return &Poller{Query: QstatQuerier, Interval: interval, Log: log}
}

// Track polls the scheduler until the job reaches a terminal condition.
//
// Returns nil when the job's record was purged with no captured error
// output: that is only provisional success, and the caller must still
// reconcile against the output targets. Returns FailedJobError when the
// scheduler flags an error state or the error stream is non-empty, and
// UnknownStateError for any status outside the known vocabulary.
func (p *Poller) Track(ctx context.Context, job *RemoteJob) error {
	log := p.Log.WithField("job_id", job.ID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Interval):
		}

		table, err := p.Query(ctx)
		if err != nil {
			return fmt.Errorf("status query for job %s: %w", job.ID, err)
		}
		metrics.PollsTotal.Inc()

		status := ParseQueueState(table, job.ID)
		switch {
		case status == StatusRunning:
			job.setState(StateRunning)
			log.Info("Job is running")

		case status == StatusQueuedWait || status == StatusWaiting:
			job.setState(StateQueued)
			log.Info("Job is pending")

		case status == StatusTransferring:
			job.setState(StateTransferring)
			log.Info("Job is transferring")

		case strings.Contains(status, "E"):
			captured := CapturedErrors(job.ErrFile)
			job.setState(StateFailed)
			log.Error("Job has FAILED", map[string]interface{}{"status": status})
			return &FailedJobError{JobID: job.ID, Task: job.Task.Kind, CapturedErrors: captured}

		case status == StatusGone:
			// Record purged: finished or failed, the queue no longer
			// knows. Disambiguate via the captured error stream.
			job.setState(StateUnknown)
			captured := CapturedErrors(job.ErrFile)
			if len(captured) > 0 {
				job.setState(StateFailed)
				log.Error("Job has FAILED")
				return &FailedJobError{JobID: job.ID, Task: job.Task.Kind, CapturedErrors: captured}
			}
			log.Info("Job left the queue with no error output, reconciling outputs")
			return nil

		default:
			log.Error("Job status is UNKNOWN", map[string]interface{}{"status": status})
			return &UnknownStateError{JobID: job.ID, RawStatus: status}
		}
	}
}

// CapturedErrors reads the job's error capture file and returns its
// non-empty lines. A missing file means nothing was captured.
func CapturedErrors(errFile string) []string {
	data, err := os.ReadFile(errFile)
	if err != nil {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
