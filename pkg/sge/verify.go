package sge

import (
	"context"
	"time"

	"github.com/pbauer/gridq/pkg/logging"
	"github.com/pbauer/gridq/pkg/metrics"
)

// Verifier reconciles a provisionally-done job against its output targets.
// Writes through the shared filesystem may lag behind the scheduler's view,
// so the completeness check is retried once per second for a bounded budget.
type Verifier struct {
	WaitBudget time.Duration
	Log        *logging.Logger
}

// Await blocks until the job's output targets are all present, or the wait
// budget runs out. The error capture file is re-checked on every step: a job
// that failed after its queue record was purged, but before its error stream
// was flushed, must not be reported as success.
func (v *Verifier) Await(ctx context.Context, job *RemoteJob) error {
	log := v.Log.WithField("job_id", job.ID)
	start := time.Now()

	for {
		if captured := CapturedErrors(job.ErrFile); len(captured) > 0 {
			job.setState(StateFailed)
			log.Error("Error output appeared during output sync wait")
			return &FailedJobError{JobID: job.ID, Task: job.Task.Kind, CapturedErrors: captured}
		}

		if job.Task.Complete() {
			job.setState(StateReconciledDone)
			waited := time.Since(start)
			metrics.ReconciliationsTotal.Inc()
			metrics.ReconcileWaitSeconds.Observe(waited.Seconds())
			log.Info("Job is done", map[string]interface{}{"wait": waited.String()})
			return nil
		}

		if time.Since(start) >= v.WaitBudget {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	job.setState(StateFailed)
	return &IncompleteAfterWaitError{
		Task:    job.Task.Kind,
		Params:  job.Task.SignificantParams(),
		Waited:  v.WaitBudget,
		Missing: job.Task.Targets.Missing(),
	}
}
