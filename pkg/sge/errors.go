package sge

import (
	"fmt"
	"strings"
	"time"
)

// StagingError means the working directory or descriptor could not be
// prepared. No job was submitted.
type StagingError struct {
	Task string
	Err  error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("staging failed for task %s: %v", e.Task, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// SubmissionError means the submit invocation exited non-zero or its response
// carried no recognizable job id. No RemoteJob is tracked.
type SubmissionError struct {
	Command string
	Output  string
	Err     error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("submission failed: %v (command: %s)", e.Err, e.Command)
	if e.Output != "" {
		msg += "\nscheduler response:\n" + e.Output
	}
	return msg
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// FailedJobError means the scheduler reported, or side evidence inferred,
// that the job failed. CapturedErrors holds whatever the job wrote to its
// error stream.
type FailedJobError struct {
	JobID          string
	Task           string
	CapturedErrors []string
}

func (e *FailedJobError) Error() string {
	msg := fmt.Sprintf("job %s failed (task %s)", e.JobID, e.Task)
	if len(e.CapturedErrors) > 0 {
		msg += ":\n" + strings.Join(e.CapturedErrors, "\n")
	}
	return msg
}

// UnknownStateError means qstat reported a status outside the known
// vocabulary. Masking it would risk reporting false success, so it is fatal.
type UnknownStateError struct {
	JobID     string
	RawStatus string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("job %s reported unrecognized scheduler status %q", e.JobID, e.RawStatus)
}

// IncompleteAfterWaitError means the scheduler considered the job gone but
// the output targets never materialized within the wait budget. It carries
// every significant parameter of the task for post-mortem triage.
type IncompleteAfterWaitError struct {
	Task    string
	Params  string
	Waited  time.Duration
	Missing []string
}

func (e *IncompleteAfterWaitError) Error() string {
	return fmt.Sprintf("task %s incomplete after waiting %s for output sync; params: {%s}; missing targets: %s",
		e.Task, e.Waited, e.Params, strings.Join(e.Missing, ", "))
}
