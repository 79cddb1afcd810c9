package sge

import (
	"context"
	"os/exec"
	"strings"

	"github.com/pbauer/gridq/pkg/retry"
)

// Raw scheduler status codes. The queue purges a job's record once it leaves
// the queue, so "not in the table" is a real signal, reported as StatusGone.
const (
	StatusRunning      = "r"
	StatusQueuedWait   = "qw"
	StatusWaiting      = "w"
	StatusTransferring = "t"
	StatusGone         = "u" // record purged: finished or failed, ambiguous
)

// StatusQuerier returns the scheduler's current status table.
type StatusQuerier func(ctx context.Context) (string, error)

// QstatQuerier shells out to qstat, retrying transient failures: a shared
// login node occasionally refuses a connection, and that says nothing about
// the job itself.
func QstatQuerier(ctx context.Context) (string, error) {
	var out []byte
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		var runErr error
		out, runErr = exec.CommandContext(ctx, "qstat").Output()
		return runErr
	})
	return string(out), err
}

// ParseQueueState finds jobID's status field in the qstat table. Returns
// StatusGone when the job has no row. The table layout is:
//
//	job-ID  prior  name  user  state  submit/start at  queue  slots
func ParseQueueState(table, jobID string) string {
	for _, line := range strings.Split(table, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		if fields[0] == jobID {
			return fields[4]
		}
	}
	return StatusGone
}
