package sge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pbauer/gridq/pkg/task"
)

// provisionalJob builds a job the poller just released: record purged, no
// error output, outputs declared but not yet visible.
func provisionalJob(t *testing.T) (*RemoteJob, string) {
	t.Helper()
	dir := t.TempDir()
	target := filepath.Join(dir, "result.xvg")
	job := &RemoteJob{
		ID: "77421",
		Task: &task.Descriptor{
			Kind:    "analyze",
			Params:  map[string]string{"protein": "1brs", "repeat": "0"},
			Targets: task.TargetSet{{Path: target}},
		},
		ErrFile: filepath.Join(dir, "job.err"),
		State:   StateUnknown,
	}
	return job, target
}

func TestAwaitReconcilesOnceTargetsAppear(t *testing.T) {
	job, target := provisionalJob(t)
	v := &Verifier{WaitBudget: 10 * time.Second, Log: quietLogger()}

	// Simulate the shared filesystem catching up mid-wait.
	go func() {
		time.Sleep(1500 * time.Millisecond)
		os.WriteFile(target, []byte("data"), 0644)
	}()

	if err := v.Await(context.Background(), job); err != nil {
		t.Fatalf("Await() error = %v, want reconciliation", err)
	}
	if job.State != StateReconciledDone {
		t.Errorf("job state = %v, want %v", job.State, StateReconciledDone)
	}
}

func TestAwaitShortCircuitsWhenAlreadyComplete(t *testing.T) {
	job, target := provisionalJob(t)
	if err := os.WriteFile(target, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	v := &Verifier{WaitBudget: time.Hour, Log: quietLogger()}
	start := time.Now()
	if err := v.Await(context.Background(), job); err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Await slept despite targets being present")
	}
}

func TestAwaitBudgetExhaustionCarriesDiagnostics(t *testing.T) {
	job, target := provisionalJob(t)
	v := &Verifier{WaitBudget: 2 * time.Second, Log: quietLogger()}

	err := v.Await(context.Background(), job)
	var incomplete *IncompleteAfterWaitError
	if !errors.As(err, &incomplete) {
		t.Fatalf("Await() error = %T, want *IncompleteAfterWaitError", err)
	}

	// The diagnostic must carry every significant parameter for triage.
	for _, want := range []string{"kind=analyze", "protein=1brs", "repeat=0"} {
		if !strings.Contains(incomplete.Params, want) {
			t.Errorf("diagnostic params %q missing %q", incomplete.Params, want)
		}
	}
	if len(incomplete.Missing) != 1 || incomplete.Missing[0] != target {
		t.Errorf("Missing = %v, want [%s]", incomplete.Missing, target)
	}
	if job.State != StateFailed {
		t.Errorf("job state = %v, want %v", job.State, StateFailed)
	}
}

func TestAwaitConvertsLateErrorOutputToFailure(t *testing.T) {
	job, target := provisionalJob(t)
	_ = target // targets never appear; the error stream does instead

	go func() {
		time.Sleep(1200 * time.Millisecond)
		os.WriteFile(job.ErrFile, []byte("Fatal error: cannot open traj.trr\n"), 0644)
	}()

	v := &Verifier{WaitBudget: 10 * time.Second, Log: quietLogger()}
	err := v.Await(context.Background(), job)

	var failed *FailedJobError
	if !errors.As(err, &failed) {
		t.Fatalf("Await() error = %T, want *FailedJobError", err)
	}
	if job.State != StateFailed {
		t.Errorf("job state = %v, want %v", job.State, StateFailed)
	}
}

func TestAwaitHonorsCancellation(t *testing.T) {
	job, _ := provisionalJob(t)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	v := &Verifier{WaitBudget: time.Hour, Log: quietLogger()}
	if err := v.Await(ctx, job); !errors.Is(err, context.Canceled) {
		t.Errorf("Await() error = %v, want context.Canceled", err)
	}
}
