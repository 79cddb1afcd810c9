package sge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pbauer/gridq/pkg/config"
	"github.com/pbauer/gridq/pkg/local"
	"github.com/pbauer/gridq/pkg/logging"
	"github.com/pbauer/gridq/pkg/metrics"
	"github.com/pbauer/gridq/pkg/staging"
	"github.com/pbauer/gridq/pkg/store"
	"github.com/pbauer/gridq/pkg/task"
)

// Manager runs the full lifecycle of one task: stage, submit, poll, verify.
// Each call to Run is one independent, single-threaded sequence of blocking
// operations; callers run many of them concurrently if they want parallelism.
// Nothing here retries a fatal outcome; that is the orchestrator's job,
// informed by the task's retry policy.
type Manager struct {
	Cfg      *config.Config
	Stager   *staging.Stager
	Client   *Client
	Poller   *Poller
	Verifier *Verifier
	Ledger   store.Store // optional attempt ledger
	Registry *task.Registry
	Log      *logging.Logger
}

// NewManager wires a manager from configuration, using the real scheduler
// commands and the default work registry.
func NewManager(cfg *config.Config, ledger store.Store, log *logging.Logger) *Manager {
	return &Manager{
		Cfg:      cfg,
		Stager:   staging.NewStager(cfg.SharedTmpDir, log),
		Client:   NewClient(log),
		Poller:   NewPoller(cfg.PollInterval, log),
		Verifier: &Verifier{WaitBudget: cfg.WaitBudget, Log: log},
		Ledger:   ledger,
		Registry: task.DefaultRegistry,
		Log:      log,
	}
}

// Run executes the lifecycle for one task descriptor. It returns nil when
// the task is ReconciledDone, and one of the typed errors otherwise.
func (m *Manager) Run(ctx context.Context, d *task.Descriptor) error {
	log := m.Log.WithField("task", d.Kind)

	// The targets are the single source of truth. If they already exist,
	// there is nothing to submit.
	if d.Complete() {
		metrics.ShortCircuitsTotal.Inc()
		log.Info("Output targets already present, skipping submission")
		return nil
	}

	if !d.DependenciesComplete() {
		return fmt.Errorf("task %s: dependencies incomplete, refusing to submit", d.Kind)
	}

	if m.Cfg.RunLocally {
		return m.runLocal(ctx, d)
	}

	dir, err := m.Stager.Stage(d)
	if err != nil {
		metrics.JobFailuresTotal.WithLabelValues("staging").Inc()
		return &StagingError{Task: d.Kind, Err: err}
	}

	attemptID := uuid.NewString()
	m.recordAttempt(&store.Attempt{
		ID:          attemptID,
		Fingerprint: d.Fingerprint(),
		Kind:        d.Kind,
		Name:        d.JobName(),
		State:       string(StateQueued),
		WorkDir:     dir,
	})

	job := &RemoteJob{
		Task:         d,
		OutFile:      filepath.Join(dir, "job.out"),
		ErrFile:      filepath.Join(dir, "job.err"),
		WorkDir:      dir,
		State:        StateQueued,
		PollInterval: m.Cfg.PollInterval,
		CreatedAt:    time.Now(),
	}

	cmdline := BuildSubmitCommand(
		m.remoteCommand(d, dir),
		d.JobName(),
		job.OutFile,
		job.ErrFile,
		m.parallelEnv(d),
		m.slots(d),
		m.wallClock(d),
	)

	jobID, err := m.Client.Submit(ctx, cmdline)
	if err != nil {
		m.recordOutcome(attemptID, StateFailed, err)
		metrics.JobFailuresTotal.WithLabelValues("submission").Inc()
		return err
	}
	job.ID = jobID
	if m.Ledger != nil {
		if lerr := m.Ledger.SetAttemptJobID(attemptID, jobID); lerr != nil {
			log.Warn("Failed to record job id", map[string]interface{}{"error": lerr.Error()})
		}
	}
	log.Info("Job submitted", map[string]interface{}{"job_id": jobID})

	if err := m.Poller.Track(ctx, job); err != nil {
		m.recordOutcome(attemptID, job.State, err)
		metrics.JobFailuresTotal.WithLabelValues(failureClass(err)).Inc()
		return err
	}

	if err := m.Verifier.Await(ctx, job); err != nil {
		m.recordOutcome(attemptID, job.State, err)
		metrics.JobFailuresTotal.WithLabelValues(failureClass(err)).Inc()
		return err
	}

	m.recordOutcome(attemptID, StateReconciledDone, nil)

	if !m.Cfg.KeepStagingDir {
		if rerr := m.Stager.Remove(dir); rerr != nil {
			log.Warn("Failed to remove staging directory", map[string]interface{}{"error": rerr.Error()})
		}
	}
	return nil
}

// runLocal executes the work in-process and still reconciles the targets:
// even a local run has to prove itself through its outputs.
func (m *Manager) runLocal(ctx context.Context, d *task.Descriptor) error {
	if err := local.Execute(ctx, d, m.Registry, m.Log); err != nil {
		metrics.JobFailuresTotal.WithLabelValues("failed_job").Inc()
		return &FailedJobError{JobID: "local", Task: d.Kind, CapturedErrors: []string{err.Error()}}
	}

	job := &RemoteJob{ID: "local", Task: d, State: StateUnknown, CreatedAt: time.Now()}
	if err := m.Verifier.Await(ctx, job); err != nil {
		metrics.JobFailuresTotal.WithLabelValues(failureClass(err)).Inc()
		return err
	}
	return nil
}

// remoteCommand builds the command the job runs on the compute node: the
// exec entry point against the staging directory, prefixed by the profile
// script when code bundling is disabled. Single-quoted as a whole so the
// pipeline into qsub survives it.
func (m *Manager) remoteCommand(d *task.Descriptor, dir string) string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	cmd := fmt.Sprintf(`%s "%s" "%s"`, m.Cfg.ExecCommand, dir, cwd)
	if !d.Staging.BundleCode && m.Cfg.ProfileScript != "" {
		if _, err := os.Stat(m.Cfg.ProfileScript); err == nil {
			cmd = fmt.Sprintf(`. %s; %s`, m.Cfg.ProfileScript, cmd)
		}
	}
	return "'" + cmd + "'"
}

func (m *Manager) parallelEnv(d *task.Descriptor) string {
	if d.Resources.ParallelEnv != "" {
		return d.Resources.ParallelEnv
	}
	return m.Cfg.ParallelEnv
}

func (m *Manager) slots(d *task.Descriptor) int {
	if d.Resources.Slots > 0 {
		return d.Resources.Slots
	}
	return 1
}

func (m *Manager) wallClock(d *task.Descriptor) string {
	if d.Resources.WallClock != "" {
		return d.Resources.WallClock
	}
	return m.Cfg.WallClock
}

func (m *Manager) recordAttempt(a *store.Attempt) {
	if m.Ledger == nil {
		return
	}
	if err := m.Ledger.CreateAttempt(a); err != nil {
		m.Log.Warn("Failed to record attempt", map[string]interface{}{"error": err.Error()})
	}
}

func (m *Manager) recordOutcome(attemptID string, state JobState, cause error) {
	if m.Ledger == nil {
		return
	}
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	if err := m.Ledger.UpdateAttemptState(attemptID, string(state), errMsg); err != nil {
		m.Log.Warn("Failed to record outcome", map[string]interface{}{"error": err.Error()})
	}
}

// failureClass buckets a lifecycle error for metrics.
func failureClass(err error) string {
	var (
		stagingErr    *StagingError
		submissionErr *SubmissionError
		failedErr     *FailedJobError
		unknownErr    *UnknownStateError
		incompleteErr *IncompleteAfterWaitError
	)
	switch {
	case errors.As(err, &stagingErr):
		return "staging"
	case errors.As(err, &submissionErr):
		return "submission"
	case errors.As(err, &failedErr):
		return "failed_job"
	case errors.As(err, &unknownErr):
		return "unknown_state"
	case errors.As(err, &incompleteErr):
		return "incomplete_after_wait"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "status_query"
	}
}
