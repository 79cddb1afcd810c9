package sge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pbauer/gridq/pkg/config"
	"github.com/pbauer/gridq/pkg/staging"
	"github.com/pbauer/gridq/pkg/store"
	"github.com/pbauer/gridq/pkg/task"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		SharedTmpDir:   filepath.Join(t.TempDir(), "stage"),
		ParallelEnv:    "openmp_fast",
		WallClock:      "24:00:00",
		PollInterval:   time.Millisecond,
		WaitBudget:     2 * time.Second,
		ExecCommand:    "gridq exec",
		KeepStagingDir: true,
	}
}

func testManager(t *testing.T, cfg *config.Config, run CommandRunner, query StatusQuerier) (*Manager, *store.MemoryStore) {
	t.Helper()
	log := quietLogger()
	ledger := store.NewMemoryStore()
	return &Manager{
		Cfg:      cfg,
		Stager:   staging.NewStager(cfg.SharedTmpDir, log),
		Client:   &Client{Run: run, Log: log},
		Poller:   &Poller{Query: query, Interval: cfg.PollInterval, Log: log},
		Verifier: &Verifier{WaitBudget: cfg.WaitBudget, Log: log},
		Ledger:   ledger,
		Registry: task.NewRegistry(),
		Log:      log,
	}, ledger
}

func lifecycleTask(t *testing.T) (*task.Descriptor, string) {
	t.Helper()
	target := filepath.Join(t.TempDir(), "frame0.gro")
	return &task.Descriptor{
		Kind:    "gen_morphes",
		Params:  map[string]string{"protein": "1brs", "repeat": "0"},
		Targets: task.TargetSet{{Path: target}},
	}, target
}

func TestRunShortCircuitsWhenAlreadyComplete(t *testing.T) {
	d, target := lifecycleTask(t)
	if err := os.WriteFile(target, []byte("atoms"), 0644); err != nil {
		t.Fatal(err)
	}

	submitted := false
	m, _ := testManager(t, testConfig(t),
		func(ctx context.Context, cmdline string) ([]byte, error) {
			submitted = true
			return []byte(`Your job 1 ("x") has been submitted`), nil
		},
		func(ctx context.Context) (string, error) { return "", nil },
	)

	if err := m.Run(context.Background(), d); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if submitted {
		t.Error("a task whose targets already exist must not be submitted")
	}
}

func TestRunRefusesIncompleteDependencies(t *testing.T) {
	d, _ := lifecycleTask(t)
	dep, _ := lifecycleTask(t)
	dep.Kind = "prep_folder"
	d.Deps = []*task.Descriptor{dep}

	m, _ := testManager(t, testConfig(t),
		func(ctx context.Context, cmdline string) ([]byte, error) {
			t.Error("submitted despite incomplete dependencies")
			return nil, nil
		},
		func(ctx context.Context) (string, error) { return "", nil },
	)

	if err := m.Run(context.Background(), d); err == nil {
		t.Error("Run() with incomplete dependencies did not fail")
	}
}

func TestRunFullLifecycle(t *testing.T) {
	d, target := lifecycleTask(t)

	var submittedCmd string
	calls := 0
	m, ledger := testManager(t, testConfig(t),
		func(ctx context.Context, cmdline string) ([]byte, error) {
			submittedCmd = cmdline
			return []byte(`Your job 77421 ("gridq_gen_morphes") has been submitted`), nil
		},
		func(ctx context.Context) (string, error) {
			calls++
			switch calls {
			case 1:
				return tableFor("77421", "r"), nil
			default:
				// Job leaves the queue; the work's output lands just after.
				os.WriteFile(target, []byte("atoms"), 0644)
				return tableFor("77421", ""), nil
			}
		},
	)

	if err := m.Run(context.Background(), d); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, want := range []string{"-pe openmp_fast 1", "-l h_rt=24:00:00", "-N gridq_gen_morphes", "| qsub"} {
		if !strings.Contains(submittedCmd, want) {
			t.Errorf("submit command missing %q:\n%s", want, submittedCmd)
		}
	}

	attempts, err := ledger.ListAttempts()
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(attempts))
	}
	a := attempts[0]
	if a.State != string(StateReconciledDone) {
		t.Errorf("ledger state = %s, want %s", a.State, StateReconciledDone)
	}
	if a.JobID != "77421" {
		t.Errorf("ledger job id = %s, want 77421", a.JobID)
	}

	// The staging directory must hold a reloadable descriptor.
	reloaded, _, err := staging.LoadDescriptor(a.WorkDir)
	if err != nil {
		t.Fatalf("LoadDescriptor(%s) error = %v", a.WorkDir, err)
	}
	if reloaded.Kind != d.Kind {
		t.Errorf("reloaded kind = %s, want %s", reloaded.Kind, d.Kind)
	}
}

func TestRunSurfacesJobFailure(t *testing.T) {
	d, _ := lifecycleTask(t)

	m, ledger := testManager(t, testConfig(t),
		func(ctx context.Context, cmdline string) ([]byte, error) {
			return []byte(`Your job 5 ("x") has been submitted`), nil
		},
		func(ctx context.Context) (string, error) {
			return tableFor("5", "Eqw"), nil
		},
	)

	err := m.Run(context.Background(), d)
	var failed *FailedJobError
	if !errors.As(err, &failed) {
		t.Fatalf("Run() error = %T, want *FailedJobError", err)
	}

	attempts, _ := ledger.ListAttempts()
	if len(attempts) != 1 || attempts[0].State != string(StateFailed) {
		t.Errorf("ledger did not record the failure: %+v", attempts)
	}
}

func TestRunIncompleteAfterWait(t *testing.T) {
	d, _ := lifecycleTask(t)
	cfg := testConfig(t)
	cfg.WaitBudget = time.Second

	m, _ := testManager(t, cfg,
		func(ctx context.Context, cmdline string) ([]byte, error) {
			return []byte(`Your job 6 ("x") has been submitted`), nil
		},
		func(ctx context.Context) (string, error) {
			return tableFor("6", ""), nil // purged immediately, outputs never appear
		},
	)

	err := m.Run(context.Background(), d)
	var incomplete *IncompleteAfterWaitError
	if !errors.As(err, &incomplete) {
		t.Fatalf("Run() error = %T, want *IncompleteAfterWaitError", err)
	}
}

func TestRunLocallySkipsScheduler(t *testing.T) {
	d, target := lifecycleTask(t)
	cfg := testConfig(t)
	cfg.RunLocally = true

	m, _ := testManager(t, cfg,
		func(ctx context.Context, cmdline string) ([]byte, error) {
			t.Error("qsub invoked in local mode")
			return nil, nil
		},
		func(ctx context.Context) (string, error) { return "", nil },
	)
	m.Registry.Register("gen_morphes", func() task.Work {
		return task.WorkFunc(func(ctx context.Context, d *task.Descriptor) error {
			return os.WriteFile(target, []byte("atoms"), 0644)
		})
	})

	if err := m.Run(context.Background(), d); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
