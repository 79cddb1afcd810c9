package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ParallelEnv != "openmp_fast" {
		t.Errorf("ParallelEnv = %s, want openmp_fast", cfg.ParallelEnv)
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Errorf("PollInterval = %v, want 5m (large enough to spare the login node)", cfg.PollInterval)
	}
	if cfg.WaitBudget != 60*time.Second {
		t.Errorf("WaitBudget = %v, want 60s", cfg.WaitBudget)
	}
	if cfg.WallClock != "24:00:00" {
		t.Errorf("WallClock = %s, want 24:00:00", cfg.WallClock)
	}
	if !cfg.KeepStagingDir {
		t.Error("KeepStagingDir should default to true for debugging")
	}
	if cfg.RunLocally {
		t.Error("RunLocally should default to false")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `
parallel_env: mpi_slow
poll_interval: 10m
wait_budget: 2m
run_locally: true
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ParallelEnv != "mpi_slow" {
		t.Errorf("ParallelEnv = %s, want mpi_slow", cfg.ParallelEnv)
	}
	if cfg.PollInterval != 10*time.Minute {
		t.Errorf("PollInterval = %v, want 10m", cfg.PollInterval)
	}
	if cfg.WaitBudget != 2*time.Minute {
		t.Errorf("WaitBudget = %v, want 2m", cfg.WaitBudget)
	}
	if !cfg.RunLocally {
		t.Error("RunLocally not read from config file")
	}
	// Unset keys keep their defaults.
	if cfg.WallClock != "24:00:00" {
		t.Errorf("WallClock = %s, want default", cfg.WallClock)
	}
}
