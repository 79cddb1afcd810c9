package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the lifecycle manager reads from the environment:
// where to stage, how to talk to the queue, and how patient to be with the
// shared filesystem.
type Config struct {
	// SharedTmpDir is the staging root on the shared filesystem, visible
	// to both the submitting host and the compute nodes.
	SharedTmpDir string `mapstructure:"shared_tmp_dir"`

	// ParallelEnv is the default named parallel environment for qsub -pe.
	ParallelEnv string `mapstructure:"parallel_env"`

	// WallClock is the default hard time limit (hh:mm:ss). Empty disables
	// the -l h_rt flag.
	WallClock string `mapstructure:"wall_clock"`

	// PollInterval is how long the poller sleeps between qstat queries.
	// Keep it large: the control node is shared.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// WaitBudget bounds how long the verifier waits for the shared
	// filesystem to expose output files after the queue releases a job.
	WaitBudget time.Duration `mapstructure:"wait_budget"`

	// ProfileScript is sourced on the compute node to establish the
	// execution environment when code bundling is disabled.
	ProfileScript string `mapstructure:"profile_script"`

	// ExecCommand is the remote entry point invoked inside the job.
	ExecCommand string `mapstructure:"exec_command"`

	// KeepStagingDir leaves staging directories in place after the job
	// finishes, for debugging.
	KeepStagingDir bool `mapstructure:"keep_staging_dir"`

	// RunLocally skips the scheduler entirely and executes work
	// in-process. For hosts without a queue.
	RunLocally bool `mapstructure:"run_locally"`

	// DatabasePath is the attempt ledger location.
	DatabasePath string `mapstructure:"database_path"`

	// ListenAddr is the monitor HTTP bind address.
	ListenAddr string `mapstructure:"listen_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// Load reads the config file ($HOME/.gridq/config.yaml unless overridden)
// and GRIDQ_* environment variables, on top of defaults tuned for a shared
// cluster.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("finding home directory: %w", err)
	}

	v.SetDefault("shared_tmp_dir", filepath.Join(home, "temp"))
	v.SetDefault("parallel_env", "openmp_fast")
	v.SetDefault("wall_clock", "24:00:00")
	v.SetDefault("poll_interval", 5*time.Minute)
	v.SetDefault("wait_budget", 60*time.Second)
	v.SetDefault("profile_script", filepath.Join(home, ".gridq_profile"))
	v.SetDefault("exec_command", "gridq exec")
	v.SetDefault("keep_staging_dir", true)
	v.SetDefault("run_locally", false)
	v.SetDefault("database_path", filepath.Join(home, ".gridq", "attempts.db"))
	v.SetDefault("listen_addr", ":9632")
	v.SetDefault("log_level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(filepath.Join(home, ".gridq"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("GRIDQ")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env carry it.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
