package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pbauer/gridq/pkg/local"
	"github.com/pbauer/gridq/pkg/staging"
	"github.com/pbauer/gridq/pkg/task"
)

// execCmd is the remote entry point. qsub runs this inside the job: it
// reloads the staged descriptor and dispatches the work through the kind
// registry, without needing the submitting process.
var execCmd = &cobra.Command{
	Use:   "exec <staging-dir> [workdir]",
	Short: "Execute a staged job descriptor (remote entry point)",
	Long: `Reload the job descriptor staged by the submitting process and run its
work. Deployments register their task kinds by importing the packages that
call task.Register before building the binary.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	stagingDir := args[0]
	d, workdir, err := staging.LoadDescriptor(stagingDir)
	if err != nil {
		return err
	}
	if len(args) > 1 {
		workdir = args[1]
	}

	// Work runs relative to the directory the submitting process used.
	if workdir != "" {
		if err := os.Chdir(workdir); err != nil {
			return fmt.Errorf("entering workdir %s: %w", workdir, err)
		}
	}

	log.Info("Executing staged job", map[string]interface{}{
		"kind": d.Kind, "name": d.JobName(), "staging_dir": stagingDir,
	})

	if err := local.Execute(context.Background(), d, task.DefaultRegistry, log); err != nil {
		// The error stream is the disambiguation side channel for the
		// submitting process; make sure the failure lands on it.
		fmt.Fprintf(os.Stderr, "work failed: %v\n", err)
		return err
	}
	return nil
}
