package sge

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/pbauer/gridq/pkg/logging"
	"github.com/pbauer/gridq/pkg/metrics"
)

// CommandRunner executes a shell command line and returns its combined
// output. Swappable in tests.
type CommandRunner func(ctx context.Context, cmdline string) ([]byte, error)

// ShellRunner runs the command line through the shell. The submit invocation
// is a pipeline (echo ... | qsub ...), so it needs one.
func ShellRunner(ctx context.Context, cmdline string) ([]byte, error) {
	return exec.CommandContext(ctx, "/bin/sh", "-c", cmdline).CombinedOutput()
}

// Client submits jobs to the scheduler and extracts the assigned job id.
type Client struct {
	Run CommandRunner
	Log *logging.Logger
}

// NewClient creates a submission client using the real shell.
func NewClient(log *logging.Logger) *Client {
	return &Client{Run: ShellRunner, Log: log}
}

// BuildSubmitCommand renders the qsub invocation. The hard wall-clock flag is
// included only when a limit is set. -V exports the submitting environment,
// -r y marks the job rerunnable after node failure.
func BuildSubmitCommand(cmd, jobName, outFile, errFile, parallelEnv string, slots int, wallClock string) string {
	hrt := ""
	if wallClock != "" {
		hrt = "-l h_rt=" + wallClock + " "
	}
	return fmt.Sprintf(`echo %s | qsub -o ":%s" -e ":%s" -V -r y %s-pe %s %d -N %s`,
		cmd, outFile, errFile, hrt, parallelEnv, slots, jobName)
}

// jobIDAnnouncement matches qsub's "Your job 77421 (...)" response line.
var jobIDAnnouncement = regexp.MustCompile(`Your job(?:-array)? (\d+)`)

// ParseJobID extracts the scheduler-assigned job id from the qsub response.
// Falls back to the first standalone integer token when the announcement
// line is absent (some sites wrap qsub).
func ParseJobID(response string) (string, error) {
	if m := jobIDAnnouncement.FindStringSubmatch(response); m != nil {
		return m[1], nil
	}
	for _, tok := range strings.Fields(response) {
		if tok != "" && isDigits(tok) {
			return tok, nil
		}
	}
	return "", fmt.Errorf("no job id found in qsub response")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Submit runs the rendered submit command and returns the scheduler-assigned
// job id. Any failure here is fatal: no RemoteJob is considered created.
func (c *Client) Submit(ctx context.Context, cmdline string) (string, error) {
	if c.Log != nil {
		c.Log.Debug("qsub command", map[string]interface{}{"command": cmdline})
	}

	out, err := c.Run(ctx, cmdline)
	if err != nil {
		return "", &SubmissionError{Command: cmdline, Output: string(out), Err: err}
	}
	metrics.SubmissionsTotal.Inc()

	if c.Log != nil {
		c.Log.Debug("qsub response", map[string]interface{}{"response": strings.TrimSpace(string(out))})
	}

	jobID, err := ParseJobID(string(out))
	if err != nil {
		return "", &SubmissionError{Command: cmdline, Output: string(out), Err: err}
	}
	return jobID, nil
}
