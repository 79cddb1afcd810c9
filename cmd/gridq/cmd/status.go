package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pbauer/gridq/pkg/store"
)

// statusCmd lists tracked submission attempts from the ledger.
var statusCmd = &cobra.Command{
	Use:   "status [attempt-id]",
	Short: "Show tracked submission attempts",
	Long:  `List submission attempts recorded in the attempt ledger, or show one attempt in detail.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ledger, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening attempt ledger: %w", err)
	}
	defer ledger.Close()

	if len(args) == 1 {
		attempt, err := ledger.GetAttempt(args[0])
		if err != nil {
			return err
		}
		return displayAttempt(attempt)
	}

	attempts, err := ledger.ListAttempts()
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(attempts, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Attempt", "Kind", "Name", "Job ID", "State", "Created", "Error")

	for _, a := range attempts {
		jobID := a.JobID
		if jobID == "" {
			jobID = "-"
		}
		errDisplay := "-"
		if a.Error != "" {
			errDisplay = truncate(a.Error, 60)
		}
		table.Append(
			a.ID[:8],
			a.Kind,
			a.Name,
			jobID,
			a.State,
			a.CreatedAt.Format("2006-01-02 15:04"),
			errDisplay,
		)
	}

	table.Render()
	fmt.Printf("\nTotal attempts: %d\n", len(attempts))
	return nil
}

func displayAttempt(a *store.Attempt) error {
	if IsJSONOutput() {
		output, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")

	table.Append("Attempt", a.ID)
	table.Append("Fingerprint", a.Fingerprint)
	table.Append("Kind", a.Kind)
	table.Append("Name", a.Name)
	if a.JobID != "" {
		table.Append("Job ID", a.JobID)
	}
	table.Append("State", a.State)
	if a.WorkDir != "" {
		table.Append("Staging Dir", a.WorkDir)
	}
	table.Append("Created At", a.CreatedAt.Format(time.RFC3339))
	if a.CompletedAt != nil {
		table.Append("Completed At", a.CompletedAt.Format(time.RFC3339))
	}
	if a.Error != "" {
		table.Append("Error", a.Error)
	}

	table.Render()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
