package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/digestflow/internal/config"
	"github.com/ShayCichocki/digestflow/internal/state"
)

var (
	statusLimit int
	statusRunID string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent runs and their tasks",
	Long: `Display recent pipeline and make runs recorded in the project state
database, with the tasks of the most recent run.

Use --run to show the tasks of a specific run.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 5, "Number of recent runs to list")
	statusCmd.Flags().StringVar(&statusRunID, "run", "", "Show the tasks of this run")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	root, err := projectRoot()
	if err != nil {
		return err
	}

	dbPath := cfg.StatePath(root)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No runs yet. Run 'digestflow run <input_dir>' to start.")
		return nil
	}

	db, err := state.OpenWithDriver(cfg.Cache.Driver, dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	runs, err := db.ListRuns(statusLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs yet. Run 'digestflow run <input_dir>' to start.")
		return nil
	}

	fmt.Println("Recent Runs:")
	for _, r := range runs {
		displayRun(r)
	}

	runID := statusRunID
	if runID == "" {
		runID = runs[0].ID
	} else {
		r, err := db.GetRun(runID)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("run %s not found", runID)
		}
	}
	fmt.Println()
	return displayTaskRuns(db, runID)
}

func displayRun(r state.Run) {
	took := "running"
	if r.FinishedAt != nil {
		took = formatDuration(r.FinishedAt.Sub(r.StartedAt))
	}
	fmt.Printf("  %s  %s  %-8s %s ago, took %s  (%s)\n",
		r.ID, statusColor(string(r.Status)).Sprintf("%-11s", r.Status), r.Executor,
		formatDuration(time.Since(r.StartedAt)), took, r.InputDir)
}

func displayTaskRuns(db *state.DB, runID string) error {
	trs, err := db.ListTaskRuns(runID)
	if err != nil {
		return err
	}
	fmt.Printf("Tasks executed in run %s:\n", runID)
	if len(trs) == 0 {
		fmt.Println("  none (every task was cached)")
		return nil
	}
	for _, tr := range trs {
		line := fmt.Sprintf("  %-28s %s", tr.TaskID, statusColor(string(tr.Status)).Sprint(tr.Status))
		if tr.Error != "" {
			line += ": " + tr.Error
		}
		fmt.Println(line)
	}
	return nil
}

func statusColor(status string) *color.Color {
	switch status {
	case string(state.RunCompleted), string(state.TaskRunDone):
		return color.New(color.FgGreen)
	case string(state.RunFailed):
		return color.New(color.FgRed)
	case string(state.RunInterrupted):
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}
