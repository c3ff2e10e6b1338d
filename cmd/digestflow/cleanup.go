package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/digestflow/internal/config"
)

var (
	cleanupOlderThan time.Duration
	cleanupDryRun    bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge old runs from the state database",
	Long: `Delete runs started longer ago than --older-than, together with their
task records. Purged task records no longer serve as cache entries, so the
affected tasks execute again on the next run.

Runs left in the running state by a crash are marked interrupted first.

Examples:
  digestflow cleanup                      # purge runs older than 30 days
  digestflow cleanup --older-than 24h
  digestflow cleanup --older-than 0       # purge everything
  digestflow cleanup --dry-run`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 30*24*time.Hour, "Purge runs started longer ago than this")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be purged without purging")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if cleanupOlderThan < 0 {
		return fmt.Errorf("--older-than must not be negative")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	root, err := projectRoot()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.StatePath(root)); os.IsNotExist(err) {
		fmt.Println("No database found - no runs to purge.")
		return nil
	}

	db, err := openStore(cfg, root)
	if err != nil {
		return err
	}
	defer db.Close()

	if cleanupDryRun {
		runs, err := db.ListRuns(0)
		if err != nil {
			return err
		}
		cutoff := time.Now().Add(-cleanupOlderThan)
		n := 0
		for _, r := range runs {
			if r.StartedAt.Before(cutoff) {
				n++
			}
		}
		fmt.Printf("Dry run: would purge %d run(s) older than %s.\n", n, cleanupOlderThan)
		return nil
	}

	purged, err := db.PurgeOldRuns(cleanupOlderThan)
	if err != nil {
		return fmt.Errorf("purge old runs: %w", err)
	}
	if purged > 0 {
		fmt.Printf("Purged %d run(s) older than %s.\n", purged, cleanupOlderThan)
	} else {
		fmt.Printf("No runs older than %s found.\n", cleanupOlderThan)
	}
	return nil
}
