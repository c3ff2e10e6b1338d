package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "digestflow",
	Short: "Protein digestion workflow engine",
	Long: `digestflow runs the protein digestion pipeline over a directory of
FASTA files: digest -> count -> plot -> report -> archive.

Each protein is digested into peptides with a configurable enzyme, the
peptides are counted for a target amino acid, counts are plotted, and the
per-protein rows are aggregated into a report archived with the plots.

Tasks form a dependency graph. Results are memoized in a SQLite state
database keyed by a content hash, so unchanged work is skipped on the
next run. Steps execute inline, on a worker pool, or as child processes.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(plotCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(makeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(enzymesCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(gendocsCmd)
}

// printStatus prints a status line with a colored symbol.
func printStatus(symbol, message string, c color.Attribute) {
	colored := color.New(c).SprintFunc()
	fmt.Printf("%s %s\n", colored(symbol), message)
}
