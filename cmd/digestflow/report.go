package main

import (
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/digestflow/internal/report"
)

var reportOutput string

var reportCmd = &cobra.Command{
	Use:   "report <counts.tsv>... --output-file <report.tsv>",
	Short: "Aggregate count files into a protein report",
	Long: `Write a tab-separated report with a header row and one row per count
file, in argument order, prefixed with the protein ID taken from the file name.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return report.Write(reportOutput, args)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOutput, "output-file", "protein_report.tsv", "Report file to write")
}
