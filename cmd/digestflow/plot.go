package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/digestflow/internal/pipeio"
	"github.com/ShayCichocki/digestflow/internal/plot"
)

// plotShow renders to the terminal instead of a file.
const plotShow = "show"

var plotCmd = &cobra.Command{
	Use:   "plot <counts.tsv> <out.txt|show>",
	Short: "Render a count file as a two-panel bar chart",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := pipeio.LoadCounts(args[0])
		if err != nil {
			return err
		}
		if args[1] == plotShow {
			return plot.Render(os.Stdout, c)
		}
		return plot.Save(args[1], c)
	},
}
