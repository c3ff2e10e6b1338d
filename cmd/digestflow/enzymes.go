package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/digestflow/internal/digest"
)

var enzymesCmd = &cobra.Command{
	Use:   "enzymes",
	Short: "List the registered enzymes and their cleavage patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ENZYME\tPATTERN")
		for _, e := range digest.Enzymes() {
			marker := ""
			if e.Name == digest.DefaultEnzyme {
				marker = " (default)"
			}
			fmt.Fprintf(w, "%s%s\t%s\n", e.Name, marker, e.Pattern)
		}
		return w.Flush()
	},
}
