package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/digestflow/internal/count"
	"github.com/ShayCichocki/digestflow/internal/fasta"
	"github.com/ShayCichocki/digestflow/internal/pipeio"
)

var countAminoAcid string

var countCmd = &cobra.Command{
	Use:   "count <in.fasta> <peptides.txt> <out.tsv>",
	Short: "Count peptides and residues for a target amino acid",
	Long: `Write one tab-separated row: target amino acid, number of peptides,
number of peptides containing the target, total residues, and occurrences
of the target in the sequence.`,
	Args: cobra.ExactArgs(3),
	RunE: runCount,
}

func init() {
	countCmd.Flags().StringVar(&countAminoAcid, "amino-acid", count.DefaultAminoAcid, "Target amino acid")
}

func runCount(cmd *cobra.Command, args []string) error {
	rec, err := fasta.Load(args[0])
	if err != nil {
		return err
	}
	peptides, err := pipeio.LoadPeptides(args[1])
	if err != nil {
		return err
	}

	c, err := count.Compute(rec.Seq, peptides, countAminoAcid)
	if err != nil {
		return err
	}
	if err := pipeio.SaveCounts(args[2], c); err != nil {
		return fmt.Errorf("save counts: %w", err)
	}
	return nil
}
