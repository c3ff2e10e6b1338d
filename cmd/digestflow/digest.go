package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/digestflow/internal/digest"
	"github.com/ShayCichocki/digestflow/internal/fasta"
	"github.com/ShayCichocki/digestflow/internal/pipeio"
)

var (
	digestEnzyme     string
	digestMissed     int
	digestMinLength  int
	digestMaxLength  int
	digestAllRecords bool
)

var digestCmd = &cobra.Command{
	Use:   "digest <in.fasta> <out.txt>",
	Short: "Digest one protein into peptides",
	Long: `Digest the sequence in a FASTA file and write the unique peptides,
one per line, sorted.

--enzyme accepts a registered enzyme name (see 'digestflow enzymes') or a
cleavage regular expression; the cut is made right after each match.

By default only the first record is read and every following line is part
of its sequence. With --all-records each '>' header starts a new record and
the peptides of all records are merged.`,
	Args: cobra.ExactArgs(2),
	RunE: runDigest,
}

func init() {
	digestCmd.Flags().StringVar(&digestEnzyme, "enzyme", digest.DefaultEnzyme, "Enzyme name or cleavage regex")
	digestCmd.Flags().IntVar(&digestMissed, "missed-cleavages", digest.DefaultMissedCleavages, "Missed cleavages allowed per peptide")
	digestCmd.Flags().IntVar(&digestMinLength, "min-length", digest.DefaultMinLength, "Minimum peptide length")
	digestCmd.Flags().IntVar(&digestMaxLength, "max-length", digest.DefaultMaxLength, "Maximum peptide length")
	digestCmd.Flags().BoolVar(&digestAllRecords, "all-records", false, "Digest every record in a multi-record FASTA file")
}

func runDigest(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]

	plan, err := digest.NewPlan(digest.Options{
		Pattern:         digest.ResolvePattern(digestEnzyme),
		MissedCleavages: digestMissed,
		MinLength:       digestMinLength,
		MaxLength:       digestMaxLength,
	})
	if err != nil {
		return err
	}

	var peptides digest.PeptideSet
	if digestAllRecords {
		peptides, err = digestRecords(plan, in)
	} else {
		var rec fasta.Record
		rec, err = fasta.Load(in)
		if err == nil {
			peptides = plan.Digest(rec.Seq)
		}
	}
	if err != nil {
		return err
	}

	if err := pipeio.SavePeptides(out, peptides.Sorted()); err != nil {
		return fmt.Errorf("save peptides: %w", err)
	}
	return nil
}

// digestRecords merges the peptides of every record in path.
func digestRecords(plan *digest.Plan, path string) (digest.PeptideSet, error) {
	records := make(chan fasta.Record, 4)
	errc := make(chan error, 1)
	go func() { errc <- fasta.Stream(path, records) }()

	all := make(digest.PeptideSet)
	for rec := range records {
		for p := range plan.Digest(rec.Seq) {
			all.Add(p)
		}
	}
	if err := <-errc; err != nil {
		return nil, err
	}
	return all, nil
}
