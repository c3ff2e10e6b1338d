// Package report aggregates per-protein count rows into one table.
package report

import (
	"fmt"

	"github.com/ShayCichocki/digestflow/internal/fasta"
	"github.com/ShayCichocki/digestflow/internal/pipeio"
)

// Header is the fixed first row of every report.
var Header = []string{
	"Protein",
	"Target Amino Acid",
	"No. of Peptides",
	"No. of Peptides w/ Target Amino Acid",
	"Total No. of Amino Acids",
	"No. of Target Amino Acid",
}

// Build loads each count file and returns the header followed by one row
// per file, prefixed with the protein ID, in input order.
func Build(countFiles []string) ([][]string, error) {
	rows := make([][]string, 0, len(countFiles)+1)
	rows = append(rows, append([]string(nil), Header...))
	for _, path := range countFiles {
		c, err := pipeio.LoadCounts(path)
		if err != nil {
			return nil, fmt.Errorf("report: %w", err)
		}
		rows = append(rows, append([]string{fasta.ProteinID(path)}, c.Row()...))
	}
	return rows, nil
}

// Write builds the report and saves it to out.
func Write(out string, countFiles []string) error {
	rows, err := Build(countFiles)
	if err != nil {
		return err
	}
	return pipeio.SaveReport(out, rows)
}
