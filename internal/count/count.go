// Package count computes target-residue statistics for a protein and its
// digested peptides.
package count

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultAminoAcid is cysteine.
const DefaultAminoAcid = "C"

// ErrInvalidTarget indicates an empty target residue.
var ErrInvalidTarget = errors.New("invalid target amino acid")

// Counts is the per-protein statistics row.
type Counts struct {
	AminoAcid          string `json:"amino_acid"`
	Peptides           int    `json:"peptides"`
	PeptidesWithTarget int    `json:"peptides_with_target"`
	TotalResidues      int    `json:"total_residues"`
	TargetResidues     int    `json:"target_residues"`
}

// Compute counts peptides, peptides containing aa, residues in sequence and
// occurrences of aa in sequence.
func Compute(sequence string, peptides []string, aa string) (Counts, error) {
	if aa == "" {
		return Counts{}, ErrInvalidTarget
	}
	c := Counts{
		AminoAcid:      aa,
		Peptides:       len(peptides),
		TotalResidues:  utf8.RuneCountInString(sequence),
		TargetResidues: strings.Count(sequence, aa),
	}
	for _, p := range peptides {
		if strings.Contains(p, aa) {
			c.PeptidesWithTarget++
		}
	}
	return c, nil
}

// Row returns the tab-separated fields in file order.
func (c Counts) Row() []string {
	return []string{
		c.AminoAcid,
		strconv.Itoa(c.Peptides),
		strconv.Itoa(c.PeptidesWithTarget),
		strconv.Itoa(c.TotalResidues),
		strconv.Itoa(c.TargetResidues),
	}
}

// ParseRow is the inverse of Row.
func ParseRow(fields []string) (Counts, error) {
	if len(fields) != 5 {
		return Counts{}, fmt.Errorf("count row: expected 5 fields, got %d", len(fields))
	}
	var nums [4]int
	for i, f := range fields[1:] {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return Counts{}, fmt.Errorf("count row field %d: %w", i+2, err)
		}
		nums[i] = n
	}
	return Counts{
		AminoAcid:          fields[0],
		Peptides:           nums[0],
		PeptidesWithTarget: nums[1],
		TotalResidues:      nums[2],
		TargetResidues:     nums[3],
	}, nil
}
