// Package pipeio reads and writes the intermediate files exchanged between
// pipeline steps: peptide lists, count rows and the tabular report.
package pipeio

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ShayCichocki/digestflow/internal/count"
	"github.com/ShayCichocki/digestflow/internal/fasta"
)

// ErrMissingInput is the loader-side missing file condition. It is the same
// value as fasta.ErrMissingInput so callers can match either.
var ErrMissingInput = fasta.ErrMissingInput

// SavePeptides writes one peptide per line, sorted.
func SavePeptides(path string, peptides []string) error {
	sorted := append([]string(nil), peptides...)
	sort.Strings(sorted)
	return writeLines(path, sorted)
}

// LoadPeptides reads a peptide file written by SavePeptides.
func LoadPeptides(path string) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	out := lines[:0]
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return out, nil
}

// SaveCounts writes the counts as a single tab-separated row.
func SaveCounts(path string, c count.Counts) error {
	return writeLines(path, []string{strings.Join(c.Row(), "\t")})
}

// LoadCounts reads the first row of a count file.
func LoadCounts(path string) (count.Counts, error) {
	lines, err := readLines(path)
	if err != nil {
		return count.Counts{}, err
	}
	if len(lines) == 0 {
		return count.Counts{}, fmt.Errorf("load counts %s: empty file", path)
	}
	c, err := count.ParseRow(strings.Split(lines[0], "\t"))
	if err != nil {
		return count.Counts{}, fmt.Errorf("load counts %s: %w", path, err)
	}
	return c, nil
}

// SaveReport writes each row tab-joined on its own line.
func SaveReport(path string, rows [][]string) error {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = strings.Join(r, "\t")
	}
	return writeLines(path, lines)
}

// LoadReport reads a report written by SaveReport.
func LoadReport(path string) ([][]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		if l == "" {
			continue
		}
		rows = append(rows, strings.Split(l, "\t"))
	}
	return rows, nil
}

// writeLines replaces path atomically through a temp file in the same directory.
func writeLines(path string, lines []string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	w := bufio.NewWriter(tmp)
	for _, l := range lines {
		w.WriteString(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<24)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
