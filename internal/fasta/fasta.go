// Package fasta reads protein sequences in FASTA-like format: a metadata
// line followed by sequence lines that are concatenated.
package fasta

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrMissingInput indicates a referenced input file does not exist.
var ErrMissingInput = errors.New("missing input")

// Record is one sequence with its header line.
type Record struct {
	// Header is the metadata line as read, including any leading '>'.
	Header string
	// ID is the first whitespace-separated token of the header without '>'.
	ID string
	// Seq is the sequence lines joined as read, minus line terminators.
	Seq string
}

// Parse reads a single record: the first line is metadata and every
// remaining line is appended to the sequence.
func Parse(r io.Reader) (Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<26)

	var rec Record
	var b strings.Builder
	first := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if first {
			rec.Header = line
			rec.ID = headerID(line)
			first = false
			continue
		}
		b.WriteString(line)
	}
	if err := sc.Err(); err != nil {
		return Record{}, fmt.Errorf("scan fasta: %w", err)
	}
	rec.Seq = b.String()
	return rec, nil
}

// Load opens path ("-" for stdin) and parses one record.
func Load(path string) (Record, error) {
	if path == "-" {
		return Parse(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return Record{}, fmt.Errorf("open fasta: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Stream sends every '>'-delimited record in path to out and closes out
// when done. Lines before the first header are ignored.
func Stream(path string, out chan<- Record) error {
	defer close(out)

	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrMissingInput, path)
			}
			return fmt.Errorf("open fasta: %w", err)
		}
		defer f.Close()
		r = f
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<26)

	var cur *Record
	var b strings.Builder
	flush := func() {
		if cur != nil {
			cur.Seq = b.String()
			out <- *cur
			b.Reset()
		}
	}
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, ">") {
			flush()
			cur = &Record{Header: line, ID: headerID(line)}
			continue
		}
		if cur != nil {
			b.WriteString(line)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan fasta: %w", err)
	}
	flush()
	return nil
}

// ProteinID derives the entity name from a file path: the basename up to
// the first '.', so "fasta/KLF4.fasta" and "data/KLF4.count.tsv" both give "KLF4".
func ProteinID(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

func headerID(line string) string {
	h := strings.TrimPrefix(line, ">")
	if f := strings.Fields(h); len(f) > 0 {
		return f[0]
	}
	return ""
}
