// Package digest implements in-silico proteolytic digestion of a sequence
// into peptides, with missed-cleavage windows and length filtering.
package digest

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"
)

var (
	// ErrInvalidPattern indicates the cleavage pattern could not be compiled.
	ErrInvalidPattern = errors.New("invalid cleavage pattern")
	// ErrInvalidRange indicates nonsensical length bounds or a negative
	// missed-cleavage count.
	ErrInvalidRange = errors.New("invalid digest range")
)

// Default digest parameters. They match a tryptic digest with no missed
// cleavages and the usual peptide length window.
const (
	DefaultEnzyme          = "trypsin"
	DefaultMissedCleavages = 0
	DefaultMinLength       = 4
	DefaultMaxLength       = 75
)

// Options holds the parameters of a single digest.
type Options struct {
	// Pattern is an RE2 expression; a cut is made right after each match.
	Pattern string
	// MissedCleavages is how many extra adjacent sites a peptide may span.
	MissedCleavages int
	// MinLength and MaxLength are inclusive bounds in characters.
	MinLength int
	MaxLength int
}

// DefaultOptions returns the tryptic defaults.
func DefaultOptions() Options {
	return Options{
		Pattern:         enzymes[DefaultEnzyme],
		MissedCleavages: DefaultMissedCleavages,
		MinLength:       DefaultMinLength,
		MaxLength:       DefaultMaxLength,
	}
}

// Validate checks the numeric parameters.
func (o Options) Validate() error {
	if o.MissedCleavages < 0 {
		return fmt.Errorf("%w: missed cleavages %d < 0", ErrInvalidRange, o.MissedCleavages)
	}
	if o.MinLength < 0 || o.MaxLength < 0 {
		return fmt.Errorf("%w: negative length bound (min %d, max %d)", ErrInvalidRange, o.MinLength, o.MaxLength)
	}
	if o.MinLength > o.MaxLength {
		return fmt.Errorf("%w: min length %d > max length %d", ErrInvalidRange, o.MinLength, o.MaxLength)
	}
	return nil
}

// PeptideSet is a set of unique peptide strings.
type PeptideSet map[string]struct{}

// Add inserts a peptide.
func (s PeptideSet) Add(p string) { s[p] = struct{}{} }

// Has reports whether p is in the set.
func (s PeptideSet) Has(p string) bool {
	_, ok := s[p]
	return ok
}

// Len returns the number of peptides.
func (s PeptideSet) Len() int { return len(s) }

// Sorted returns the peptides in lexical order.
func (s PeptideSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Plan is a validated, precompiled digest that can be reused across
// sequences. A Plan has no mutable state and is safe for concurrent use.
type Plan struct {
	cleaver Cleaver
	opts    Options
}

// NewPlan compiles opts.Pattern with the regexp engine and validates opts.
func NewPlan(opts Options) (*Plan, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c, err := NewRegexpCleaver(opts.Pattern)
	if err != nil {
		return nil, err
	}
	return &Plan{cleaver: c, opts: opts}, nil
}

// NewPlanWithCleaver builds a plan around an arbitrary site finder.
func NewPlanWithCleaver(c Cleaver, opts Options) (*Plan, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil cleaver", ErrInvalidPattern)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Plan{cleaver: c, opts: opts}, nil
}

// Options returns the options the plan was built with.
func (p *Plan) Options() Options { return p.opts }

// Sites returns the ordered cleavage site list for seq: 0, every match end,
// then len(seq). Neighbouring equal offsets collapse into one site.
func (p *Plan) Sites(seq string) []int {
	if seq == "" {
		return nil
	}
	cuts := p.cleaver.Sites(seq)
	sites := make([]int, 0, len(cuts)+2)
	sites = append(sites, 0)
	for _, c := range cuts {
		if c > sites[len(sites)-1] {
			sites = append(sites, c)
		}
	}
	if sites[len(sites)-1] != len(seq) {
		sites = append(sites, len(seq))
	}
	return sites
}

// Window is a half-open [Start, End) span between two cleavage sites.
// Missed is the number of sites spanned beyond the first.
type Window struct {
	Start  int
	End    int
	Missed int
}

// Windows enumerates every candidate window before length filtering.
func (p *Plan) Windows(seq string) []Window {
	sites := p.Sites(seq)
	last := len(sites) - 1
	var out []Window
	for i := range sites {
		for w := 1; w <= p.opts.MissedCleavages+1; w++ {
			j := i + w
			if j > last {
				break
			}
			out = append(out, Window{Start: sites[i], End: sites[j], Missed: w - 1})
		}
	}
	return out
}

// Digest returns the unique peptides of seq whose length lies within the
// plan's bounds. An empty sequence yields an empty set.
func (p *Plan) Digest(seq string) PeptideSet {
	out := make(PeptideSet)
	for _, w := range p.Windows(seq) {
		pep := seq[w.Start:w.End]
		n := utf8.RuneCountInString(pep)
		if n < p.opts.MinLength || n > p.opts.MaxLength {
			continue
		}
		out.Add(pep)
	}
	return out
}

// Digest compiles pattern and digests sequence in one call.
func Digest(sequence, pattern string, missedCleavages, minLength, maxLength int) (PeptideSet, error) {
	plan, err := NewPlan(Options{
		Pattern:         pattern,
		MissedCleavages: missedCleavages,
		MinLength:       minLength,
		MaxLength:       maxLength,
	})
	if err != nil {
		return nil, err
	}
	return plan.Digest(sequence), nil
}
