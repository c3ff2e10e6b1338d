package digest

import (
	"fmt"
	"regexp"
)

// Cleaver finds cut points in a sequence. Sites returns the end offset of
// every non-overlapping motif match, scanned left to right.
type Cleaver interface {
	Sites(seq string) []int
}

// RegexpCleaver is a Cleaver backed by the standard regexp engine.
type RegexpCleaver struct {
	re *regexp.Regexp
}

// NewRegexpCleaver compiles pattern. Malformed syntax yields ErrInvalidPattern.
func NewRegexpCleaver(pattern string) (*RegexpCleaver, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}
	return &RegexpCleaver{re: re}, nil
}

// Sites implements Cleaver.
func (c *RegexpCleaver) Sites(seq string) []int {
	matches := c.re.FindAllStringIndex(seq, -1)
	out := make([]int, len(matches))
	for i, m := range matches {
		out[i] = m[1]
	}
	return out
}

// String returns the source pattern.
func (c *RegexpCleaver) String() string { return c.re.String() }

var _ Cleaver = (*RegexpCleaver)(nil)
