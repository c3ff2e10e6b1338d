package digest

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func mustPlan(t *testing.T, opts Options) *Plan {
	t.Helper()
	p, err := NewPlan(opts)
	if err != nil {
		t.Fatalf("NewPlan(%+v) failed: %v", opts, err)
	}
	return p
}

func TestSites(t *testing.T) {
	p := mustPlan(t, Options{Pattern: "[KR]", MaxLength: 100})
	got := p.Sites("ABCKDEFRGHI")
	want := []int{0, 4, 8, 11}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sites() = %v, want %v", got, want)
	}
}

func TestSites_TrailingMatchNotDuplicated(t *testing.T) {
	p := mustPlan(t, Options{Pattern: "[KR]", MaxLength: 100})
	got := p.Sites("ABCK")
	want := []int{0, 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sites() = %v, want %v", got, want)
	}
}

func TestDigest_Examples(t *testing.T) {
	const seq = "ABCKDEFRGHI"
	tests := []struct {
		name   string
		missed int
		min    int
		max    int
		want   []string
	}{
		{"no missed cleavages", 0, 0, 100, []string{"ABCK", "DEFR", "GHI"}},
		{"one missed cleavage", 1, 0, 100, []string{"ABCK", "ABCKDEFR", "DEFR", "DEFRGHI", "GHI"}},
		{"min length excludes short tail", 1, 5, 100, []string{"ABCKDEFR", "DEFRGHI"}},
		{"max length excludes long windows", 1, 0, 4, []string{"ABCK", "DEFR", "GHI"}},
		{"missed beyond site count", 5, 0, 100, []string{"ABCK", "ABCKDEFR", "ABCKDEFRGHI", "DEFR", "DEFRGHI", "GHI"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Digest(seq, "[KR]", tt.missed, tt.min, tt.max)
			if err != nil {
				t.Fatalf("Digest failed: %v", err)
			}
			if !reflect.DeepEqual(got.Sorted(), tt.want) {
				t.Errorf("Digest() = %v, want %v", got.Sorted(), tt.want)
			}
		})
	}
}

func TestDigest_NoEmptyPeptideAtZeroMinLength(t *testing.T) {
	tests := []struct {
		seq    string
		missed int
		want   []string
	}{
		{"ABCK", 0, []string{"ABCK"}},
		{"ABCK", 2, []string{"ABCK"}},
		{"KRK", 0, []string{"K", "R"}},
	}
	for _, tt := range tests {
		got, err := Digest(tt.seq, "[KR]", tt.missed, 0, 100)
		if err != nil {
			t.Fatalf("Digest failed: %v", err)
		}
		if got.Has("") {
			t.Errorf("Digest(%q) contains an empty peptide", tt.seq)
		}
		if !reflect.DeepEqual(got.Sorted(), tt.want) {
			t.Errorf("Digest(%q, missed=%d) = %v, want %v", tt.seq, tt.missed, got.Sorted(), tt.want)
		}
	}
}

func TestDigest_NoMatchYieldsWholeSequence(t *testing.T) {
	got, err := Digest("AAAAA", "[KR]", 0, 0, 100)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if got.Len() != 1 || !got.Has("AAAAA") {
		t.Errorf("Digest() = %v, want {AAAAA}", got.Sorted())
	}

	got, err = Digest("AAAAA", "[KR]", 0, 6, 100)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("expected whole sequence filtered by min length, got %v", got.Sorted())
	}
}

func TestDigest_EmptySequence(t *testing.T) {
	got, err := Digest("", "[KR]", 2, 0, 10)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("expected empty set, got %v", got.Sorted())
	}
}

func TestDigest_PeptideEndingAtSequenceEnd(t *testing.T) {
	// The window from the last internal site to len(seq) must be kept.
	got, err := Digest("AKBBB", "K", 0, 3, 3)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if !got.Has("BBB") {
		t.Errorf("expected tail peptide BBB, got %v", got.Sorted())
	}
}

func TestDigest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		missed  int
		min     int
		max     int
		want    error
	}{
		{"malformed pattern", "[KR", 0, 0, 10, ErrInvalidPattern},
		{"min greater than max", "[KR]", 0, 10, 5, ErrInvalidRange},
		{"negative min", "[KR]", 0, -1, 5, ErrInvalidRange},
		{"negative max", "[KR]", 0, 0, -5, ErrInvalidRange},
		{"negative missed", "[KR]", -1, 0, 5, ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Digest("ABCK", tt.pattern, tt.missed, tt.min, tt.max)
			if !errors.Is(err, tt.want) {
				t.Errorf("Digest() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDigest_LengthBoundsHold(t *testing.T) {
	seqs := []string{
		"MKWVTFISLLLLFSSAYSRGVFRRDTHKSEIAHRFKDLGEEHFKGLVLIAFSQYLQQCPF",
		"KKKKRRRR",
		"ACDEFGHIKLMNPQRSTVWY",
		"",
	}
	for _, seq := range seqs {
		for missed := 0; missed < 4; missed++ {
			for _, bounds := range [][2]int{{0, 0}, {0, 3}, {2, 6}, {4, 75}} {
				got, err := Digest(seq, "[KR]", missed, bounds[0], bounds[1])
				if err != nil {
					t.Fatalf("Digest failed: %v", err)
				}
				for pep := range got {
					if len(pep) < bounds[0] || len(pep) > bounds[1] {
						t.Errorf("peptide %q outside [%d,%d]", pep, bounds[0], bounds[1])
					}
				}
			}
		}
	}
}

func TestDigest_RoundTrip(t *testing.T) {
	seqs := []string{
		"ABCKDEFRGHI",
		"KRKRKR",
		"MKWVTFISLLLLFSSAYSRGVFRRDTHKSEIAHRFKDLGEEHFK",
		"NOCUTSITES",
	}
	for _, seq := range seqs {
		p := mustPlan(t, Options{Pattern: "[KR]", MaxLength: len(seq)})
		var b strings.Builder
		for _, w := range p.Windows(seq) {
			if w.Missed == 0 {
				b.WriteString(seq[w.Start:w.End])
			}
		}
		if b.String() != seq {
			t.Errorf("round trip of %q = %q", seq, b.String())
		}
	}
}

func TestDigest_EveryBoundaryPattern(t *testing.T) {
	// A zero-width pattern cuts between every residue.
	p := mustPlan(t, Options{Pattern: "", MaxLength: 10})
	seq := "ABCD"
	sites := p.Sites(seq)
	if !reflect.DeepEqual(sites, []int{0, 1, 2, 3, 4}) {
		t.Fatalf("Sites() = %v", sites)
	}
	windows := p.Windows(seq)
	if len(windows) != len(sites)-1 {
		t.Errorf("expected %d windows, got %d", len(sites)-1, len(windows))
	}
	for _, w := range windows {
		if w.End-w.Start != 1 {
			t.Errorf("window %+v is not a single residue", w)
		}
	}
}

func TestDigest_Monotonic(t *testing.T) {
	seq := "MKWVTFISLLLLFSSAYSRGVFRRDTHKSEIAHRFKDLGEEHFKGLVLIAFSQYLQQCPF"
	prev, err := Digest(seq, "[KR]", 0, 4, 75)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	for missed := 1; missed <= 4; missed++ {
		cur, err := Digest(seq, "[KR]", missed, 4, 75)
		if err != nil {
			t.Fatalf("Digest failed: %v", err)
		}
		for pep := range prev {
			if !cur.Has(pep) {
				t.Errorf("missed=%d lost peptide %q", missed, pep)
			}
		}
		prev = cur
	}
}

func TestPlan_ConcurrentUse(t *testing.T) {
	p := mustPlan(t, DefaultOptions())
	want := p.Digest("MKWVTFISLLLLFSSAYSRGVFRRDTHKSEIAHRFK").Sorted()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := p.Digest("MKWVTFISLLLLFSSAYSRGVFRRDTHKSEIAHRFK").Sorted()
			if !reflect.DeepEqual(got, want) {
				t.Errorf("concurrent digest = %v, want %v", got, want)
			}
		}()
	}
	wg.Wait()
}

type fixedCleaver []int

func (f fixedCleaver) Sites(string) []int { return f }

func TestNewPlanWithCleaver(t *testing.T) {
	p, err := NewPlanWithCleaver(fixedCleaver{2, 4}, Options{MaxLength: 10})
	if err != nil {
		t.Fatalf("NewPlanWithCleaver failed: %v", err)
	}
	got := p.Digest("AABBCC").Sorted()
	want := []string{"AA", "BB", "CC"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Digest() = %v, want %v", got, want)
	}

	if _, err := NewPlanWithCleaver(nil, Options{MaxLength: 1}); !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("expected ErrInvalidPattern for nil cleaver, got %v", err)
	}
}
