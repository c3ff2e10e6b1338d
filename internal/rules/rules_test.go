package rules

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ShayCichocki/digestflow/internal/pipeline"
	"github.com/ShayCichocki/digestflow/pkg/models"
)

const sampleRules = `
default: all
rules:
  all:
    deps: [data/results.tgz]
  clean:
    command: rm -rf data/*
  data/%.peptides.txt:
    deps: [fasta/%.fasta]
    step: digest
    params:
      pattern: "[KR]"
      min_length: "4"
  data/%.count.tsv:
    deps: [fasta/%.fasta, data/%.peptides.txt]
    command: digestflow count fasta/%.fasta data/%.peptides.txt data/%.count.tsv
  data/protein_report.tsv:
    deps: [data/KLF4.count.tsv, data/MYC.count.tsv]
    step: report
`

func mustParse(t *testing.T, doc string) *Set {
	t.Helper()
	s, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return s
}

func TestParse_KeepsOrder(t *testing.T) {
	s := mustParse(t, sampleRules)
	want := []string{"all", "clean", "data/%.peptides.txt", "data/%.count.tsv", "data/protein_report.tsv"}
	if got := s.Targets(); !reflect.DeepEqual(got, want) {
		t.Errorf("Targets() = %v, want %v", got, want)
	}
	if s.DefaultTarget() != "all" {
		t.Errorf("DefaultTarget() = %q", s.DefaultTarget())
	}
}

func TestMatch(t *testing.T) {
	s := mustParse(t, sampleRules)

	tests := []struct {
		name      string
		target    string
		wantOK    bool
		wantDeps  []string
		wantCmd   string
		wantStep  models.TaskKind
		wantParam string
	}{
		{
			name:     "exact phony",
			target:   "all",
			wantOK:   true,
			wantDeps: []string{"data/results.tgz"},
		},
		{
			name:    "exact command keeps percent",
			target:  "clean",
			wantOK:  true,
			wantCmd: "rm -rf data/*",
		},
		{
			name:      "pattern step",
			target:    "data/KLF4.peptides.txt",
			wantOK:    true,
			wantDeps:  []string{"fasta/KLF4.fasta"},
			wantStep:  models.TaskKindDigest,
			wantParam: "[KR]",
		},
		{
			name:     "pattern command",
			target:   "data/MYC.count.tsv",
			wantOK:   true,
			wantDeps: []string{"fasta/MYC.fasta", "data/MYC.peptides.txt"},
			wantCmd:  "digestflow count fasta/MYC.fasta data/MYC.peptides.txt data/MYC.count.tsv",
		},
		{
			name:     "pattern matches base name only",
			target:   "elsewhere/SOX2.peptides.txt",
			wantOK:   true,
			wantDeps: []string{"fasta/SOX2.fasta"},
			wantStep: models.TaskKindDigest,
		},
		{
			name:   "empty stem",
			target: "data/.peptides.txt",
		},
		{
			name:   "percent in target",
			target: "data/%.peptides.txt",
		},
		{
			name:   "no rule",
			target: "fasta/KLF4.fasta",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := s.Match(tt.target)
			if ok != tt.wantOK {
				t.Fatalf("Match(%q) ok = %v, want %v", tt.target, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !reflect.DeepEqual(r.Deps, tt.wantDeps) && !(len(r.Deps) == 0 && len(tt.wantDeps) == 0) {
				t.Errorf("deps = %v, want %v", r.Deps, tt.wantDeps)
			}
			if r.Command != tt.wantCmd {
				t.Errorf("command = %q, want %q", r.Command, tt.wantCmd)
			}
			if r.Step != tt.wantStep {
				t.Errorf("step = %q, want %q", r.Step, tt.wantStep)
			}
			if tt.wantParam != "" && r.Params["pattern"] != tt.wantParam {
				t.Errorf("pattern param = %q, want %q", r.Params["pattern"], tt.wantParam)
			}
		})
	}
}

func TestMatch_DoesNotShareState(t *testing.T) {
	s := mustParse(t, sampleRules)
	r, _ := s.Match("all")
	r.Deps[0] = "changed"
	again, _ := s.Match("all")
	if again.Deps[0] != "data/results.tgz" {
		t.Errorf("Match returned a rule aliasing the set: %v", again.Deps)
	}
}

func TestMatch_FirstPatternWins(t *testing.T) {
	s := New()
	if err := s.Add("a/%.txt", Rule{Command: "first %"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("b/x%.txt", Rule{Command: "second %"}); err != nil {
		t.Fatal(err)
	}
	r, ok := s.Match("xy.txt")
	if !ok || r.Command != "first xy" {
		t.Errorf("Match = %+v, %v", r, ok)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "rules: [unterminated"},
		{"missing rules", "default: all\n"},
		{"rules not a mapping", "rules: [a, b]\n"},
		{"two percents", "rules:\n  '%/%.txt':\n    command: x\n"},
		{"step and command", "rules:\n  a:\n    step: digest\n    command: x\n"},
		{"unknown step", "rules:\n  a:\n    step: upload\n"},
		{"command as step", "rules:\n  a:\n    step: command\n"},
		{"deps not a list", "rules:\n  a:\n    deps: {x: y}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Parse([]byte("rules:\n  a:\n    step: upload\n")); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("expected ErrInvalidRule, got %v", err)
	}
}

func TestAdd_Duplicate(t *testing.T) {
	s := New()
	if err := s.Add("a", Rule{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("a", Rule{}); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("expected ErrInvalidRule, got %v", err)
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	s := mustParse(t, sampleRules)
	data, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	again := mustParse(t, string(data))
	if !reflect.DeepEqual(again.Targets(), s.Targets()) {
		t.Errorf("targets after round trip = %v", again.Targets())
	}
	r, _ := again.Match("data/KLF4.peptides.txt")
	if r.Step != models.TaskKindDigest || r.Params["min_length"] != "4" {
		t.Errorf("rule after round trip = %+v", r)
	}
}

func TestGenerate(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "fasta")
	dataDir := filepath.Join(root, "data")
	if err := os.MkdirAll(inputDir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"KLF4", "MYC"} {
		if err := os.WriteFile(filepath.Join(inputDir, p+".fasta"), []byte(">"+p+"\nMKWVTFISLLR\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	s, err := Generate(inputDir, dataDir, pipeline.DefaultParams())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	r, ok := s.Match(filepath.Join(dataDir, "MYC.count.tsv"))
	if !ok || r.Step != models.TaskKindCount || r.Params[pipeline.ParamAminoAcid] != "C" {
		t.Fatalf("count rule = %+v, %v", r, ok)
	}
	wantDeps := []string{filepath.Join(inputDir, "MYC.fasta"), pipeline.PeptidesPath(dataDir, "MYC")}
	if !reflect.DeepEqual(r.Deps, wantDeps) {
		t.Errorf("count deps = %v, want %v", r.Deps, wantDeps)
	}

	r, _ = s.Match(filepath.Join(dataDir, pipeline.ArchiveFile))
	if len(r.Deps) != 3 || r.Step != models.TaskKindArchive {
		t.Errorf("archive rule = %+v", r)
	}

	if _, err := Generate(t.TempDir(), dataDir, pipeline.DefaultParams()); !errors.Is(err, pipeline.ErrNoInputs) {
		t.Errorf("expected ErrNoInputs, got %v", err)
	}
}
