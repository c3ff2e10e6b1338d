// Package rules implements a small make-style build language. A rules file
// maps targets to their dependencies and either a pipeline step or a shell
// command; '%' in a target's base name matches a stem that is substituted
// into the deps, command and params.
package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/digestflow/internal/fasta"
	"github.com/ShayCichocki/digestflow/internal/pipeline"
	"github.com/ShayCichocki/digestflow/pkg/models"
)

var (
	// ErrNoRule indicates a target has no rule and does not exist on disk.
	ErrNoRule = errors.New("no rule for target")
	// ErrInvalidRule indicates a malformed rule definition.
	ErrInvalidRule = errors.New("invalid rule")
)

const (
	// DefaultFile is the rules file looked up when none is given.
	DefaultFile = "Digestfile.yaml"
	// DefaultTarget is made when neither the caller nor the file names one.
	DefaultTarget = "all"
)

// Rule describes how to make one target.
type Rule struct {
	Deps    []string          `yaml:"deps,omitempty"`
	Step    models.TaskKind   `yaml:"step,omitempty"`
	Command string            `yaml:"command,omitempty"`
	Params  map[string]string `yaml:"params,omitempty"`
}

// Phony reports whether the rule only groups its deps.
func (r Rule) Phony() bool {
	return r.Step == "" && r.Command == ""
}

func (r Rule) clone() Rule {
	out := r
	out.Deps = append([]string(nil), r.Deps...)
	if r.Params != nil {
		out.Params = make(map[string]string, len(r.Params))
		for k, v := range r.Params {
			out.Params[k] = v
		}
	}
	return out
}

func (r Rule) expand(stem string) Rule {
	out := Rule{
		Step:    r.Step,
		Command: strings.ReplaceAll(r.Command, "%", stem),
	}
	for _, d := range r.Deps {
		out.Deps = append(out.Deps, strings.ReplaceAll(d, "%", stem))
	}
	if r.Params != nil {
		out.Params = make(map[string]string, len(r.Params))
		for k, v := range r.Params {
			out.Params[k] = strings.ReplaceAll(v, "%", stem)
		}
	}
	return out
}

// Set is an ordered collection of rules. Pattern rules are tried in the
// order they were added.
type Set struct {
	Default string
	targets []string
	rules   map[string]Rule
}

// New returns an empty rule set.
func New() *Set {
	return &Set{rules: make(map[string]Rule)}
}

type fileFormat struct {
	Default string    `yaml:"default,omitempty"`
	Rules   yaml.Node `yaml:"rules"`
}

// Load reads a rules file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a rules document, keeping the order rules appear in.
func Parse(data []byte) (*Set, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if f.Rules.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: 'rules' must be a mapping of targets", ErrInvalidRule)
	}

	s := New()
	s.Default = f.Default
	content := f.Rules.Content
	for i := 0; i+1 < len(content); i += 2 {
		var target string
		if err := content[i].Decode(&target); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidRule, content[i].Line, err)
		}
		var r Rule
		if err := content[i+1].Decode(&r); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, target, err)
		}
		if err := s.Add(target, r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a rule for target.
func (s *Set) Add(target string, r Rule) error {
	switch {
	case target == "":
		return fmt.Errorf("%w: empty target", ErrInvalidRule)
	case strings.Count(target, "%") > 1:
		return fmt.Errorf("%w: %s: more than one '%%'", ErrInvalidRule, target)
	case r.Step != "" && r.Command != "":
		return fmt.Errorf("%w: %s: step and command are exclusive", ErrInvalidRule, target)
	case r.Step != "" && (!r.Step.Valid() || r.Step == models.TaskKindCommand):
		return fmt.Errorf("%w: %s: unknown step %q", ErrInvalidRule, target, r.Step)
	}
	if _, dup := s.rules[target]; dup {
		return fmt.Errorf("%w: %s defined twice", ErrInvalidRule, target)
	}
	s.targets = append(s.targets, target)
	s.rules[target] = r
	return nil
}

// Targets returns the rule targets in definition order.
func (s *Set) Targets() []string {
	return append([]string(nil), s.targets...)
}

// DefaultTarget returns the file's default target, or "all".
func (s *Set) DefaultTarget() string {
	if s.Default != "" {
		return s.Default
	}
	return DefaultTarget
}

// Match finds the rule for target. An exact rule wins; otherwise the first
// pattern rule whose base name matches the target's base name is expanded
// with the matched stem. Targets containing '%' never match.
func (s *Set) Match(target string) (Rule, bool) {
	if strings.Contains(target, "%") {
		return Rule{}, false
	}
	if r, ok := s.rules[target]; ok {
		return r.clone(), true
	}

	tbase := filepath.Base(target)
	for _, key := range s.targets {
		pre, post, ok := strings.Cut(filepath.Base(key), "%")
		if !ok {
			continue
		}
		if len(tbase) <= len(pre)+len(post) || !strings.HasPrefix(tbase, pre) || !strings.HasSuffix(tbase, post) {
			continue
		}
		stem := tbase[len(pre) : len(tbase)-len(post)]
		return s.rules[key].expand(stem), true
	}
	return Rule{}, false
}

// Marshal encodes the set as a rules document, preserving rule order.
func (s *Set) Marshal() ([]byte, error) {
	f := fileFormat{Default: s.Default}
	f.Rules.Kind = yaml.MappingNode
	for _, target := range s.targets {
		var key, val yaml.Node
		key.SetString(target)
		if err := val.Encode(s.rules[target]); err != nil {
			return nil, fmt.Errorf("encode rule %s: %w", target, err)
		}
		f.Rules.Content = append(f.Rules.Content, &key, &val)
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("marshal rules: %w", err)
	}
	return data, nil
}

// Generate writes the pipeline as pattern rules over inputDir and dataDir.
// The report and archive rules list every protein found in inputDir.
func Generate(inputDir, dataDir string, p pipeline.Params) (*Set, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	inputs, err := pipeline.InputFiles(inputDir)
	if err != nil {
		return nil, err
	}

	slash := filepath.ToSlash
	var counts, plots []string
	for _, in := range inputs {
		protein := fasta.ProteinID(in)
		counts = append(counts, slash(pipeline.CountPath(dataDir, protein)))
		plots = append(plots, slash(pipeline.PlotPath(dataDir, protein)))
	}
	fastaPattern := slash(filepath.Join(inputDir, "%.fasta"))
	peptides := slash(pipeline.PeptidesPath(dataDir, "%"))
	count := slash(pipeline.CountPath(dataDir, "%"))
	report := slash(filepath.Join(dataDir, pipeline.ReportFile))
	results := slash(filepath.Join(dataDir, pipeline.ArchiveFile))

	s := New()
	s.Default = DefaultTarget
	defs := []struct {
		target string
		rule   Rule
	}{
		{DefaultTarget, Rule{Deps: []string{results}}},
		{"clean", Rule{Command: "rm -rf '" + slash(dataDir) + "'"}},
		{peptides, Rule{Deps: []string{fastaPattern}, Step: models.TaskKindDigest, Params: p.TaskParams(models.TaskKindDigest)}},
		{count, Rule{Deps: []string{fastaPattern, peptides}, Step: models.TaskKindCount, Params: p.TaskParams(models.TaskKindCount)}},
		{slash(pipeline.PlotPath(dataDir, "%")), Rule{Deps: []string{count}, Step: models.TaskKindPlot}},
		{report, Rule{Deps: counts, Step: models.TaskKindReport}},
		{results, Rule{Deps: append(plots, report), Step: models.TaskKindArchive}},
	}
	for _, d := range defs {
		if err := s.Add(d.target, d.rule); err != nil {
			return nil, err
		}
	}
	return s, nil
}
