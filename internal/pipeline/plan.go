// Package pipeline plans and runs the digest, count, plot, report and
// archive steps over a directory of FASTA files.
package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/ShayCichocki/digestflow/internal/fasta"
	"github.com/ShayCichocki/digestflow/pkg/models"
)

// ErrNoInputs indicates the input directory holds no *.fasta files.
var ErrNoInputs = errors.New("no fasta inputs")

// Output file names inside the data directory.
const (
	ReportFile  = "protein_report.tsv"
	ArchiveFile = "results.tgz"
)

// stepVersions invalidate cached results when a step's output format changes.
var stepVersions = map[models.TaskKind]int{
	models.TaskKindDigest:  1,
	models.TaskKindCount:   1,
	models.TaskKindPlot:    1,
	models.TaskKindReport:  1,
	models.TaskKindArchive: 1,
	models.TaskKindCommand: 1,
}

// StepVersion returns the current version of a step kind.
func StepVersion(kind models.TaskKind) int {
	return stepVersions[kind]
}

// PeptidesPath, CountPath and PlotPath name the per-protein outputs.
func PeptidesPath(dataDir, protein string) string {
	return filepath.Join(dataDir, protein+".peptides.txt")
}

func CountPath(dataDir, protein string) string {
	return filepath.Join(dataDir, protein+".count.tsv")
}

func PlotPath(dataDir, protein string) string {
	return filepath.Join(dataDir, protein+".plot.txt")
}

// InputFiles returns the sorted *.fasta files in inputDir.
func InputFiles(inputDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(inputDir, "*.fasta"))
	if err != nil {
		return nil, fmt.Errorf("glob inputs: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInputs, inputDir)
	}
	sort.Strings(files)
	return files, nil
}

// Plan builds the task graph for every FASTA file in inputDir: a digest,
// count and plot per protein, then one report and one archive.
func Plan(inputDir, dataDir string, p Params) ([]*models.Task, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	inputs, err := InputFiles(inputDir)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newTask := func(kind models.TaskKind, id, entity, output string, inputs []string, params map[string]string, deps []string) *models.Task {
		return &models.Task{
			ID:        id,
			Kind:      kind,
			Entity:    entity,
			Inputs:    inputs,
			Output:    output,
			Params:    params,
			DependsOn: deps,
			Version:   StepVersion(kind),
			Status:    models.TaskStatusPending,
			CreatedAt: now,
		}
	}

	seen := make(map[string]string, len(inputs))
	var (
		tasks      []*models.Task
		countIDs   []string
		countFiles []string
		plotIDs    []string
		plotFiles  []string
	)
	for _, in := range inputs {
		protein := fasta.ProteinID(in)
		if prev, dup := seen[protein]; dup {
			return nil, fmt.Errorf("protein %s defined by both %s and %s", protein, prev, in)
		}
		seen[protein] = in

		peptides := PeptidesPath(dataDir, protein)
		counts := CountPath(dataDir, protein)
		plotOut := PlotPath(dataDir, protein)
		digestID := "digest:" + protein
		countID := "count:" + protein
		plotID := "plot:" + protein

		tasks = append(tasks,
			newTask(models.TaskKindDigest, digestID, protein, peptides, []string{in}, p.digestParams(), nil),
			newTask(models.TaskKindCount, countID, protein, counts, []string{in, peptides}, p.countParams(), []string{digestID}),
			newTask(models.TaskKindPlot, plotID, protein, plotOut, []string{counts}, nil, []string{countID}),
		)
		countIDs = append(countIDs, countID)
		countFiles = append(countFiles, counts)
		plotIDs = append(plotIDs, plotID)
		plotFiles = append(plotFiles, plotOut)
	}

	reportOut := filepath.Join(dataDir, ReportFile)
	tasks = append(tasks,
		newTask(models.TaskKindReport, "report", "", reportOut, countFiles, nil, countIDs),
		newTask(models.TaskKindArchive, "archive", "", filepath.Join(dataDir, ArchiveFile),
			append(append([]string(nil), plotFiles...), reportOut), nil, append(plotIDs, "report")),
	)
	return tasks, nil
}
