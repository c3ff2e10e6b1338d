package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ShayCichocki/digestflow/internal/archive"
	"github.com/ShayCichocki/digestflow/internal/count"
	"github.com/ShayCichocki/digestflow/internal/digest"
	"github.com/ShayCichocki/digestflow/internal/exec"
	"github.com/ShayCichocki/digestflow/internal/executor"
	"github.com/ShayCichocki/digestflow/internal/fasta"
	"github.com/ShayCichocki/digestflow/internal/pipeio"
	"github.com/ShayCichocki/digestflow/internal/plot"
	"github.com/ShayCichocki/digestflow/internal/report"
	"github.com/ShayCichocki/digestflow/pkg/models"
)

// Steps performs tasks in the current process.
type Steps struct {
	runner  exec.CommandRunner
	workDir string
}

// NewSteps creates the in-process step implementation. runner and workDir
// are used by command tasks only.
func NewSteps(runner exec.CommandRunner, workDir string) *Steps {
	if runner == nil {
		runner = exec.NewRunner()
	}
	return &Steps{runner: runner, workDir: workDir}
}

// Run dispatches on the task kind. It matches executor.StepFunc.
func (s *Steps) Run(ctx context.Context, t *models.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch t.Kind {
	case models.TaskKindDigest:
		return s.digest(t)
	case models.TaskKindCount:
		return s.count(t)
	case models.TaskKindPlot:
		return s.plot(t)
	case models.TaskKindReport:
		if err := report.Write(t.Output, t.Inputs); err != nil {
			return fmt.Errorf("report: %w", err)
		}
		return nil
	case models.TaskKindArchive:
		if err := archive.Create(t.Output, t.Inputs); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		return nil
	case models.TaskKindCommand:
		if t.Command == "" {
			return nil
		}
		if _, err := s.runner.RunShell(ctx, s.workDir, t.Command); err != nil {
			return fmt.Errorf("command for %s: %w", t.ID, err)
		}
		return nil
	default:
		return fmt.Errorf("task %s: unknown kind %q", t.ID, t.Kind)
	}
}

func requireInputs(t *models.Task, n int) error {
	if len(t.Inputs) < n {
		return fmt.Errorf("task %s: %s step needs %d inputs, got %d", t.ID, t.Kind, n, len(t.Inputs))
	}
	return nil
}

func (s *Steps) digest(t *models.Task) error {
	if err := requireInputs(t, 1); err != nil {
		return err
	}
	opts, err := optionsFromParams(t.Params)
	if err != nil {
		return err
	}
	plan, err := digest.NewPlan(opts)
	if err != nil {
		return fmt.Errorf("digest %s: %w", t.Entity, err)
	}
	rec, err := fasta.Load(t.Inputs[0])
	if err != nil {
		return err
	}

	peptides := plan.Digest(rec.Seq)
	debugLog("[steps] digest %s: %d residues -> %d peptides", t.Entity, len(rec.Seq), peptides.Len())
	return pipeio.SavePeptides(t.Output, peptides.Sorted())
}

func (s *Steps) count(t *models.Task) error {
	if err := requireInputs(t, 2); err != nil {
		return err
	}
	aa := t.Param(ParamAminoAcid)
	if aa == "" {
		aa = count.DefaultAminoAcid
	}
	rec, err := fasta.Load(t.Inputs[0])
	if err != nil {
		return err
	}
	peptides, err := pipeio.LoadPeptides(t.Inputs[1])
	if err != nil {
		return err
	}

	c, err := count.Compute(rec.Seq, peptides, aa)
	if err != nil {
		return fmt.Errorf("count %s: %w", t.Entity, err)
	}
	return pipeio.SaveCounts(t.Output, c)
}

func (s *Steps) plot(t *models.Task) error {
	if err := requireInputs(t, 1); err != nil {
		return err
	}
	c, err := pipeio.LoadCounts(t.Inputs[0])
	if err != nil {
		return err
	}
	return plot.Save(t.Output, c)
}

// StepArgv returns an executor.ArgvFunc that re-invokes binary with the step
// subcommand for each task kind.
func StepArgv(binary string) executor.ArgvFunc {
	return func(t *models.Task) ([]string, error) {
		switch t.Kind {
		case models.TaskKindDigest:
			if err := requireInputs(t, 1); err != nil {
				return nil, err
			}
			opts, err := optionsFromParams(t.Params)
			if err != nil {
				return nil, err
			}
			return []string{binary, "digest", t.Inputs[0], t.Output,
				"--enzyme", opts.Pattern,
				"--missed-cleavages", strconv.Itoa(opts.MissedCleavages),
				"--min-length", strconv.Itoa(opts.MinLength),
				"--max-length", strconv.Itoa(opts.MaxLength),
			}, nil
		case models.TaskKindCount:
			if err := requireInputs(t, 2); err != nil {
				return nil, err
			}
			aa := t.Param(ParamAminoAcid)
			if aa == "" {
				aa = count.DefaultAminoAcid
			}
			return []string{binary, "count", t.Inputs[0], t.Inputs[1], t.Output, "--amino-acid", aa}, nil
		case models.TaskKindPlot:
			if err := requireInputs(t, 1); err != nil {
				return nil, err
			}
			return []string{binary, "plot", t.Inputs[0], t.Output}, nil
		case models.TaskKindReport:
			argv := append([]string{binary, "report"}, t.Inputs...)
			return append(argv, "--output-file", t.Output), nil
		case models.TaskKindArchive:
			return append([]string{binary, "archive", t.Output}, t.Inputs...), nil
		case models.TaskKindCommand:
			return []string{"sh", "-c", t.Command}, nil
		default:
			return nil, fmt.Errorf("task %s: unknown kind %q", t.ID, t.Kind)
		}
	}
}
