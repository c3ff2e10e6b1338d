package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/digestflow/internal/config"
	"github.com/ShayCichocki/digestflow/internal/executor"
	"github.com/ShayCichocki/digestflow/internal/pipeline"
	"github.com/ShayCichocki/digestflow/internal/state"
	"github.com/ShayCichocki/digestflow/internal/tui"
	"github.com/ShayCichocki/digestflow/pkg/models"
)

var (
	runAminoAcid string
	runEnzyme    string
	runMissed    int
	runMinLength int
	runMaxLength int
	runExecutor  string
	runWorkers   int
	runRetries   int
	runDataDir   string
	runNoCache   bool
	runTUI       bool
	runSummary   string
	runDryRun    bool
)

var runCmd = &cobra.Command{
	Use:   "run <input_dir>",
	Short: "Run the pipeline over a directory of FASTA files",
	Long: `Run digest, count and plot for every *.fasta file in input_dir, then
aggregate the counts into protein_report.tsv and archive report and plots
into results.tgz under the data directory.

Tasks whose kind, parameters and input contents are unchanged since a
previous successful run are skipped. Use --no-cache to execute everything.

Executors (--executor):
  default   Run steps one at a time in this process
  threads   Run steps on a pool of --workers goroutines
  process   Run each step as a child digestflow process

Flags override values from .digestflow.yaml and DIGESTFLOW_* variables.`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	addPipelineFlags(runCmd)
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show live progress in a terminal UI")
	runCmd.Flags().StringVar(&runSummary, "summary", "", "Write a JSON run summary to this file (- for stdout)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print the task graph and what is cached without running")
}

// addPipelineFlags registers the flags shared by run and watch.
func addPipelineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&runAminoAcid, "amino-acid", "", "Target amino acid to count (default from config: C)")
	f.StringVar(&runEnzyme, "enzyme", "", "Enzyme name or cleavage regex (default from config: trypsin)")
	f.IntVar(&runMissed, "missed-cleavages", 0, "Missed cleavages allowed per peptide")
	f.IntVar(&runMinLength, "min-length", 0, "Minimum peptide length")
	f.IntVar(&runMaxLength, "max-length", 0, "Maximum peptide length")
	f.StringVar(&runExecutor, "executor", "", "Executor: default, threads, or process")
	f.IntVar(&runWorkers, "workers", 0, "Worker count for threads and process executors (0 = one per CPU)")
	f.IntVar(&runRetries, "retries", 0, "Retries for a failed task")
	f.StringVar(&runDataDir, "data-dir", "", "Output directory (default from config: data)")
	f.BoolVar(&runNoCache, "no-cache", false, "Execute every task even when a cached result exists")
}

// applyRunFlags overrides cfg with the flags set on cmd.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("amino-acid") {
		cfg.Count.AminoAcid = runAminoAcid
	}
	if flags.Changed("enzyme") {
		cfg.Digest.Enzyme = runEnzyme
	}
	if flags.Changed("missed-cleavages") {
		cfg.Digest.MissedCleavages = runMissed
	}
	if flags.Changed("min-length") {
		cfg.Digest.MinLength = runMinLength
	}
	if flags.Changed("max-length") {
		cfg.Digest.MaxLength = runMaxLength
	}
	if flags.Changed("executor") {
		cfg.Executor.Name = runExecutor
	}
	if flags.Changed("workers") {
		cfg.Executor.Workers = runWorkers
	}
	if flags.Changed("retries") {
		cfg.Executor.Retries = runRetries
	}
	if flags.Changed("data-dir") {
		cfg.Paths.DataDir = runDataDir
	}
	if flags.Changed("no-cache") && runNoCache {
		cfg.Cache.Enabled = false
	}
	return cfg.Validate()
}

// session holds what a pipeline run needs from the project: config,
// state database, debug log and executor.
type session struct {
	cfg    *config.Config
	root   string
	store  *state.DB
	logger *pipeline.DebugLogger
	exec   executor.Executor
}

// openSession loads config, applies the pipeline flags of cmd and opens
// the project's state database and executor.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return nil, err
	}
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg, root)
	if err != nil {
		return nil, err
	}
	ex, err := newExecutor(cfg, root)
	if err != nil {
		store.Close()
		return nil, err
	}

	logger := pipeline.NewDebugLoggerForProject(root)
	pipeline.SetDebugLogger(logger)
	return &session{cfg: cfg, root: root, store: store, logger: logger, exec: ex}, nil
}

// plan builds the task graph for inputDir.
func (s *session) plan(inputDir string) ([]*models.Task, error) {
	return pipeline.Plan(inputDir, s.cfg.Paths.DataDir, s.cfg.Params())
}

// runner creates a pipeline runner recording into the session's store.
func (s *session) runner(inputDir string) *pipeline.Runner {
	return pipeline.NewRunner(
		pipeline.RequiredConfig{Executor: s.exec},
		pipeline.WithStore(s.store),
		pipeline.WithCache(s.cfg.Cache.Enabled),
		pipeline.WithRetries(s.cfg.Executor.Retries, s.cfg.Executor.RetryBackoff),
		pipeline.WithInputDir(inputDir),
		pipeline.WithLogger(s.logger),
	)
}

func (s *session) Close() error {
	pipeline.SetDebugLogger(nil)
	s.exec.Close()
	s.logger.Close()
	return s.store.Close()
}

func runPipeline(cmd *cobra.Command, args []string) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in run: %v", r)
		}
	}()

	inputDir := args[0]

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	tasks, err := s.plan(inputDir)
	if err != nil {
		return err
	}
	runner := s.runner(inputDir)

	if runDryRun {
		cached := make(map[string]bool, len(tasks))
		for _, t := range tasks {
			cached[t.ID] = runner.WouldCache(t)
		}
		fmt.Print(tui.NewPlanView(tasks, cached).View())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sum *pipeline.Summary
	if runTUI {
		sum, err = runWithTUI(ctx, runner, tasks)
	} else {
		sum, err = runHeadless(ctx, runner, tasks)
	}

	if sum != nil && runSummary != "" {
		if werr := writeSummary(runSummary, sum); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// runHeadless runs tasks and prints one line per event.
func runHeadless(ctx context.Context, runner *pipeline.Runner, tasks []*models.Task) (*pipeline.Summary, error) {
	stop := make(chan struct{})
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		pipeline.Consume(runner.Events(), stop, printEvent)
	}()

	sum, err := runner.Run(ctx, tasks)
	close(stop)
	<-printed

	if sum != nil {
		fmt.Printf("\nRun %s: %d executed, %d cached, %d failed in %s\n",
			sum.RunID, sum.Executed, sum.Cached, sum.Failed, sum.Duration.Round(time.Millisecond))
	}
	return sum, err
}

func printEvent(ev pipeline.Event) {
	switch ev.Type {
	case pipeline.EventTaskStarted:
		printStatus("→", ev.TaskID, color.FgCyan)
	case pipeline.EventTaskCached:
		printStatus("=", ev.TaskID+" (cached)", color.FgBlue)
	case pipeline.EventTaskDone:
		printStatus("✓", fmt.Sprintf("%s (%s)", ev.TaskID, ev.Duration.Round(time.Millisecond)), color.FgGreen)
	case pipeline.EventTaskRetry:
		printStatus("⚠", fmt.Sprintf("%s attempt %d failed, retrying: %v", ev.TaskID, ev.Attempt, ev.Error), color.FgYellow)
	case pipeline.EventTaskFailed:
		printStatus("✗", fmt.Sprintf("%s: %v", ev.TaskID, ev.Error), color.FgRed)
	}
}

// writeSummary writes sum as indented JSON to path, or stdout for "-".
func writeSummary(path string, sum *pipeline.Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
