package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/digestflow/internal/watch"
)

var watchStop bool

var watchCmd = &cobra.Command{
	Use:   "watch <input_dir>",
	Short: "Re-run the pipeline whenever FASTA inputs change",
	Long: `Run the pipeline once, then again whenever a *.fasta file in input_dir
is created, written, renamed or removed. Bursts of changes are debounced
(watch.debounce, default 500ms). Unchanged proteins are served from the
cache, so a re-run only executes what the change affects.

A failed run is reported and watching continues. Stop with Ctrl-C, or run
'digestflow watch --stop' from another terminal in the same project.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if watchStop {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runWatch,
}

func init() {
	addPipelineFlags(watchCmd)
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "Ask a running watch in this project to stop")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	stateDir := filepath.Join(root, ".digestflow")

	if watchStop {
		if err := watch.SendStop(stateDir); err != nil {
			return fmt.Errorf("send stop signal: %w", err)
		}
		fmt.Println("Stop signal sent.")
		return nil
	}

	inputDir := args[0]
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	run := func(ctx context.Context) error {
		tasks, err := s.plan(inputDir)
		if err != nil {
			return err
		}
		_, err = runHeadless(ctx, s.runner(inputDir), tasks)
		return err
	}

	w, err := watch.New(inputDir, stateDir, run, watch.WithDebounce(s.cfg.Watch.Debounce))
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", inputDir)
	if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	fmt.Printf("Watch stopped after %d runs.\n", w.Runs())
	return nil
}
