package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/digestflow/internal/pipeline"
	"github.com/ShayCichocki/digestflow/internal/tui"
	"github.com/ShayCichocki/digestflow/pkg/models"
)

// runWithTUI runs tasks while a bubbletea program shows their progress.
// Quitting the program cancels the run.
func runWithTUI(ctx context.Context, runner *pipeline.Runner, tasks []*models.Task) (*pipeline.Summary, error) {
	// Log output would corrupt the TUI.
	prev := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(prev)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program, app := tui.NewRunProgram(tasks, tea.WithContext(ctx))

	stop := make(chan struct{})
	go tui.Forward(program, runner.Events(), stop)

	type runResult struct {
		sum *pipeline.Summary
		err error
	}
	runDone := make(chan runResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				runDone <- runResult{err: fmt.Errorf("PANIC in pipeline: %v", r)}
			}
		}()
		sum, err := runner.Run(ctx, tasks)
		runDone <- runResult{sum: sum, err: err}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		_, err := program.Run()
		tuiDone <- err
	}()

	select {
	case res := <-runDone:
		close(stop)
		program.Send(tui.DoneMsg{Summary: res.sum, Err: res.err})
		if err := <-tuiDone; err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return res.sum, fmt.Errorf("tui: %w", err)
		}
		return res.sum, res.err

	case err := <-tuiDone:
		// The user quit: stop the run and wait for it to record its state.
		cancel()
		res := <-runDone
		close(stop)
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return res.sum, fmt.Errorf("tui: %w", err)
		}
		if app.Cancelled() {
			return res.sum, context.Canceled
		}
		return res.sum, res.err
	}
}
