// Package tui provides the terminal views for digestflow.
//
// RunApp is a read-only bubbletea model that follows a pipeline run: one row
// per task with its state, a progress bar, and the most recent retries and
// failures. Users can only quit with 'q' or Ctrl+C, which cancels the run.
//
// Usage:
//
//	program, app := tui.NewRunProgram(tasks)
//	go tui.Forward(program, runner.Events(), stop)
//	go func() {
//	    sum, err := runner.Run(ctx, tasks)
//	    program.Send(tui.DoneMsg{Summary: sum, Err: err})
//	}()
//	_, err := program.Run()
//
// PlanView renders a task graph without running it, marking the tasks the
// cache would serve.
package tui
