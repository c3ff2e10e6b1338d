package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ShayCichocki/digestflow/internal/config"
	"github.com/ShayCichocki/digestflow/internal/exec"
	"github.com/ShayCichocki/digestflow/internal/executor"
	"github.com/ShayCichocki/digestflow/internal/pipeline"
	"github.com/ShayCichocki/digestflow/internal/state"
)

// openStore opens and migrates the project state database.
func openStore(cfg *config.Config, root string) (*state.DB, error) {
	db, err := state.OpenWithDriver(cfg.Cache.Driver, cfg.StatePath(root))
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate state database: %w", err)
	}

	recovered, err := db.RecoverInterruptedRuns()
	if err != nil {
		log.Printf("[state] recover interrupted runs: %v", err)
	}
	for _, r := range recovered {
		log.Printf("[state] run %s was interrupted", r.ID)
	}
	return db, nil
}

// newExecutor builds the configured executor. The process executor
// re-invokes this binary with the step subcommands.
func newExecutor(cfg *config.Config, root string) (executor.Executor, error) {
	runner := exec.NewRunner()
	binary, err := os.Executable()
	if err != nil {
		binary = os.Args[0]
	}
	return executor.New(executor.Config{
		Name:    cfg.Executor.Name,
		Workers: cfg.Executor.Workers,
		Step:    pipeline.NewSteps(runner, root).Run,
		Argv:    pipeline.StepArgv(binary),
		Runner:  runner,
		WorkDir: root,
	})
}

// projectRoot returns the working directory.
func projectRoot() (string, error) {
	root, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return root, nil
}
