// Package exec runs external commands for the process executor and rule
// file shell commands.
package exec

import (
	"context"
)

// CommandRunner defines the interface for running external commands.
type CommandRunner interface {
	// Run executes name with args and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// RunShell executes command through "sh -c".
	RunShell(ctx context.Context, workDir string, command string) (output []byte, err error)
}
