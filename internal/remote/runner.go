// Package remote executes commands locally and over SSH, moves dump
// files between hosts and hides the difference behind a small Runner
// interface.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	apperrors "db-sync-tool/internal/errors"
)

// Runner executes a shell command and returns its trimmed stdout.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// LocalRunner executes commands through the local shell.
type LocalRunner struct{}

// NewLocalRunner returns a Runner for the local machine.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

// Run executes the command with sh -c and returns trimmed stdout.
// A non-zero exit status surfaces as an error carrying the stderr text.
func (r *LocalRunner) Run(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", apperrors.Classify(ctx.Err())
		}
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = err.Error()
		}
		// untyped on purpose: the caller knows which pipeline step
		// failed and classifies accordingly
		return "", fmt.Errorf("command failed: %s", message)
	}
	return strings.TrimSpace(stdout.String()), nil
}
