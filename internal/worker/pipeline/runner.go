package pipeline

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandRunner abstracts subprocess execution so stages can be tested
// without the real extractor/transcoder binaries.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands through os/exec with the caller's context
// handling cancellation and timeouts.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
