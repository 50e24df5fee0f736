package queuectl

import (
	"context"
	"errors"
	"os/exec"
	"time"
)

// ErrTimeout is reported by a Runner when a command was killed because
// it exceeded its execution timeout.
var ErrTimeout = errors.New("queuectl: command timed out")

// Runner executes a job's command. A nil error means the command
// finished with a zero exit status. Any other outcome (non-zero exit,
// a failure to launch, or ErrTimeout) routes into Store.Fail.
type Runner interface {
	Run(ctx context.Context, command string) error
}

// ShellRunner runs commands through "sh -c" with a hard wall-clock
// timeout.
type ShellRunner struct {
	Timeout time.Duration // maximum runtime of a single command; DefaultExecTimeout if zero
}

// Run executes command and waits for it to finish. The timeout is
// independent of ctx: a shutdown signal must not kill a job that is
// already executing, so the deadline deliberately does not inherit
// from the caller's context.
func (r ShellRunner) Run(ctx context.Context, command string) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	execCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	err := cmd.Run()
	if execCtx.Err() == context.DeadlineExceeded {
		return ErrTimeout
	}
	return err
}
