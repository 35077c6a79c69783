// Package toolrunner executes the external documentation tools. Every
// invocation is context-aware and its exit code is checked; failures surface
// as typed errors instead of being ignored.
package toolrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/retry"
)

// Invocation describes one external tool run.
type Invocation struct {
	Name    string   // logical tool name for logs and errors
	Command string   // executable to look up in PATH (or absolute path)
	Args    []string // arguments, already fully resolved
	Dir     string   // working directory; empty means inherit
	Env     []string // extra environment entries appended to os.Environ()

	// Retryable opts the invocation into the runner's retry policy. Doc
	// tools fail deterministically for bad input, so callers enable this
	// only where transient causes (filesystem contention) are plausible.
	Retryable bool
}

// ExitError reports a tool that ran but returned a non-zero exit code.
type ExitError struct {
	Tool string
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Tool, e.Code)
}
func (e *ExitError) Unwrap() error { return e.Err }

// ErrToolNotFound wraps exec.ErrNotFound with the tool name.
var ErrToolNotFound = errors.New("tool not found in PATH")

// Runner runs external tool invocations.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// ExecRunner is the os/exec backed Runner used in production.
type ExecRunner struct {
	policy  retry.Policy
	stdout  io.Writer
	stderr  io.Writer
	onRetry func(tool string)
}

// NewExecRunner creates a runner with the given retry policy. Tool output is
// passed through to the process streams so operators see the tools' own
// diagnostics, same as the original shell pipeline.
func NewExecRunner(policy retry.Policy) *ExecRunner {
	return &ExecRunner{policy: policy, stdout: os.Stdout, stderr: os.Stderr}
}

// WithOutput redirects tool output (used by tests).
func (r *ExecRunner) WithOutput(stdout, stderr io.Writer) *ExecRunner {
	r.stdout = stdout
	r.stderr = stderr
	return r
}

// WithRetryNotify registers a callback invoked once per retry attempt,
// before the backoff delay.
func (r *ExecRunner) WithRetryNotify(fn func(tool string)) *ExecRunner {
	r.onRetry = fn
	return r
}

// Run executes the invocation, retrying retryable failures per policy.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) error {
	if _, err := exec.LookPath(inv.Command); err != nil {
		return fmt.Errorf("%w: %s (%s)", ErrToolNotFound, inv.Command, inv.Name)
	}

	attempts := 1
	if inv.Retryable {
		attempts += r.policy.MaxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if r.onRetry != nil {
				r.onRetry(inv.Name)
			}
			delay := r.policy.Delay(attempt - 1)
			slog.Warn("Retrying tool invocation",
				logfields.Tool(inv.Name),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				logfields.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = r.runOnce(ctx, inv)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

func (r *ExecRunner) runOnce(ctx context.Context, inv Invocation) error {
	cmd := exec.CommandContext(ctx, inv.Command, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}

	start := time.Now()
	slog.Info("Running tool",
		logfields.Tool(inv.Name),
		slog.String("command", inv.Command),
		slog.Any("args", inv.Args))

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.Error("Tool failed",
				logfields.Tool(inv.Name),
				logfields.ExitCode(exitErr.ExitCode()),
				logfields.DurationMS(float64(elapsed.Milliseconds())))
			return &ExitError{Tool: inv.Name, Code: exitErr.ExitCode(), Err: err}
		}
		return fmt.Errorf("run %s: %w", inv.Name, err)
	}

	slog.Info("Tool completed",
		logfields.Tool(inv.Name),
		logfields.DurationMS(float64(elapsed.Milliseconds())))
	return nil
}
