package toolrunner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/retry"
)

func shellRunner(t *testing.T) *ExecRunner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests use sh")
	}
	return NewExecRunner(retry.DefaultPolicy()).WithOutput(&bytes.Buffer{}, &bytes.Buffer{})
}

func TestRun_Success(t *testing.T) {
	r := shellRunner(t)
	err := r.Run(context.Background(), Invocation{
		Name:    "true-tool",
		Command: "sh",
		Args:    []string{"-c", "exit 0"},
	})
	require.NoError(t, err)
}

func TestRun_NonZeroExitIsTypedError(t *testing.T) {
	r := shellRunner(t)
	err := r.Run(context.Background(), Invocation{
		Name:    "failing-tool",
		Command: "sh",
		Args:    []string{"-c", "exit 3"},
	})
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 3, exitErr.Code)
	require.Equal(t, "failing-tool", exitErr.Tool)
}

func TestRun_MissingCommand(t *testing.T) {
	r := shellRunner(t)
	err := r.Run(context.Background(), Invocation{
		Name:    "ghost",
		Command: "definitely-not-a-real-tool-xyz",
	})
	require.ErrorIs(t, err, ErrToolNotFound)
}

func TestRun_RetriesRetryableFailures(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("tests use sh")
	}
	policy := retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)
	var retried []string
	r := NewExecRunner(policy).
		WithOutput(&bytes.Buffer{}, &bytes.Buffer{}).
		WithRetryNotify(func(tool string) { retried = append(retried, tool) })

	// A marker file makes the command succeed on the second attempt.
	marker := t.TempDir() + "/done"
	err := r.Run(context.Background(), Invocation{
		Name:      "flaky-tool",
		Command:   "sh",
		Args:      []string{"-c", "test -e " + marker + " || { touch " + marker + "; exit 1; }"},
		Retryable: true,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"flaky-tool"}, retried)
}

func TestRun_NoRetryWhenNotRetryable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("tests use sh")
	}
	policy := retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 5)
	r := NewExecRunner(policy).WithOutput(&bytes.Buffer{}, &bytes.Buffer{})

	counter := t.TempDir() + "/count"
	err := r.Run(context.Background(), Invocation{
		Name:    "once-tool",
		Command: "sh",
		Args:    []string{"-c", "echo x >> " + counter + "; exit 1"},
	})
	require.Error(t, err)

	// Exactly one attempt recorded.
	data := readFile(t, counter)
	require.Equal(t, "x\n", data)
}

func TestRun_ContextCancellation(t *testing.T) {
	r := shellRunner(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := r.Run(ctx, Invocation{
		Name:    "sleeper",
		Command: "sh",
		Args:    []string{"-c", "sleep 10"},
	})
	require.Error(t, err)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
