// Package executor runs external commands and captures their combined
// stdout/stderr stream.
//
// A command that runs and exits non-zero is a normal outcome and is reported
// through Result. Only the inability to launch a process is returned as an
// error.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	utilexec "k8s.io/utils/exec"
)

// MaxLoggedOutput bounds how much command output ends up in warnings.
const MaxLoggedOutput = 512

// ErrNotFound is returned when the executable cannot be located.
var ErrNotFound = utilexec.ErrExecutableNotFound

// Result is the outcome of one command invocation.
type Result struct {
	Command  string
	ExitCode int
	Output   []byte
	TimedOut bool
	Duration time.Duration
}

// Success reports whether the command exited zero within its time bound.
func (r Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Err returns nil for a successful result and a *FailedError otherwise.
func (r Result) Err() error {
	if r.Success() {
		return nil
	}
	return &FailedError{Result: r}
}

// FailedError describes a command that ran but did not succeed.
type FailedError struct {
	Result Result
}

func (e *FailedError) Error() string {
	out := Truncate(e.Result.Output, MaxLoggedOutput)
	if e.Result.TimedOut {
		return fmt.Sprintf("command %q timed out after %s: %s", e.Result.Command, e.Result.Duration.Round(time.Millisecond), out)
	}
	return fmt.Sprintf("command %q exited with code %d: %s", e.Result.Command, e.Result.ExitCode, out)
}

// Truncate returns at most n bytes of out as a trimmed string.
func Truncate(out []byte, n int) string {
	s := strings.TrimSpace(string(out))
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}

// Runner executes external commands.
type Runner interface {
	// Run executes name with args. A timeout of zero means no bound.
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error)
	// LookPath searches PATH for an executable.
	LookPath(file string) (string, error)
}

// Observer receives every completed Result.
type Observer func(Result)

// Option configures an Executor.
type Option func(*Executor)

// WithObserver registers an observer called after each command.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observers = append(e.observers, o)
	}
}

// WithExec replaces the process backend, mainly for tests.
func WithExec(iface utilexec.Interface) Option {
	return func(e *Executor) {
		e.exec = iface
	}
}

// Executor is the default Runner backed by k8s.io/utils/exec.
type Executor struct {
	exec      utilexec.Interface
	observers []Observer
}

// New creates an Executor that launches real processes.
func New(opts ...Option) *Executor {
	e := &Executor{exec: utilexec.New()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// LookPath implements Runner.
func (e *Executor) LookPath(file string) (string, error) {
	return e.exec.LookPath(file)
}

// Run implements Runner.
func (e *Executor) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res := Result{Command: CommandLine(name, args...)}
	slog.Debug("running command", "command", res.Command, "timeout", timeout)

	start := time.Now()
	out, err := e.runCombined(runCtx, name, args...)
	res.Duration = time.Since(start)
	res.Output = out

	switch {
	case err == nil:
	case timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.TimedOut = true
		res.ExitCode = -1
	case ctx.Err() != nil:
		return res, ctx.Err()
	default:
		var exitErr utilexec.ExitError
		if !errors.As(err, &exitErr) {
			return res, fmt.Errorf("failed to launch %s: %w", name, err)
		}
		res.ExitCode = exitErr.ExitStatus()
		if res.ExitCode == 0 {
			// killed by a signal without a deadline of ours
			res.ExitCode = -1
		}
	}

	if res.Success() {
		slog.Debug("command succeeded", "command", res.Command, "bytes", len(out), "duration", res.Duration)
	} else {
		slog.Debug("command failed", "command", res.Command, "exitCode", res.ExitCode,
			"timedOut", res.TimedOut, "output", Truncate(out, MaxLoggedOutput))
	}

	for _, o := range e.observers {
		o(res)
	}
	return res, nil
}

// runCombined runs the command with stdout and stderr interleaved into a
// temporary file. A file, unlike a pipe, lets Wait return as soon as the
// process exits, even if a descendant it spawned still holds the descriptor
// after a timeout kill.
func (e *Executor) runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	f, err := os.CreateTemp("", "supportdump-exec-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create output buffer for %s: %w", name, err)
	}
	defer func() {
		f.Close()
		os.Remove(f.Name())
	}()

	cmd := e.exec.CommandContext(ctx, name, args...)
	cmd.SetStdout(f)
	cmd.SetStderr(f)
	runErr := cmd.Run()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to read output of %s: %w", name, err)
	}
	out, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read output of %s: %w", name, err)
	}
	return out, runErr
}

// CommandLine renders name and args the way a shell user would type them.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t'\"*") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
