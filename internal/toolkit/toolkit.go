// Package toolkit wraps invocation of the external bioinformatics toolkit
// binary. Every pipeline stage reduces to one subprocess call built from an
// Invocation; the Runner interface lets the pipeline engine swap the real
// subprocess runner for a fake in tests.
package toolkit

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/taxaflow/taxaflow/internal/errors"
	"github.com/taxaflow/taxaflow/internal/logging"
)

// Invocation describes one toolkit subcommand call. Args holds everything
// after the binary name, already in final order.
type Invocation struct {
	// Subcommand is the logical subcommand for logging and error context
	// (e.g., "gneiss ols-regression").
	Subcommand string
	// Args is the full argument vector passed to the binary.
	Args []string
	// Dir is the working directory for the subprocess. Empty means inherit.
	Dir string
}

// String renders the invocation as a shell-like command line.
func (inv Invocation) String() string {
	return strings.Join(inv.Args, " ")
}

// Result captures a completed toolkit invocation.
type Result struct {
	ExitCode int
	Output   string // Combined stdout and stderr
	Duration time.Duration
}

// Runner executes toolkit invocations.
type Runner interface {
	// Run executes the invocation and waits for it to finish. A non-zero
	// exit returns a *errors.ToolkitError carrying the exit code and the
	// toolkit's combined output; the Result is returned in both cases.
	Run(ctx context.Context, inv Invocation) (*Result, error)

	// Binary returns the toolkit binary this runner invokes.
	Binary() string
}

// ExecRunner runs invocations as real subprocesses.
type ExecRunner struct {
	binary  string
	timeout time.Duration // 0 means no per-invocation timeout
	logger  *logging.Logger
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithTimeout sets a per-invocation timeout. When the timeout elapses the
// subprocess is killed and the invocation fails.
func WithTimeout(d time.Duration) Option {
	return func(r *ExecRunner) {
		r.timeout = d
	}
}

// WithLogger sets the logger for invocation tracing.
func WithLogger(logger *logging.Logger) Option {
	return func(r *ExecRunner) {
		r.logger = logger
	}
}

// NewExecRunner creates a runner for the given toolkit binary. The binary
// must be resolvable now: a missing toolkit should fail the run before any
// stage starts, not midway through.
func NewExecRunner(binary string, opts ...Option) (*ExecRunner, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("%w: %q is not on PATH", errors.ErrToolkitNotFound, binary)
	}

	r := &ExecRunner{
		binary: binary,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Binary returns the toolkit binary name.
func (r *ExecRunner) Binary() string {
	return r.binary
}

// Run executes the invocation. The toolkit's stdout and stderr are captured
// together so error output reaches the user exactly as the toolkit wrote it.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, r.binary, inv.Args...)
	if inv.Dir != "" {
		cmd.Dir = inv.Dir
	}

	r.logger.Debug("invoking toolkit",
		"binary", r.binary,
		"subcommand", inv.Subcommand,
		"args", inv.String(),
	)

	start := time.Now()
	out, err := cmd.CombinedOutput()
	result := &Result{
		Output:   string(out),
		Duration: time.Since(start),
	}

	if err == nil {
		r.logger.Debug("toolkit invocation succeeded",
			"subcommand", inv.Subcommand,
			"duration", result.Duration.String(),
		)
		return result, nil
	}

	// Timeout and cancellation take precedence over the generic exit error
	if runCtx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		return result, errors.NewTimeoutError(fmt.Sprintf("toolkit %s", inv.Subcommand), r.timeout)
	}
	if ctx.Err() == context.Canceled {
		result.ExitCode = -1
		return result, errors.ErrCanceled
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		r.logger.Error("toolkit invocation failed",
			"subcommand", inv.Subcommand,
			"exit_code", result.ExitCode,
		)
		return result, errors.NewToolkitError("invocation failed", errors.ErrInvocationFailed).
			WithSubcommand(inv.Subcommand).
			WithExitCode(result.ExitCode).
			WithOutput(result.Output)
	}

	// Failed before the process started (binary vanished, permission, etc.)
	result.ExitCode = -1
	return result, errors.NewToolkitError("failed to start toolkit", err).
		WithSubcommand(inv.Subcommand)
}
