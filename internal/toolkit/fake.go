package toolkit

import (
	"context"
	"sync"
	"time"

	"github.com/taxaflow/taxaflow/internal/errors"
)

// FakeRunner is a scripted Runner for tests. Each invocation is recorded;
// responses are keyed by subcommand, with unscripted subcommands succeeding
// with empty output.
type FakeRunner struct {
	mu          sync.Mutex
	invocations []Invocation
	failures    map[string]fakeFailure
	outputs     map[string]string
	// OnInvoke, when set, runs for each invocation before the scripted
	// response is applied. Tests use it to drop artifact files into the
	// run directory the way the real toolkit would.
	OnInvoke func(inv Invocation)
}

type fakeFailure struct {
	exitCode int
	output   string
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		failures: make(map[string]fakeFailure),
		outputs:  make(map[string]string),
	}
}

// FailWith scripts a non-zero exit for the given subcommand.
func (f *FakeRunner) FailWith(subcommand string, exitCode int, output string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[subcommand] = fakeFailure{exitCode: exitCode, output: output}
}

// RespondWith scripts successful output for the given subcommand.
func (f *FakeRunner) RespondWith(subcommand, output string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[subcommand] = output
}

// Invocations returns a copy of every invocation Run has received, in order.
func (f *FakeRunner) Invocations() []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Invocation, len(f.invocations))
	copy(out, f.invocations)
	return out
}

// Binary implements Runner.
func (f *FakeRunner) Binary() string {
	return "qiime"
}

// Run implements Runner with the scripted behavior.
func (f *FakeRunner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return &Result{ExitCode: -1}, errors.ErrCanceled
	}

	f.mu.Lock()
	f.invocations = append(f.invocations, inv)
	failure, failed := f.failures[inv.Subcommand]
	output := f.outputs[inv.Subcommand]
	onInvoke := f.OnInvoke
	f.mu.Unlock()

	if onInvoke != nil {
		onInvoke(inv)
	}

	if failed {
		result := &Result{
			ExitCode: failure.exitCode,
			Output:   failure.output,
			Duration: time.Millisecond,
		}
		return result, errors.NewToolkitError("invocation failed", errors.ErrInvocationFailed).
			WithSubcommand(inv.Subcommand).
			WithExitCode(failure.exitCode).
			WithOutput(failure.output)
	}

	return &Result{Output: output, Duration: time.Millisecond}, nil
}
