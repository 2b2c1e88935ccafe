package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/taxaflow/taxaflow/internal/artifact"
	"github.com/taxaflow/taxaflow/internal/errors"
	"github.com/taxaflow/taxaflow/internal/event"
	"github.com/taxaflow/taxaflow/internal/logging"
	"github.com/taxaflow/taxaflow/internal/run"
	"github.com/taxaflow/taxaflow/internal/toolkit"
)

// Config holds required dependencies for creating an Engine.
type Config struct {
	Bus    *event.Bus     // Event bus stage progress is published on
	Store  *run.Store     // Manifest persistence
	Runner toolkit.Runner // Toolkit invocation backend
	Run    *run.Run       // The run to execute

	// From and Until restrict execution to a contiguous stage range.
	// Empty means the pipeline's first and last stage respectively.
	// Setting From re-executes the in-range stages even when an earlier
	// run already completed them.
	From  string
	Until string
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	logger *logging.Logger
}

// WithLogger sets the engine's logger. Defaults to a no-op logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// Engine executes a run's stages sequentially against the toolkit.
//
// Stages run strictly one at a time. A failed invocation aborts the run
// immediately: the failing stage and the run are marked failed in the
// manifest with the toolkit's output preserved verbatim, and no further
// stage is attempted. Progress is published on the event bus.
type Engine struct {
	mu      sync.RWMutex
	cfg     Config
	ecfg    engineConfig
	stages  []Stage
	start   int
	end     int
	current string
	cancel  context.CancelFunc
	started bool
	err     error
	wg      sync.WaitGroup // tracks the run() goroutine
}

// New creates an Engine for the given run. The --from/--until range is
// resolved here so an unknown stage name fails before anything starts.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Bus == nil {
		return nil, errors.New("pipeline: Bus is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("pipeline: Store is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("pipeline: Runner is required")
	}
	if cfg.Run == nil {
		return nil, errors.New("pipeline: Run is required")
	}

	ec := &engineConfig{}
	for _, opt := range opts {
		opt(ec)
	}
	if ec.logger == nil {
		ec.logger = logging.NopLogger()
	}

	stages := Stages()
	start, end, err := selectRange(stages, cfg.From, cfg.Until)
	if err != nil {
		return nil, err
	}

	for _, s := range stages {
		if cfg.Run.Stage(s.Name) == nil {
			return nil, errors.NewRunError(
				fmt.Sprintf("run manifest has no record for stage %s", s.Name), nil,
			).WithRunID(cfg.Run.ID)
		}
	}

	return &Engine{
		cfg:    cfg,
		ecfg:   *ec,
		stages: stages,
		start:  start,
		end:    end,
	}, nil
}

// Start begins execution. It returns immediately; the stages run in a
// goroutine. Use Wait to block until the run reaches a terminal state.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return errors.New("pipeline: already started")
	}
	// An explicit --from is a request to re-execute; without one a
	// completed run has nothing left to do.
	if e.cfg.Run.Status == run.StatusCompleted && e.cfg.From == "" {
		return errors.ErrRunFinished
	}

	if err := e.cfg.Run.ValidateInputs(); err != nil {
		return errors.NewValidationError(err.Error())
	}

	if e.cfg.From != "" {
		for i := e.start; i <= e.end; i++ {
			e.cfg.Run.ResetStage(e.stages[i].Name)
		}
	}
	e.markSkipped()
	e.cfg.Run.MarkStarted()
	if err := e.cfg.Store.Save(e.cfg.Run); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.started = true

	e.cfg.Bus.Publish(event.NewRunStartedEvent(
		e.cfg.Run.ID,
		e.cfg.Store.RunDir(e.cfg.Run.ID),
		e.cfg.Run.StageNames(),
		e.stages[e.start].Name,
	))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx)
	}()

	return nil
}

// Stop cancels a running pipeline and waits for it to settle. Idempotent.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	// Wait for the run() goroutine outside the lock; finish() clears
	// the started flag.
	e.wg.Wait()
	return nil
}

// Wait blocks until the run goroutine has finished and returns the run's
// terminal error, if any.
func (e *Engine) Wait() error {
	e.wg.Wait()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// Running reports whether the engine has been started and not yet reached
// a terminal state.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.started
}

// CurrentStage returns the name of the stage currently executing, or "".
func (e *Engine) CurrentStage() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// markSkipped marks stages outside the selected range as skipped. Stages
// that already completed in a previous invocation keep their status.
func (e *Engine) markSkipped() {
	for i, s := range e.stages {
		if i >= e.start && i <= e.end {
			continue
		}
		rec := e.cfg.Run.Stage(s.Name)
		if rec.Status == run.StagePending || rec.Status == run.StageFailed {
			rec.Status = run.StageSkipped
		}
	}
}

// run executes the selected stage range sequentially.
func (e *Engine) run(ctx context.Context) {
	artifactsDir := e.cfg.Store.ArtifactsDir(e.cfg.Run.ID)

	for i := e.start; i <= e.end; i++ {
		stage := e.stages[i]
		rec := e.cfg.Run.Stage(stage.Name)
		if rec.Status == run.StageCompleted || rec.Status == run.StageSkipped {
			continue
		}

		if err := ctx.Err(); err != nil {
			e.finish(errors.ErrCanceled)
			return
		}

		if err := e.runStage(ctx, stage, i, artifactsDir); err != nil {
			e.finish(err)
			return
		}
	}

	e.cfg.Run.MarkCompleted()
	e.finish(nil)
}

// runStage executes one stage: manifest transition, toolkit invocation,
// artifact collection. The manifest is saved after every transition so a
// crash leaves an accurate record.
func (e *Engine) runStage(ctx context.Context, stage Stage, index int, artifactsDir string) error {
	logger := e.ecfg.logger.WithStage(stage.Name)

	inv := stage.Invocation(e.cfg.Run, artifactsDir)

	e.setCurrent(stage.Name)
	e.cfg.Run.MarkStageStarted(stage.Name, stage.Subcommand, inv.Args)
	if err := e.cfg.Store.Save(e.cfg.Run); err != nil {
		return err
	}

	e.cfg.Bus.Publish(event.NewStageStartedEvent(
		e.cfg.Run.ID, stage.Name, index, len(e.stages), stage.Subcommand,
	))

	logger.Info("invoking toolkit", "subcommand", stage.Subcommand)
	e.cfg.Bus.Publish(event.NewToolkitInvokedEvent(
		e.cfg.Run.ID, stage.Name, e.cfg.Runner.Binary(), inv.Args,
	))

	result, err := e.cfg.Runner.Run(ctx, inv)
	if err != nil {
		return e.failStage(stage, result, err)
	}

	artifacts, err := e.collectArtifacts(stage, artifactsDir)
	if err != nil {
		return e.failStage(stage, result, err)
	}

	e.cfg.Run.MarkStageCompleted(stage.Name, artifacts)
	if err := e.cfg.Store.Save(e.cfg.Run); err != nil {
		return err
	}

	for _, a := range artifacts {
		e.cfg.Bus.Publish(event.NewArtifactWrittenEvent(
			e.cfg.Run.ID, stage.Name, a.Name, a.Path, string(a.Kind), a.Size,
		))
	}
	e.cfg.Bus.Publish(event.NewStageCompletedEvent(
		e.cfg.Run.ID, stage.Name, true, result.Duration, 0, "",
	))

	logger.Info("stage completed",
		"duration", result.Duration.String(),
		"artifacts", len(artifacts),
	)
	return nil
}

// failStage records a stage failure in the manifest and publishes the
// failure event. The returned error is what the caller surfaces.
func (e *Engine) failStage(stage Stage, result *toolkit.Result, cause error) error {
	exitCode := -1
	output := cause.Error()
	var duration time.Duration
	if result != nil {
		exitCode = result.ExitCode
		duration = result.Duration
		if result.Output != "" {
			output = result.Output
		}
	}

	var tkErr *errors.ToolkitError
	if errors.As(cause, &tkErr) {
		exitCode = tkErr.Exit
		if tkErr.Output != "" {
			output = tkErr.Output
		}
	}

	e.cfg.Run.MarkStageFailed(stage.Name, exitCode, output)
	if saveErr := e.cfg.Store.Save(e.cfg.Run); saveErr != nil {
		e.ecfg.logger.Error("failed to save manifest after stage failure",
			"stage", stage.Name, "error", saveErr)
	}

	e.cfg.Bus.Publish(event.NewStageCompletedEvent(
		e.cfg.Run.ID, stage.Name, false, duration, exitCode, output,
	))

	e.ecfg.logger.Error("stage failed",
		"stage", stage.Name,
		"exit_code", exitCode,
	)
	return cause
}

// collectArtifacts returns the artifacts the stage declared, as found on
// disk after the invocation. A declared output the toolkit did not write
// is an error: the invocation claimed success but its artifact is missing.
func (e *Engine) collectArtifacts(stage Stage, artifactsDir string) ([]*artifact.Artifact, error) {
	names := stage.Outputs(e.cfg.Run.Params)
	artifacts := make([]*artifact.Artifact, 0, len(names))
	for _, name := range names {
		a, err := artifact.FromFile(filepath.Join(artifactsDir, name))
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

// finish records the terminal state, saves the manifest, and publishes the
// run-completed event.
func (e *Engine) finish(runErr error) {
	e.setCurrent("")

	if runErr != nil && e.cfg.Run.Status != run.StatusFailed {
		// Cancellation or a persistence error, not a toolkit failure.
		e.cfg.Run.Status = run.StatusFailed
		e.cfg.Run.Error = runErr.Error()
		now := time.Now()
		e.cfg.Run.CompletedAt = &now
	}
	if err := e.cfg.Store.Save(e.cfg.Run); err != nil {
		e.ecfg.logger.Error("failed to save manifest", "error", err)
	}

	e.mu.Lock()
	e.err = runErr
	e.started = false
	e.mu.Unlock()

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	e.cfg.Bus.Publish(event.NewRunCompletedEvent(
		e.cfg.Run.ID, runErr == nil, e.cfg.Run.Duration(), errMsg,
	))
}

func (e *Engine) setCurrent(name string) {
	e.mu.Lock()
	e.current = name
	e.mu.Unlock()
}
