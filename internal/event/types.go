// Package event defines event types for decoupling components in taxaflow.
// These events enable communication between the pipeline engine, the TUI,
// and logging without requiring direct dependencies.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "run.started", "stage.completed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Run Lifecycle Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted when a pipeline run begins execution.
type RunStartedEvent struct {
	baseEvent
	RunID      string   // Unique identifier for the run
	RunDir     string   // Directory holding the run's artifacts and logs
	Stages     []string // Names of the stages scheduled for this run, in order
	FirstStage string   // First stage to execute (differs from Stages[0] on resume)
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID, runDir string, stages []string, firstStage string) RunStartedEvent {
	return RunStartedEvent{
		baseEvent:  newBaseEvent("run.started"),
		RunID:      runID,
		RunDir:     runDir,
		Stages:     stages,
		FirstStage: firstStage,
	}
}

// RunCompletedEvent is emitted when a pipeline run finishes, whether it
// succeeded or aborted on a stage failure.
type RunCompletedEvent struct {
	baseEvent
	RunID    string        // Unique identifier for the run
	Success  bool          // Whether every scheduled stage completed
	Duration time.Duration // Wall-clock time from run start to finish
	Error    string        // Failure description (empty on success)
}

// NewRunCompletedEvent creates a RunCompletedEvent.
func NewRunCompletedEvent(runID string, success bool, duration time.Duration, errMsg string) RunCompletedEvent {
	return RunCompletedEvent{
		baseEvent: newBaseEvent("run.completed"),
		RunID:     runID,
		Success:   success,
		Duration:  duration,
		Error:     errMsg,
	}
}

// -----------------------------------------------------------------------------
// Stage Events
// -----------------------------------------------------------------------------

// StageStartedEvent is emitted when a pipeline stage begins.
type StageStartedEvent struct {
	baseEvent
	RunID      string // Run the stage belongs to
	Stage      string // Stage name (e.g., "ilr-transform")
	Index      int    // Zero-based position of the stage in the schedule
	Total      int    // Total number of scheduled stages
	Subcommand string // Toolkit subcommand the stage will invoke
}

// NewStageStartedEvent creates a StageStartedEvent.
func NewStageStartedEvent(runID, stage string, index, total int, subcommand string) StageStartedEvent {
	return StageStartedEvent{
		baseEvent:  newBaseEvent("stage.started"),
		RunID:      runID,
		Stage:      stage,
		Index:      index,
		Total:      total,
		Subcommand: subcommand,
	}
}

// StageCompletedEvent is emitted when a pipeline stage finishes.
type StageCompletedEvent struct {
	baseEvent
	RunID    string        // Run the stage belongs to
	Stage    string        // Stage name
	Success  bool          // Whether the stage completed successfully
	Duration time.Duration // Wall-clock time the stage took
	ExitCode int           // Toolkit process exit code (0 on success)
	Error    string        // Toolkit stderr or failure description (empty on success)
}

// NewStageCompletedEvent creates a StageCompletedEvent.
func NewStageCompletedEvent(runID, stage string, success bool, duration time.Duration, exitCode int, errMsg string) StageCompletedEvent {
	return StageCompletedEvent{
		baseEvent: newBaseEvent("stage.completed"),
		RunID:     runID,
		Stage:     stage,
		Success:   success,
		Duration:  duration,
		ExitCode:  exitCode,
		Error:     errMsg,
	}
}

// -----------------------------------------------------------------------------
// Artifact Events
// -----------------------------------------------------------------------------

// ArtifactWrittenEvent is emitted when a stage produces an output artifact.
type ArtifactWrittenEvent struct {
	baseEvent
	RunID string // Run that produced the artifact
	Stage string // Stage that produced the artifact
	Name  string // Artifact file name (e.g., "balance_ols.qzv")
	Path  string // Absolute path to the artifact
	Kind  string // Artifact kind (e.g., "qza", "qzv")
	Size  int64  // Size in bytes
}

// NewArtifactWrittenEvent creates an ArtifactWrittenEvent.
func NewArtifactWrittenEvent(runID, stage, name, path, kind string, size int64) ArtifactWrittenEvent {
	return ArtifactWrittenEvent{
		baseEvent: newBaseEvent("artifact.written"),
		RunID:     runID,
		Stage:     stage,
		Name:      name,
		Path:      path,
		Kind:      kind,
		Size:      size,
	}
}

// -----------------------------------------------------------------------------
// Toolkit Events
// -----------------------------------------------------------------------------

// ToolkitInvokedEvent is emitted just before the external toolkit process
// is started. The full argument vector is included so a log subscriber can
// record the exact command line for reproducibility.
type ToolkitInvokedEvent struct {
	baseEvent
	RunID  string   // Run the invocation belongs to
	Stage  string   // Stage performing the invocation
	Binary string   // Toolkit binary (e.g., "qiime")
	Args   []string // Arguments passed to the binary
}

// NewToolkitInvokedEvent creates a ToolkitInvokedEvent.
func NewToolkitInvokedEvent(runID, stage, binary string, args []string) ToolkitInvokedEvent {
	return ToolkitInvokedEvent{
		baseEvent: newBaseEvent("toolkit.invoked"),
		RunID:     runID,
		Stage:     stage,
		Binary:    binary,
		Args:      args,
	}
}
