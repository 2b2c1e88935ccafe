// Package run manages pipeline runs: the manifest describing a run's
// inputs, parameters, and stage progress, plus the on-disk layout that
// holds it. Each run owns a directory under the runs root containing
// manifest.json, an artifacts/ directory the toolkit writes into, a
// debug.log, and a run.lock while a process is driving the run.
package run

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/taxaflow/taxaflow/internal/artifact"
)

// Status describes the overall state of a run.
type Status string

const (
	StatusPending   Status = "pending"   // Created but no stage has started
	StatusRunning   Status = "running"   // A stage is in progress
	StatusCompleted Status = "completed" // Every scheduled stage finished
	StatusFailed    Status = "failed"    // A stage failed and the run aborted
)

// StageStatus describes the state of a single stage within a run.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped" // Excluded by a --from/--until range
)

// Inputs holds the files a run starts from. Paths are recorded as given
// on the command line and never modified afterwards.
type Inputs struct {
	Table    string `json:"table"`    // BIOM feature table
	Taxonomy string `json:"taxonomy"` // Taxonomy assignments (TSV)
	Metadata string `json:"metadata"` // Sample metadata (TSV)
}

// Params holds the scientific parameters a run was started with. They are
// fixed at run creation so a resumed run reproduces the original commands.
type Params struct {
	MinFrequency   int    `json:"min_frequency"`   // Feature filter threshold
	Pseudocount    int    `json:"pseudocount"`     // Added to counts before log transforms
	Formula        string `json:"formula"`         // OLS regression formula
	TaxaLevel      int    `json:"taxa_level"`      // Taxonomic level for balance summaries
	Balance        string `json:"balance"`         // Balance name for taxonomy visualization
	MetadataColumn string `json:"metadata_column"` // Metadata column for visualizations
	ColorMap       string `json:"color_map"`       // Heatmap color map
}

// StageRecord tracks one stage's execution within a run.
type StageRecord struct {
	Name        string               `json:"name"`
	Subcommand  string               `json:"subcommand,omitempty"` // Toolkit subcommand, recorded at execution
	Argv        []string             `json:"argv,omitempty"`       // Full toolkit argument vector, for reproducibility
	Status      StageStatus          `json:"status"`
	StartedAt   *time.Time           `json:"started_at,omitempty"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	ExitCode    int                  `json:"exit_code"`
	Error       string               `json:"error,omitempty"` // Toolkit stderr on failure
	Artifacts   []*artifact.Artifact `json:"artifacts,omitempty"`
}

// Duration returns how long the stage took, or 0 if it has not finished.
func (s *StageRecord) Duration() time.Duration {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(*s.StartedAt)
}

// Run is the persistent manifest for a pipeline run.
type Run struct {
	ID          string         `json:"id"`
	Created     time.Time      `json:"created"`
	Status      Status         `json:"status"`
	Inputs      Inputs         `json:"inputs"`
	Params      Params         `json:"params"`
	Stages      []*StageRecord `json:"stages"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// New creates a pending Run with a fresh ID and a pending record for each
// stage name, in order.
func New(inputs Inputs, params Params, stageNames []string) *Run {
	stages := make([]*StageRecord, 0, len(stageNames))
	for _, name := range stageNames {
		stages = append(stages, &StageRecord{
			Name:   name,
			Status: StagePending,
		})
	}

	return &Run{
		ID:      NewID(),
		Created: time.Now(),
		Status:  StatusPending,
		Inputs:  inputs,
		Params:  params,
		Stages:  stages,
	}
}

// NewID generates a random run identifier.
func NewID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// Fallback to a time-based ID
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(b)
}

// Stage returns the record for the named stage, or nil if the run has no
// such stage.
func (r *Run) Stage(name string) *StageRecord {
	for _, s := range r.Stages {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// StageNames returns the run's stage names in execution order.
func (r *Run) StageNames() []string {
	names := make([]string, len(r.Stages))
	for i, s := range r.Stages {
		names[i] = s.Name
	}
	return names
}

// MarkStarted transitions the run to running. The first call records the
// run's start time; resumed runs keep the original start.
func (r *Run) MarkStarted() {
	r.Status = StatusRunning
	r.Error = ""
	r.CompletedAt = nil
	if r.StartedAt == nil {
		now := time.Now()
		r.StartedAt = &now
	}
}

// MarkStageStarted transitions the named stage to running, recording the
// exact argument vector handed to the toolkit.
func (r *Run) MarkStageStarted(name, subcommand string, argv []string) {
	s := r.Stage(name)
	if s == nil {
		return
	}
	now := time.Now()
	s.Status = StageRunning
	s.Subcommand = subcommand
	s.Argv = argv
	s.StartedAt = &now
	s.CompletedAt = nil
	s.ExitCode = 0
	s.Error = ""
}

// MarkStageCompleted records a successful stage with its artifacts.
func (r *Run) MarkStageCompleted(name string, artifacts []*artifact.Artifact) {
	s := r.Stage(name)
	if s == nil {
		return
	}
	now := time.Now()
	s.Status = StageCompleted
	s.CompletedAt = &now
	s.Artifacts = artifacts
}

// MarkStageFailed records a failed stage and aborts the run. The toolkit's
// output is preserved verbatim so the user sees what the toolkit reported.
func (r *Run) MarkStageFailed(name string, exitCode int, output string) {
	s := r.Stage(name)
	if s != nil {
		now := time.Now()
		s.Status = StageFailed
		s.CompletedAt = &now
		s.ExitCode = exitCode
		s.Error = output
	}

	now := time.Now()
	r.Status = StatusFailed
	r.CompletedAt = &now
	r.Error = fmt.Sprintf("stage %s failed", name)
}

// ResetStage returns the named stage to pending so an explicit re-run can
// execute it again. The previous execution's record is cleared; the new
// one replaces it when the stage runs.
func (r *Run) ResetStage(name string) {
	s := r.Stage(name)
	if s == nil {
		return
	}
	s.Status = StagePending
	s.Subcommand = ""
	s.Argv = nil
	s.StartedAt = nil
	s.CompletedAt = nil
	s.ExitCode = 0
	s.Error = ""
	s.Artifacts = nil
}

// MarkCompleted transitions the run to completed.
func (r *Run) MarkCompleted() {
	now := time.Now()
	r.Status = StatusCompleted
	r.CompletedAt = &now
}

// Finished reports whether the run has reached a terminal state.
func (r *Run) Finished() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Duration returns the wall-clock time of the run so far, or the total
// duration for a finished run.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil {
		return 0
	}
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(*r.StartedAt)
	}
	return time.Since(*r.StartedAt)
}

// CompletedStages returns how many stages have finished successfully.
func (r *Run) CompletedStages() int {
	count := 0
	for _, s := range r.Stages {
		if s.Status == StageCompleted {
			count++
		}
	}
	return count
}

// NextStage returns the name of the first stage that has not completed,
// or "" if every stage is done. Failed stages are retried on resume.
func (r *Run) NextStage() string {
	for _, s := range r.Stages {
		if s.Status != StageCompleted && s.Status != StageSkipped {
			return s.Name
		}
	}
	return ""
}

// ValidateInputs checks that every recorded input file still exists.
func (r *Run) ValidateInputs() error {
	for _, path := range []string{r.Inputs.Table, r.Inputs.Taxonomy, r.Inputs.Metadata} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("input file not accessible: %s: %w", path, err)
		}
	}
	return nil
}
