package run

import (
	"testing"

	"github.com/taxaflow/taxaflow/internal/artifact"
)

var testStages = []string{
	"import-table",
	"import-taxonomy",
	"filter-features",
	"add-pseudocount",
	"correlation-clustering",
	"ilr-transform",
	"ols-regression",
	"dendrogram-heatmap",
	"balance-taxonomy",
}

func testInputs() Inputs {
	return Inputs{
		Table:    "/data/table.biom",
		Taxonomy: "/data/taxonomy.tsv",
		Metadata: "/data/metadata.tsv",
	}
}

func testParams() Params {
	return Params{
		MinFrequency: 10,
		Pseudocount:  1,
		Formula:      "ph + depth",
		TaxaLevel:    6,
		Balance:      "y0",
	}
}

func TestNew(t *testing.T) {
	r := New(testInputs(), testParams(), testStages)

	if r.ID == "" {
		t.Error("New run should have an ID")
	}
	if len(r.ID) != 8 {
		t.Errorf("ID length = %d, want 8 hex characters", len(r.ID))
	}
	if r.Status != StatusPending {
		t.Errorf("Status = %q, want %q", r.Status, StatusPending)
	}
	if len(r.Stages) != len(testStages) {
		t.Fatalf("len(Stages) = %d, want %d", len(r.Stages), len(testStages))
	}
	for i, s := range r.Stages {
		if s.Name != testStages[i] {
			t.Errorf("Stages[%d].Name = %q, want %q", i, s.Name, testStages[i])
		}
		if s.Status != StagePending {
			t.Errorf("Stages[%d].Status = %q, want %q", i, s.Status, StagePending)
		}
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate run ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestRun_Stage(t *testing.T) {
	r := New(testInputs(), testParams(), testStages)

	if s := r.Stage("ilr-transform"); s == nil {
		t.Error("Stage() should find an existing stage")
	}
	if s := r.Stage("nonexistent"); s != nil {
		t.Error("Stage() should return nil for unknown stage")
	}
}

func TestRun_Lifecycle(t *testing.T) {
	r := New(testInputs(), testParams(), testStages)

	r.MarkStarted()
	if r.Status != StatusRunning {
		t.Errorf("Status = %q, want %q", r.Status, StatusRunning)
	}
	if r.StartedAt == nil {
		t.Fatal("StartedAt should be set")
	}
	firstStart := *r.StartedAt

	r.MarkStageStarted("import-table", "tools import", []string{"tools", "import"})
	s := r.Stage("import-table")
	if s.Status != StageRunning {
		t.Errorf("stage Status = %q, want %q", s.Status, StageRunning)
	}
	if s.Subcommand != "tools import" {
		t.Errorf("stage Subcommand = %q, want %q", s.Subcommand, "tools import")
	}
	if len(s.Argv) != 2 || s.Argv[0] != "tools" {
		t.Errorf("stage Argv = %v, want the recorded argument vector", s.Argv)
	}

	arts := []*artifact.Artifact{{Name: "table.qza", Kind: artifact.KindData}}
	r.MarkStageCompleted("import-table", arts)
	if s.Status != StageCompleted {
		t.Errorf("stage Status = %q, want %q", s.Status, StageCompleted)
	}
	if len(s.Artifacts) != 1 {
		t.Errorf("stage should record 1 artifact, got %d", len(s.Artifacts))
	}

	// Resume keeps the original start time
	r.MarkStarted()
	if !r.StartedAt.Equal(firstStart) {
		t.Error("MarkStarted should not reset an existing start time")
	}

	r.MarkCompleted()
	if r.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", r.Status, StatusCompleted)
	}
	if !r.Finished() {
		t.Error("completed run should report Finished")
	}
}

func TestRun_MarkStageFailed(t *testing.T) {
	r := New(testInputs(), testParams(), testStages)
	r.MarkStarted()
	r.MarkStageStarted("ols-regression", "gneiss ols-regression", []string{"gneiss", "ols-regression"})

	r.MarkStageFailed("ols-regression", 1, "Plugin error from gneiss:\n  formula column missing")

	s := r.Stage("ols-regression")
	if s.Status != StageFailed {
		t.Errorf("stage Status = %q, want %q", s.Status, StageFailed)
	}
	if s.ExitCode != 1 {
		t.Errorf("stage ExitCode = %d, want 1", s.ExitCode)
	}
	if s.Error == "" {
		t.Error("stage should record the toolkit output")
	}

	if r.Status != StatusFailed {
		t.Errorf("run Status = %q, want %q", r.Status, StatusFailed)
	}
	if !r.Finished() {
		t.Error("failed run should report Finished")
	}
}

func TestRun_NextStage(t *testing.T) {
	r := New(testInputs(), testParams(), testStages)

	if got := r.NextStage(); got != "import-table" {
		t.Errorf("NextStage() = %q, want %q", got, "import-table")
	}

	r.MarkStageStarted("import-table", "tools import", []string{"tools", "import"})
	r.MarkStageCompleted("import-table", nil)
	if got := r.NextStage(); got != "import-taxonomy" {
		t.Errorf("NextStage() = %q, want %q", got, "import-taxonomy")
	}

	// A failed stage is retried on resume
	r.MarkStageStarted("import-taxonomy", "tools import", []string{"tools", "import"})
	r.MarkStageFailed("import-taxonomy", 2, "bad format")
	if got := r.NextStage(); got != "import-taxonomy" {
		t.Errorf("NextStage() after failure = %q, want %q", got, "import-taxonomy")
	}

	// Skipped stages are passed over
	r.Stage("import-taxonomy").Status = StageSkipped
	if got := r.NextStage(); got != "filter-features" {
		t.Errorf("NextStage() after skip = %q, want %q", got, "filter-features")
	}

	for _, s := range r.Stages {
		s.Status = StageCompleted
	}
	if got := r.NextStage(); got != "" {
		t.Errorf("NextStage() with all complete = %q, want empty", got)
	}
}

func TestRun_CompletedStages(t *testing.T) {
	r := New(testInputs(), testParams(), testStages)

	if r.CompletedStages() != 0 {
		t.Errorf("CompletedStages() = %d, want 0", r.CompletedStages())
	}

	r.MarkStageStarted("import-table", "tools import", []string{"tools", "import"})
	r.MarkStageCompleted("import-table", nil)
	r.MarkStageStarted("import-taxonomy", "tools import", []string{"tools", "import"})
	r.MarkStageCompleted("import-taxonomy", nil)

	if r.CompletedStages() != 2 {
		t.Errorf("CompletedStages() = %d, want 2", r.CompletedStages())
	}
}

func TestRun_ResetStage(t *testing.T) {
	r := New(testInputs(), testParams(), testStages)
	r.MarkStageStarted("filter-features", "feature-table filter-features",
		[]string{"feature-table", "filter-features"})
	r.MarkStageCompleted("filter-features", []*artifact.Artifact{{Name: "filtered-table.qza"}})

	r.ResetStage("filter-features")

	s := r.Stage("filter-features")
	if s.Status != StagePending {
		t.Errorf("Status = %q, want pending after reset", s.Status)
	}
	if s.Argv != nil || s.Subcommand != "" {
		t.Error("reset should clear the recorded invocation")
	}
	if s.StartedAt != nil || s.CompletedAt != nil || len(s.Artifacts) != 0 {
		t.Error("reset should clear timings and artifacts")
	}
}

func TestStageRecord_Duration(t *testing.T) {
	s := &StageRecord{Name: "filter-features"}
	if s.Duration() != 0 {
		t.Errorf("Duration() for unstarted stage = %v, want 0", s.Duration())
	}
}
