// Package workflow loads the YAML file describing a pipeline run: the
// three input files and optional parameter overrides. Values the file
// leaves unset fall back to config, which falls back to built-in
// defaults; CLI flags override everything.
package workflow

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/taxaflow/taxaflow/internal/errors"
	"github.com/taxaflow/taxaflow/internal/run"
)

// Inputs names the three files the pipeline consumes.
type Inputs struct {
	Table    string `yaml:"table"`    // BIOM feature table
	Taxonomy string `yaml:"taxonomy"` // Taxonomy assignments (TSV)
	Metadata string `yaml:"metadata"` // Sample metadata (TSV)
}

// Params holds the optional parameter overrides. The numeric fields are
// pointers so that an explicit zero in the file still overrides config;
// nil means "not set here" and resolution falls through to config.
type Params struct {
	MinFrequency   *int   `yaml:"min_frequency,omitempty"`
	Pseudocount    *int   `yaml:"pseudocount,omitempty"`
	Formula        string `yaml:"formula,omitempty"`
	TaxaLevel      *int   `yaml:"taxa_level,omitempty"`
	Balance        string `yaml:"balance,omitempty"`
	MetadataColumn string `yaml:"metadata_column,omitempty"`
	ColorMap       string `yaml:"color_map,omitempty"`
}

// Workflow is the parsed workflow file.
type Workflow struct {
	Name   string `yaml:"name,omitempty"`
	Inputs Inputs `yaml:"inputs"`
	Params Params `yaml:"params,omitempty"`

	// Dir is the directory the workflow file was loaded from. Relative
	// input paths resolve against it.
	Dir string `yaml:"-"`
}

// Load reads and parses a workflow file. Unknown keys are rejected so a
// typo in a parameter name fails loudly instead of silently falling back
// to a default.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}

	var wf Workflow
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&wf); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("parsing workflow file %s: %v", path, err))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving workflow file path: %w", err)
	}
	wf.Dir = filepath.Dir(abs)

	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// Validate checks that the workflow names all three inputs and that any
// parameters it does set are in range. Input files are not stat'ed here;
// that happens when the run starts.
func (w *Workflow) Validate() error {
	if w.Inputs.Table == "" {
		return errors.NewValidationError("workflow must name a feature table (inputs.table)")
	}
	if w.Inputs.Taxonomy == "" {
		return errors.NewValidationError("workflow must name a taxonomy file (inputs.taxonomy)")
	}
	if w.Inputs.Metadata == "" {
		return errors.NewValidationError("workflow must name a sample metadata file (inputs.metadata)")
	}

	if v := w.Params.MinFrequency; v != nil && *v < 0 {
		return errors.NewValidationError("params.min_frequency must not be negative")
	}
	if v := w.Params.Pseudocount; v != nil && *v < 0 {
		return errors.NewValidationError("params.pseudocount must not be negative")
	}
	if v := w.Params.TaxaLevel; v != nil && (*v < 1 || *v > 7) {
		return errors.NewValidationError("params.taxa_level must be between 1 and 7")
	}
	return nil
}

// ResolveInputs returns the workflow's inputs with relative paths resolved
// against the workflow file's directory.
func (w *Workflow) ResolveInputs() run.Inputs {
	return run.Inputs{
		Table:    w.resolve(w.Inputs.Table),
		Taxonomy: w.resolve(w.Inputs.Taxonomy),
		Metadata: w.resolve(w.Inputs.Metadata),
	}
}

func (w *Workflow) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || w.Dir == "" {
		return path
	}
	return filepath.Join(w.Dir, path)
}
