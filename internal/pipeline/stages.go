package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/taxaflow/taxaflow/internal/errors"
	"github.com/taxaflow/taxaflow/internal/run"
	"github.com/taxaflow/taxaflow/internal/toolkit"
)

// Stage names, in execution order.
const (
	StageImportTable           = "import-table"
	StageImportTaxonomy        = "import-taxonomy"
	StageFilterFeatures        = "filter-features"
	StageAddPseudocount        = "add-pseudocount"
	StageCorrelationClustering = "correlation-clustering"
	StageILRTransform          = "ilr-transform"
	StageOLSRegression         = "ols-regression"
	StageDendrogramHeatmap     = "dendrogram-heatmap"
	StageBalanceTaxonomy       = "balance-taxonomy"
)

// Artifact file names within a run's artifacts directory. Each stage writes
// its outputs here and never touches a predecessor's files.
const (
	tableArtifact       = "table.qza"
	taxonomyArtifact    = "taxonomy.qza"
	filteredArtifact    = "filtered-table.qza"
	compositionArtifact = "composition.qza"
	hierarchyArtifact   = "hierarchy.qza"
	balancesArtifact    = "balances.qza"
	regressionArtifact  = "regression-summary.qzv"
	heatmapArtifact     = "heatmap.qzv"
)

// Stage describes one pipeline step: the toolkit subcommand it invokes and
// how its command line is assembled from the run's inputs and parameters.
type Stage struct {
	Name       string
	Subcommand string
	args       func(in run.Inputs, p run.Params, dir string) []string
	outputs    func(p run.Params) []string
}

// Invocation builds the toolkit invocation for this stage against the given
// run and artifacts directory.
func (s Stage) Invocation(r *run.Run, artifactsDir string) toolkit.Invocation {
	args := strings.Fields(s.Subcommand)
	args = append(args, s.args(r.Inputs, r.Params, artifactsDir)...)
	return toolkit.Invocation{
		Subcommand: s.Subcommand,
		Args:       args,
	}
}

// Outputs returns the artifact file names this stage is expected to write.
func (s Stage) Outputs(p run.Params) []string {
	return s.outputs(p)
}

func fixed(names ...string) func(run.Params) []string {
	return func(run.Params) []string { return names }
}

// balanceSummaryName derives the terminal visualization's file name from
// the balance being summarized.
func balanceSummaryName(p run.Params) string {
	return fmt.Sprintf("%s-taxa-summary.qzv", p.Balance)
}

// Stages returns the pipeline's stage list in execution order. The list is
// fixed; --from/--until select a contiguous sub-range of it.
func Stages() []Stage {
	return []Stage{
		{
			Name:       StageImportTable,
			Subcommand: "tools import",
			args: func(in run.Inputs, _ run.Params, dir string) []string {
				return []string{
					"--input-path", in.Table,
					"--output-path", filepath.Join(dir, tableArtifact),
					"--type", "FeatureTable[Frequency]",
				}
			},
			outputs: fixed(tableArtifact),
		},
		{
			Name:       StageImportTaxonomy,
			Subcommand: "tools import",
			args: func(in run.Inputs, _ run.Params, dir string) []string {
				return []string{
					"--input-path", in.Taxonomy,
					"--output-path", filepath.Join(dir, taxonomyArtifact),
					"--type", "FeatureData[Taxonomy]",
					"--input-format", "HeaderlessTSVTaxonomyFormat",
				}
			},
			outputs: fixed(taxonomyArtifact),
		},
		{
			Name:       StageFilterFeatures,
			Subcommand: "feature-table filter-features",
			args: func(_ run.Inputs, p run.Params, dir string) []string {
				return []string{
					"--i-table", filepath.Join(dir, tableArtifact),
					"--p-min-frequency", fmt.Sprintf("%d", p.MinFrequency),
					"--o-filtered-table", filepath.Join(dir, filteredArtifact),
				}
			},
			outputs: fixed(filteredArtifact),
		},
		{
			Name:       StageAddPseudocount,
			Subcommand: "composition add-pseudocount",
			args: func(_ run.Inputs, p run.Params, dir string) []string {
				return []string{
					"--i-table", filepath.Join(dir, filteredArtifact),
					"--p-pseudocount", fmt.Sprintf("%d", p.Pseudocount),
					"--o-composition-table", filepath.Join(dir, compositionArtifact),
				}
			},
			outputs: fixed(compositionArtifact),
		},
		{
			Name:       StageCorrelationClustering,
			Subcommand: "gneiss correlation-clustering",
			args: func(_ run.Inputs, _ run.Params, dir string) []string {
				return []string{
					"--i-table", filepath.Join(dir, compositionArtifact),
					"--o-clustering", filepath.Join(dir, hierarchyArtifact),
				}
			},
			outputs: fixed(hierarchyArtifact),
		},
		{
			Name:       StageILRTransform,
			Subcommand: "gneiss ilr-hierarchical",
			args: func(_ run.Inputs, _ run.Params, dir string) []string {
				return []string{
					"--i-table", filepath.Join(dir, compositionArtifact),
					"--i-tree", filepath.Join(dir, hierarchyArtifact),
					"--o-balances", filepath.Join(dir, balancesArtifact),
				}
			},
			outputs: fixed(balancesArtifact),
		},
		{
			Name:       StageOLSRegression,
			Subcommand: "gneiss ols-regression",
			args: func(in run.Inputs, p run.Params, dir string) []string {
				return []string{
					"--p-formula", p.Formula,
					"--i-table", filepath.Join(dir, balancesArtifact),
					"--i-tree", filepath.Join(dir, hierarchyArtifact),
					"--m-metadata-file", in.Metadata,
					"--o-visualization", filepath.Join(dir, regressionArtifact),
				}
			},
			outputs: fixed(regressionArtifact),
		},
		{
			Name:       StageDendrogramHeatmap,
			Subcommand: "gneiss dendrogram-heatmap",
			args: func(in run.Inputs, p run.Params, dir string) []string {
				args := []string{
					"--i-table", filepath.Join(dir, compositionArtifact),
					"--i-tree", filepath.Join(dir, hierarchyArtifact),
					"--m-metadata-file", in.Metadata,
				}
				if p.MetadataColumn != "" {
					args = append(args, "--m-metadata-column", p.MetadataColumn)
				}
				if p.ColorMap != "" {
					args = append(args, "--p-color-map", p.ColorMap)
				}
				args = append(args, "--o-visualization", filepath.Join(dir, heatmapArtifact))
				return args
			},
			outputs: fixed(heatmapArtifact),
		},
		{
			Name:       StageBalanceTaxonomy,
			Subcommand: "gneiss balance-taxonomy",
			args: func(in run.Inputs, p run.Params, dir string) []string {
				args := []string{
					"--i-table", filepath.Join(dir, compositionArtifact),
					"--i-tree", filepath.Join(dir, hierarchyArtifact),
					"--i-taxonomy", filepath.Join(dir, taxonomyArtifact),
					"--p-taxa-level", fmt.Sprintf("%d", p.TaxaLevel),
					"--p-balance-name", p.Balance,
					"--m-metadata-file", in.Metadata,
				}
				if p.MetadataColumn != "" {
					args = append(args, "--m-metadata-column", p.MetadataColumn)
				}
				args = append(args, "--o-visualization", filepath.Join(dir, balanceSummaryName(p)))
				return args
			},
			outputs: func(p run.Params) []string {
				return []string{balanceSummaryName(p)}
			},
		},
	}
}

// StageNames returns the names of all stages in execution order.
func StageNames() []string {
	stages := Stages()
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}

// stageIndex returns the position of the named stage, or -1.
func stageIndex(stages []Stage, name string) int {
	for i, s := range stages {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// selectRange resolves --from/--until names to an index range over the
// stage list. Empty names default to the full range.
func selectRange(stages []Stage, from, until string) (int, int, error) {
	start, end := 0, len(stages)-1

	if from != "" {
		if start = stageIndex(stages, from); start < 0 {
			return 0, 0, errors.NewValidationError(fmt.Sprintf("unknown stage %q", from))
		}
	}
	if until != "" {
		if end = stageIndex(stages, until); end < 0 {
			return 0, 0, errors.NewValidationError(fmt.Sprintf("unknown stage %q", until))
		}
	}
	if start > end {
		return 0, 0, errors.NewValidationError(
			fmt.Sprintf("stage %q comes after %q in the pipeline", from, until))
	}
	return start, end, nil
}
