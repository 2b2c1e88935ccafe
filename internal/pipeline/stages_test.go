package pipeline

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/taxaflow/taxaflow/internal/errors"
	"github.com/taxaflow/taxaflow/internal/run"
)

func TestStageNames(t *testing.T) {
	want := []string{
		StageImportTable,
		StageImportTaxonomy,
		StageFilterFeatures,
		StageAddPseudocount,
		StageCorrelationClustering,
		StageILRTransform,
		StageOLSRegression,
		StageDendrogramHeatmap,
		StageBalanceTaxonomy,
	}
	if got := StageNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("StageNames() = %v, want %v", got, want)
	}
}

func TestStageInvocation(t *testing.T) {
	r := &run.Run{
		Inputs: run.Inputs{
			Table:    "/data/table.biom",
			Taxonomy: "/data/taxonomy.tsv",
			Metadata: "/data/metadata.tsv",
		},
		Params: run.Params{
			MinFrequency:   10,
			Pseudocount:    1,
			Formula:        "Subject+Sex",
			TaxaLevel:      6,
			Balance:        "y0",
			MetadataColumn: "Subject",
			ColorMap:       "seismic",
		},
	}
	dir := "/runs/a3f9c2e1/artifacts"

	tests := []struct {
		stage    string
		wantArgs []string
	}{
		{
			stage: StageImportTable,
			wantArgs: []string{
				"tools", "import",
				"--input-path", "/data/table.biom",
				"--output-path", filepath.Join(dir, "table.qza"),
				"--type", "FeatureTable[Frequency]",
			},
		},
		{
			stage: StageImportTaxonomy,
			wantArgs: []string{
				"tools", "import",
				"--input-path", "/data/taxonomy.tsv",
				"--output-path", filepath.Join(dir, "taxonomy.qza"),
				"--type", "FeatureData[Taxonomy]",
				"--input-format", "HeaderlessTSVTaxonomyFormat",
			},
		},
		{
			stage: StageFilterFeatures,
			wantArgs: []string{
				"feature-table", "filter-features",
				"--i-table", filepath.Join(dir, "table.qza"),
				"--p-min-frequency", "10",
				"--o-filtered-table", filepath.Join(dir, "filtered-table.qza"),
			},
		},
		{
			stage: StageAddPseudocount,
			wantArgs: []string{
				"composition", "add-pseudocount",
				"--i-table", filepath.Join(dir, "filtered-table.qza"),
				"--p-pseudocount", "1",
				"--o-composition-table", filepath.Join(dir, "composition.qza"),
			},
		},
		{
			stage: StageCorrelationClustering,
			wantArgs: []string{
				"gneiss", "correlation-clustering",
				"--i-table", filepath.Join(dir, "composition.qza"),
				"--o-clustering", filepath.Join(dir, "hierarchy.qza"),
			},
		},
		{
			stage: StageILRTransform,
			wantArgs: []string{
				"gneiss", "ilr-hierarchical",
				"--i-table", filepath.Join(dir, "composition.qza"),
				"--i-tree", filepath.Join(dir, "hierarchy.qza"),
				"--o-balances", filepath.Join(dir, "balances.qza"),
			},
		},
		{
			stage: StageOLSRegression,
			wantArgs: []string{
				"gneiss", "ols-regression",
				"--p-formula", "Subject+Sex",
				"--i-table", filepath.Join(dir, "balances.qza"),
				"--i-tree", filepath.Join(dir, "hierarchy.qza"),
				"--m-metadata-file", "/data/metadata.tsv",
				"--o-visualization", filepath.Join(dir, "regression-summary.qzv"),
			},
		},
		{
			stage: StageDendrogramHeatmap,
			wantArgs: []string{
				"gneiss", "dendrogram-heatmap",
				"--i-table", filepath.Join(dir, "composition.qza"),
				"--i-tree", filepath.Join(dir, "hierarchy.qza"),
				"--m-metadata-file", "/data/metadata.tsv",
				"--m-metadata-column", "Subject",
				"--p-color-map", "seismic",
				"--o-visualization", filepath.Join(dir, "heatmap.qzv"),
			},
		},
		{
			stage: StageBalanceTaxonomy,
			wantArgs: []string{
				"gneiss", "balance-taxonomy",
				"--i-table", filepath.Join(dir, "composition.qza"),
				"--i-tree", filepath.Join(dir, "hierarchy.qza"),
				"--i-taxonomy", filepath.Join(dir, "taxonomy.qza"),
				"--p-taxa-level", "6",
				"--p-balance-name", "y0",
				"--m-metadata-file", "/data/metadata.tsv",
				"--m-metadata-column", "Subject",
				"--o-visualization", filepath.Join(dir, "y0-taxa-summary.qzv"),
			},
		},
	}

	stages := Stages()
	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			idx := stageIndex(stages, tt.stage)
			if idx < 0 {
				t.Fatalf("stage %q not found", tt.stage)
			}
			inv := stages[idx].Invocation(r, dir)
			if !reflect.DeepEqual(inv.Args, tt.wantArgs) {
				t.Errorf("Args = %v, want %v", inv.Args, tt.wantArgs)
			}
		})
	}
}

func TestStageInvocationOmitsUnsetFlags(t *testing.T) {
	r := &run.Run{
		Inputs: run.Inputs{Metadata: "/data/metadata.tsv"},
		Params: run.Params{Balance: "y0"},
	}
	stages := Stages()

	inv := stages[stageIndex(stages, StageDendrogramHeatmap)].Invocation(r, "/a")
	for _, arg := range inv.Args {
		if arg == "--m-metadata-column" || arg == "--p-color-map" {
			t.Errorf("unset parameter flag %s should be omitted", arg)
		}
	}
}

func TestStageOutputs(t *testing.T) {
	stages := Stages()
	p := run.Params{Balance: "y1"}

	got := stages[stageIndex(stages, StageBalanceTaxonomy)].Outputs(p)
	want := []string{"y1-taxa-summary.qzv"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Outputs = %v, want %v", got, want)
	}

	got = stages[stageIndex(stages, StageImportTable)].Outputs(p)
	if !reflect.DeepEqual(got, []string{"table.qza"}) {
		t.Errorf("Outputs = %v, want [table.qza]", got)
	}
}

func TestSelectRange(t *testing.T) {
	stages := Stages()

	tests := []struct {
		name      string
		from      string
		until     string
		wantStart int
		wantEnd   int
		wantErr   bool
	}{
		{name: "full range by default", wantStart: 0, wantEnd: len(stages) - 1},
		{name: "from only", from: StageFilterFeatures, wantStart: 2, wantEnd: len(stages) - 1},
		{name: "until only", until: StageILRTransform, wantStart: 0, wantEnd: 5},
		{name: "from and until", from: StageAddPseudocount, until: StageOLSRegression, wantStart: 3, wantEnd: 6},
		{name: "single stage", from: StageOLSRegression, until: StageOLSRegression, wantStart: 6, wantEnd: 6},
		{name: "unknown from", from: "no-such-stage", wantErr: true},
		{name: "unknown until", until: "no-such-stage", wantErr: true},
		{name: "inverted range", from: StageOLSRegression, until: StageImportTable, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := selectRange(stages, tt.from, tt.until)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, errors.ErrInvalidInput) {
					t.Errorf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("selectRange failed: %v", err)
			}
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("range = [%d, %d], want [%d, %d]", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
