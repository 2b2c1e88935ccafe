package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/taxaflow/taxaflow/internal/artifact"
	"github.com/taxaflow/taxaflow/internal/config"
	"github.com/taxaflow/taxaflow/internal/errors"
	"github.com/taxaflow/taxaflow/internal/event"
	"github.com/taxaflow/taxaflow/internal/logging"
	"github.com/taxaflow/taxaflow/internal/pipeline"
	"github.com/taxaflow/taxaflow/internal/run"
	"github.com/taxaflow/taxaflow/internal/toolkit"
	"github.com/taxaflow/taxaflow/internal/tui"
	"github.com/taxaflow/taxaflow/internal/workflow"
)

// timeRounding keeps printed durations readable.
const timeRounding = 100 * time.Millisecond

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Execute the pipeline described by a workflow file",
	Long: `Execute the differential-abundance pipeline for a workflow file.

The workflow file names the three inputs (feature table, taxonomy,
sample metadata) and may override pipeline parameters. Command-line
flags override the workflow file; the workflow file overrides config.

Examples:
  # Run the full pipeline
  taxaflow run study.yaml

  # Re-run a failed run from where it stopped
  taxaflow run study.yaml --run a3f9c2e1

  # Run only the modeling stages against existing artifacts
  taxaflow run study.yaml --run a3f9c2e1 --from ilr-transform

  # Watch progress interactively
  taxaflow run study.yaml --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runFromStage      string
	runUntilStage     string
	runResumeID       string
	runWatch          bool
	runMinFrequency   int
	runPseudocount    int
	runFormula        string
	runTaxaLevel      int
	runBalance        string
	runMetadataColumn string
	runColorMap       string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFromStage, "from", "", "First stage to execute (default: first incomplete)")
	runCmd.Flags().StringVar(&runUntilStage, "until", "", "Last stage to execute (default: last)")
	runCmd.Flags().StringVar(&runResumeID, "run", "", "Resume an existing run by ID or unique prefix")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Show interactive progress while the pipeline runs")
	runCmd.Flags().IntVar(&runMinFrequency, "min-frequency", 0, "Minimum total feature frequency for the filter stage")
	runCmd.Flags().IntVar(&runPseudocount, "pseudocount", 0, "Pseudocount added before the composition transform")
	runCmd.Flags().StringVar(&runFormula, "formula", "", "Regression formula over metadata covariates")
	runCmd.Flags().IntVar(&runTaxaLevel, "taxa-level", 0, "Taxonomic level for balance summaries (1-7)")
	runCmd.Flags().StringVar(&runBalance, "balance", "", "Balance name to summarize taxonomically")
	runCmd.Flags().StringVar(&runMetadataColumn, "metadata-column", "", "Metadata column for the visualizations")
	runCmd.Flags().StringVar(&runColorMap, "color-map", "", "Color map for the dendrogram heatmap")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidatedConfig()
	if err != nil {
		return err
	}

	wf, err := workflow.Load(args[0])
	if err != nil {
		return err
	}

	store, err := run.NewStore(cfg.Paths.ResolveRunsDir())
	if err != nil {
		return fmt.Errorf("failed to open runs directory: %w", err)
	}

	r, err := resolveRun(cmd, store, cfg, wf)
	if err != nil {
		return err
	}
	runDir := store.RunDir(r.ID)

	logger, err := openRunLogger(cfg, runDir)
	if err != nil {
		return err
	}
	defer logger.Close()
	logger = logger.WithRun(r.ID)

	lock, err := run.AcquireLock(runDir, r.ID, logger)
	if err != nil {
		return err
	}
	defer lock.Release()

	opts := []toolkit.Option{toolkit.WithLogger(logger)}
	if timeout := cfg.Toolkit.Timeout(); timeout > 0 {
		opts = append(opts, toolkit.WithTimeout(timeout))
	}
	runner, err := toolkit.NewExecRunner(cfg.Toolkit.Binary, opts...)
	if err != nil {
		return err
	}

	bus := event.NewBus()

	// Log and announce artifacts as the toolkit writes them, while a
	// stage is still in flight. The engine reports the same files again
	// from the manifest record; subscribers dedup by name.
	watcher, err := artifact.NewWatcher(store.ArtifactsDir(r.ID), func(a *artifact.Artifact) {
		logger.Debug("artifact written",
			"artifact", a.Name,
			"kind", string(a.Kind),
			"size", a.Size,
		)
		bus.Publish(event.NewArtifactWrittenEvent(r.ID, "", a.Name, a.Path, string(a.Kind), a.Size))
	})
	if err == nil {
		watcher.Start()
		defer watcher.Stop()
	} else {
		logger.Warn("artifact watcher unavailable", "error", err)
	}

	eng, err := pipeline.New(pipeline.Config{
		Bus:    bus,
		Store:  store,
		Runner: runner,
		Run:    r,
		From:   runFromStage,
		Until:  runUntilStage,
	}, pipeline.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The bus is synchronous, so whichever progress display is used must
	// be subscribed before the engine starts publishing.
	interactive := runWatch && cfg.UI.Progress && term.IsTerminal(int(os.Stdout.Fd()))
	var app *tui.App
	if interactive {
		app = tui.New(bus, r.ID, r.StageNames(), cfg.UI.RefreshInterval())
	} else {
		printPlainProgress(bus)
	}

	fmt.Printf("run %s: %s\n", r.ID, runDir)
	if err := eng.Start(ctx); err != nil {
		return err
	}

	if interactive {
		if err := app.Run(); err != nil {
			logger.Warn("progress display failed", "error", err)
		}
	}

	if err := eng.Wait(); err != nil {
		return err
	}
	fmt.Printf("run %s completed in %s\n", r.ID, r.Duration().Round(timeRounding))
	return nil
}

// resolveRun either loads the run named by --run or creates a fresh one
// from the workflow and effective parameters.
func resolveRun(cmd *cobra.Command, store *run.Store, cfg *config.Config, wf *workflow.Workflow) (*run.Run, error) {
	if runResumeID != "" {
		r, err := store.Resolve(runResumeID)
		if err != nil {
			return nil, err
		}
		if r.Status == run.StatusCompleted && runFromStage == "" {
			return nil, errors.ErrRunFinished
		}
		return r, nil
	}

	r := run.New(wf.ResolveInputs(), effectiveParams(cmd, cfg, wf), pipeline.StageNames())
	if err := store.Create(r); err != nil {
		return nil, err
	}
	return r, nil
}

// effectiveParams resolves pipeline parameters: config defaults, then
// workflow file overrides, then explicit command-line flags.
func effectiveParams(cmd *cobra.Command, cfg *config.Config, wf *workflow.Workflow) run.Params {
	p := run.Params{
		MinFrequency: cfg.Filter.MinFrequency,
		Pseudocount:  cfg.Composition.Pseudocount,
		Formula:      cfg.Regression.Formula,
		TaxaLevel:    cfg.Taxonomy.Level,
		Balance:      cfg.Taxonomy.Balance,
	}

	if wf.Params.MinFrequency != nil {
		p.MinFrequency = *wf.Params.MinFrequency
	}
	if wf.Params.Pseudocount != nil {
		p.Pseudocount = *wf.Params.Pseudocount
	}
	if wf.Params.Formula != "" {
		p.Formula = wf.Params.Formula
	}
	if wf.Params.TaxaLevel != nil {
		p.TaxaLevel = *wf.Params.TaxaLevel
	}
	if wf.Params.Balance != "" {
		p.Balance = wf.Params.Balance
	}
	if wf.Params.MetadataColumn != "" {
		p.MetadataColumn = wf.Params.MetadataColumn
	}
	if wf.Params.ColorMap != "" {
		p.ColorMap = wf.Params.ColorMap
	}

	flags := cmd.Flags()
	if flags.Changed("min-frequency") {
		p.MinFrequency = runMinFrequency
	}
	if flags.Changed("pseudocount") {
		p.Pseudocount = runPseudocount
	}
	if flags.Changed("formula") {
		p.Formula = runFormula
	}
	if flags.Changed("taxa-level") {
		p.TaxaLevel = runTaxaLevel
	}
	if flags.Changed("balance") {
		p.Balance = runBalance
	}
	if flags.Changed("metadata-column") {
		p.MetadataColumn = runMetadataColumn
	}
	if flags.Changed("color-map") {
		p.ColorMap = runColorMap
	}

	return p
}

// printPlainProgress subscribes line-oriented progress output, used when
// stdout is not a terminal or --watch is off.
func printPlainProgress(bus *event.Bus) {
	bus.Subscribe("stage.started", func(ev event.Event) {
		e := ev.(event.StageStartedEvent)
		fmt.Printf("[%d/%d] %s\n", e.Index+1, e.Total, e.Stage)
	})
	bus.Subscribe("stage.completed", func(ev event.Event) {
		e := ev.(event.StageCompletedEvent)
		if e.Success {
			fmt.Printf("  done in %s\n", e.Duration.Round(timeRounding))
		}
	})
}

// openRunLogger creates the run's debug logger, or a no-op logger when
// logging is disabled.
func openRunLogger(cfg *config.Config, runDir string) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLogger(runDir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	return logger, nil
}

// loadValidatedConfig loads the effective config and rejects invalid values.
func loadValidatedConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verrs := cfg.Validate(); len(verrs) > 0 {
		return nil, config.ValidationErrors(verrs)
	}
	return cfg, nil
}
