package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taxaflow/taxaflow/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a commented config file with the default settings to the
taxaflow config directory. Existing config files are never overwritten.`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
}

const configTemplate = `# taxaflow configuration
#
# Values here are overridden by workflow files and command-line flags.
# Every key can also be set via environment, e.g. TAXAFLOW_TOOLKIT_BINARY.

toolkit:
  # The external toolkit binary invoked for every pipeline stage.
  binary: qiime
  # Per-invocation timeout in minutes. 0 waits indefinitely.
  timeout_minutes: 0

filter:
  # Features below this total frequency are dropped.
  min_frequency: 10

composition:
  # Added to every count before log-ratio transforms.
  pseudocount: 1

regression:
  # Formula over sample-metadata covariates, e.g. "Subject+Sex".
  formula: ""

taxonomy:
  # Taxonomic level for balance summaries (1=kingdom .. 7=species).
  level: 6
  # Balance to visualize. y0 is the root of the hierarchy.
  balance: y0

cleanup:
  # Runs older than this are removed by "taxaflow cleanup". 0 disables.
  max_age_days: 30
  # Keep at most this many recent runs. 0 disables.
  max_runs: 0
  # Runs with artifacts matching these globs are never removed.
  keep: []

logging:
  enabled: true
  level: info
  max_size_mb: 10
  max_backups: 3

paths:
  # Where run directories live. Empty means ~/.taxaflow/runs.
  runs_dir: ""

ui:
  # Interactive progress display for "run --watch".
  progress: true
  refresh_ms: 250
`

func runInit(cmd *cobra.Command, args []string) error {
	path := config.ConfigFile()

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}
