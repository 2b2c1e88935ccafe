package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taxaflow/taxaflow/internal/run"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show one run in detail",
	Long: `Show a run's stages and artifacts. With no run ID, shows the most
recent run. A unique ID prefix is accepted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidatedConfig()
	if err != nil {
		return err
	}
	store, err := run.NewStore(cfg.Paths.ResolveRunsDir())
	if err != nil {
		return fmt.Errorf("failed to open runs directory: %w", err)
	}

	var r *run.Run
	if len(args) > 0 {
		r, err = store.Resolve(args[0])
	} else {
		r, err = store.MostRecent()
	}
	if err != nil {
		return err
	}

	fmt.Printf("run %s  %s\n", r.ID, string(r.Status))
	fmt.Printf("  created:  %s\n", r.Created.Format("2006-01-02 15:04:05"))
	if r.StartedAt != nil {
		fmt.Printf("  duration: %s\n", r.Duration().Round(timeRounding))
	}
	fmt.Printf("  table:    %s\n", r.Inputs.Table)
	fmt.Printf("  taxonomy: %s\n", r.Inputs.Taxonomy)
	fmt.Printf("  metadata: %s\n", r.Inputs.Metadata)
	if r.Params.Formula != "" {
		fmt.Printf("  formula:  %s\n", r.Params.Formula)
	}
	if _, locked := run.IsLocked(store.RunDir(r.ID)); locked {
		fmt.Println("  locked:   yes")
	}

	fmt.Println("\nstages:")
	for _, s := range r.Stages {
		line := fmt.Sprintf("  %-24s %-10s", s.Name, string(s.Status))
		if d := s.Duration(); d > 0 {
			line += fmt.Sprintf(" %8s", d.Round(timeRounding))
		}
		fmt.Println(line)
		if s.Status == run.StageFailed && s.Error != "" {
			for _, errLine := range strings.Split(strings.TrimSpace(s.Error), "\n") {
				fmt.Printf("      %s\n", errLine)
			}
		}
		for _, a := range s.Artifacts {
			fmt.Printf("      %s (%s, %d bytes)\n", a.Name, string(a.Kind), a.Size)
		}
	}

	if r.Status == run.StatusFailed {
		if next := r.NextStage(); next != "" {
			fmt.Printf("\nresume with: taxaflow run <workflow.yaml> --run %s\n", r.ID)
		}
	}
	return nil
}
