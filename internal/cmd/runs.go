package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taxaflow/taxaflow/internal/run"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List known pipeline runs",
	Long: `List all pipeline runs in the runs directory, most recent first,
with their status, age, progress, and lock state.`,
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidatedConfig()
	if err != nil {
		return err
	}
	store, err := run.NewStore(cfg.Paths.ResolveRunsDir())
	if err != nil {
		return fmt.Errorf("failed to open runs directory: %w", err)
	}

	infos, err := store.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	fmt.Printf("%-10s %-10s %-8s %-10s %-8s %s\n", "RUN", "STATUS", "STAGES", "ARTIFACTS", "AGE", "")
	for _, info := range infos {
		total := len(info.Run.Stages)
		locked := ""
		if info.IsLocked {
			locked = fmt.Sprintf("locked (pid %d)", info.Lock.PID)
		}
		fmt.Printf("%-10s %-10s %3d/%-4d %-10d %-8s %s\n",
			info.Run.ID,
			string(info.Run.Status),
			info.Run.CompletedStages(), total,
			countArtifacts(info.Run),
			formatAge(time.Since(info.Run.Created)),
			locked,
		)
	}
	return nil
}

// countArtifacts totals the artifacts recorded across a run's stages.
func countArtifacts(r *run.Run) int {
	n := 0
	for _, s := range r.Stages {
		n += len(s.Artifacts)
	}
	return n
}

// formatAge renders a duration in the largest sensible unit.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
