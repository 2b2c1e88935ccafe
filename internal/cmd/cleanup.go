package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/taxaflow/taxaflow/internal/artifact"
	"github.com/taxaflow/taxaflow/internal/logging"
	"github.com/taxaflow/taxaflow/internal/run"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old run directories",
	Long: `Cleanup removes run directories according to the configured policy:

- Runs older than cleanup.max_age_days (0 disables the age limit)
- Runs beyond the cleanup.max_runs most recent (0 disables the count limit)

Runs that are locked by a live process, still running, or contain an
artifact matching a cleanup.keep glob pattern are never removed. Stale
locks left behind by dead processes are broken first.

Use --dry-run to see what would be removed without making changes.`,
	RunE: runCleanup,
}

var (
	cleanupDryRun bool
	cleanupForce  bool
	cleanupMaxAge int
)

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be removed without making changes")
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Skip confirmation prompt")
	cleanupCmd.Flags().IntVar(&cleanupMaxAge, "max-age", -1, "Override cleanup.max_age_days for this invocation")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidatedConfig()
	if err != nil {
		return err
	}
	store, err := run.NewStore(cfg.Paths.ResolveRunsDir())
	if err != nil {
		return fmt.Errorf("failed to open runs directory: %w", err)
	}

	if cleaned, err := store.CleanupStaleLocks(logging.NopLogger()); err == nil && len(cleaned) > 0 {
		fmt.Printf("Broke %d stale lock(s).\n", len(cleaned))
	}

	maxAge := cfg.Cleanup.MaxAge()
	if cleanupMaxAge >= 0 {
		maxAge = time.Duration(cleanupMaxAge) * 24 * time.Hour
	}

	keep, err := compileKeepPatterns(cfg.Cleanup.Keep)
	if err != nil {
		return err
	}

	victims, err := expiredRuns(store, maxAge, cfg.Cleanup.MaxRuns, keep)
	if err != nil {
		return err
	}
	if len(victims) == 0 {
		fmt.Println("Nothing to clean up.")
		return nil
	}

	fmt.Printf("Runs to remove (%d):\n", len(victims))
	for _, info := range victims {
		fmt.Printf("  %s  %-10s %s old\n",
			info.Run.ID, string(info.Run.Status), formatAge(time.Since(info.Run.Created)))
	}

	if cleanupDryRun {
		fmt.Println("\nDry run mode - no changes made.")
		return nil
	}

	if !cleanupForce {
		fmt.Print("\nProceed with cleanup? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Cleanup cancelled.")
			return nil
		}
	}

	removed := 0
	for _, info := range victims {
		if err := store.Delete(info.Run.ID); err != nil {
			fmt.Printf("  failed to remove %s: %v\n", info.Run.ID, err)
			continue
		}
		removed++
	}
	fmt.Printf("Removed %d run(s).\n", removed)
	return nil
}

func compileKeepPatterns(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid cleanup.keep pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// expiredRuns applies the age and count policy to the run list, newest
// first, excluding protected runs.
func expiredRuns(store *run.Store, maxAge time.Duration, maxRuns int, keep []glob.Glob) ([]*run.Info, error) {
	infos, err := store.List()
	if err != nil {
		return nil, err
	}

	var victims []*run.Info
	kept := 0
	for _, info := range infos {
		if protectedRun(store, info, keep) {
			kept++
			continue
		}

		tooOld := maxAge > 0 && time.Since(info.Run.Created) > maxAge
		tooMany := maxRuns > 0 && kept >= maxRuns
		if tooOld || tooMany {
			victims = append(victims, info)
			continue
		}
		kept++
	}
	return victims, nil
}

// protectedRun reports whether a run must never be removed: it is locked,
// still running, or holds an artifact matching a keep pattern.
func protectedRun(store *run.Store, info *run.Info, keep []glob.Glob) bool {
	if info.IsLocked || info.Run.Status == run.StatusRunning {
		return true
	}
	if len(keep) == 0 {
		return false
	}

	for _, g := range keep {
		if g.Match(info.Run.ID) {
			return true
		}
	}
	artifacts, err := artifact.List(store.ArtifactsDir(info.Run.ID))
	if err != nil {
		return true // unreadable, leave it alone
	}
	for _, a := range artifacts {
		for _, g := range keep {
			if g.Match(a.Name) {
				return true
			}
		}
	}
	return false
}
