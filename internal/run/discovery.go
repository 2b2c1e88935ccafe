package run

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/taxaflow/taxaflow/internal/errors"
	"github.com/taxaflow/taxaflow/internal/logging"
)

// Info contains summary information about a run, for listings.
type Info struct {
	Run      *Run   `json:"run"`
	RunDir   string `json:"run_dir"`
	IsLocked bool   `json:"is_locked"`
	Lock     *Lock  `json:"lock,omitempty"`
}

// List returns information about every run in the store, newest first.
// Runs with unreadable manifests are skipped.
func (s *Store) List() ([]*Info, error) {
	entries, err := os.ReadDir(s.runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No runs directory = no runs
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var infos []*Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		r, err := s.Load(entry.Name())
		if err != nil {
			// Skip runs we can't read
			continue
		}

		runDir := s.RunDir(r.ID)
		lock, isLocked := IsLocked(runDir)
		infos = append(infos, &Info{
			Run:      r,
			RunDir:   runDir,
			IsLocked: isLocked,
			Lock:     lock,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Run.Created.After(infos[j].Run.Created)
	})

	return infos, nil
}

// MostRecent returns the newest run, or ErrRunNotFound if none exist.
func (s *Store) MostRecent() (*Run, error) {
	infos, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, errors.NewRunError("no runs exist", errors.ErrRunNotFound)
	}
	return infos[0].Run, nil
}

// Resolve finds a run by full ID or unique ID prefix, so users can type
// the first few characters the way they would a commit hash.
func (s *Store) Resolve(idOrPrefix string) (*Run, error) {
	if idOrPrefix == "" {
		return nil, errors.NewValidationError("run ID cannot be empty")
	}

	// Exact match first
	if s.Exists(idOrPrefix) {
		return s.Load(idOrPrefix)
	}

	infos, err := s.List()
	if err != nil {
		return nil, err
	}

	var matches []string
	for _, info := range infos {
		if strings.HasPrefix(info.Run.ID, idOrPrefix) {
			matches = append(matches, info.Run.ID)
		}
	}

	switch len(matches) {
	case 0:
		return nil, errors.NewRunError("no such run", errors.ErrRunNotFound).WithRunID(idOrPrefix)
	case 1:
		return s.Load(matches[0])
	default:
		return nil, errors.NewValidationError(
			fmt.Sprintf("run ID prefix %q is ambiguous: matches %s", idOrPrefix, strings.Join(matches, ", ")),
		)
	}
}

// CleanupStaleLocks iterates through all runs and removes stale lock files.
// Returns the IDs of runs that had stale locks cleaned.
func (s *Store) CleanupStaleLocks(logger *logging.Logger) ([]string, error) {
	entries, err := os.ReadDir(s.runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var cleaned []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		wasCleaned, err := CleanStaleLock(s.RunDir(entry.Name()), logger)
		if err != nil {
			continue // Skip errors, try other runs
		}

		if wasCleaned {
			cleaned = append(cleaned, entry.Name())
		}
	}

	return cleaned, nil
}
