package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/taxaflow/taxaflow/internal/errors"
	"github.com/taxaflow/taxaflow/internal/logging"
)

const (
	// ManifestFileName is the manifest file within a run directory
	ManifestFileName = "manifest.json"
	// ArtifactsDirName is the directory the toolkit writes artifacts into
	ArtifactsDirName = "artifacts"
)

// Store persists run manifests as JSON files under a runs directory.
// Writes are atomic so a crash mid-save never leaves a torn manifest.
type Store struct {
	runsDir string
	mu      sync.RWMutex
}

// NewStore creates a Store rooted at runsDir. The directory is created if
// it doesn't exist.
func NewStore(runsDir string) (*Store, error) {
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runs directory: %w", err)
	}
	return &Store{runsDir: runsDir}, nil
}

// RunsDir returns the root directory this store manages.
func (s *Store) RunsDir() string {
	return s.runsDir
}

// RunDir returns the directory for a run.
func (s *Store) RunDir(id string) string {
	return filepath.Join(s.runsDir, id)
}

// ArtifactsDir returns a run's artifacts directory.
func (s *Store) ArtifactsDir(id string) string {
	return filepath.Join(s.RunDir(id), ArtifactsDirName)
}

// LogPath returns the path to a run's debug log.
func (s *Store) LogPath(id string) string {
	return filepath.Join(s.RunDir(id), logging.LogFileName)
}

// Create materializes a new run on disk: the run directory, the artifacts
// directory, and the initial manifest. Fails if the run already exists.
func (s *Store) Create(r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		return errors.NewValidationError("run ID cannot be empty")
	}

	runDir := s.RunDir(r.ID)
	if _, err := os.Stat(runDir); err == nil {
		return errors.NewAlreadyExistsError("run", r.ID)
	}

	if err := os.MkdirAll(filepath.Join(runDir, ArtifactsDirName), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	return s.writeManifest(r)
}

// Save persists a run's manifest using an atomic write.
func (s *Store) Save(r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		return errors.NewValidationError("run ID cannot be empty")
	}

	runDir := s.RunDir(r.ID)
	if _, err := os.Stat(runDir); err != nil {
		if os.IsNotExist(err) {
			return errors.NewRunError("run directory missing", errors.ErrRunNotFound).WithRunID(r.ID)
		}
		return fmt.Errorf("failed to check run directory: %w", err)
	}

	return s.writeManifest(r)
}

// Load reads a run's manifest by ID.
func (s *Store) Load(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := filepath.Join(s.RunDir(id), ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewRunError("no such run", errors.ErrRunNotFound).WithRunID(id)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.NewRunError(
			fmt.Sprintf("manifest is not valid JSON: %v", err),
			errors.ErrManifestCorrupted,
		).WithRunID(id)
	}

	if r.ID != id {
		return nil, errors.NewRunError(
			fmt.Sprintf("manifest ID mismatch (file: %s)", r.ID),
			errors.ErrManifestCorrupted,
		).WithRunID(id)
	}

	return &r, nil
}

// Delete removes a run directory and everything in it.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runDir := s.RunDir(id)
	if _, err := os.Stat(runDir); err != nil {
		if os.IsNotExist(err) {
			return errors.NewRunError("no such run", errors.ErrRunNotFound).WithRunID(id)
		}
		return fmt.Errorf("failed to check run directory: %w", err)
	}

	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to delete run directory: %w", err)
	}
	return nil
}

// Exists reports whether a run with the given ID has a manifest on disk.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(filepath.Join(s.RunDir(id), ManifestFileName))
	return err == nil
}

// writeManifest writes the manifest JSON atomically. Caller holds the lock.
func (s *Store) writeManifest(r *Run) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := filepath.Join(s.RunDir(r.ID), ManifestFileName)
	return atomicWriteFile(path, data, 0644)
}

// atomicWriteFile writes data to a file atomically by writing to a
// temporary file first, then renaming. This ensures the target file is
// never in a partially-written state.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	// Create temp file in same directory to ensure atomic rename
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on any error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
