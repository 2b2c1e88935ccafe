package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/taxaflow/taxaflow/internal/errors"
	"github.com/taxaflow/taxaflow/internal/logging"
)

// LockFileName is the name of the lock file within a run directory
const LockFileName = "run.lock"

// Lock represents an acquired run lock. A lock means a taxaflow process
// is currently driving the run's pipeline.
type Lock struct {
	RunID     string    `json:"run_id"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`

	// Internal fields (not serialized)
	lockFile string
	logger   *logging.Logger
}

// AcquireLock attempts to acquire an exclusive lock on the run directory.
// Returns an error wrapping errors.ErrRunLocked if the run is already in
// use by another live process. Stale locks from dead processes are cleaned
// automatically. The logger parameter is optional and can be nil.
func AcquireLock(runDir, runID string, logger *logging.Logger) (*Lock, error) {
	lockPath := filepath.Join(runDir, LockFileName)

	// Check for existing lock
	if existingLock, err := ReadLock(lockPath); err == nil {
		// Lock file exists - check if the process is still alive
		if isProcessAlive(existingLock.PID) {
			if logger != nil {
				logger.Error("failed to acquire lock",
					"run_id", runID,
					"holder_pid", existingLock.PID,
					"holder_host", existingLock.Hostname,
				)
			}
			return nil, fmt.Errorf("%w: PID %d on %s", errors.ErrRunLocked, existingLock.PID, existingLock.Hostname)
		}
		// Stale lock - remove it
		oldPID := existingLock.PID
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
		if logger != nil {
			logger.Warn("stale lock cleaned",
				"run_id", runID,
				"old_pid", oldPID,
			)
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	lock := &Lock{
		RunID:     runID,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		lockFile:  lockPath,
		logger:    logger,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	// Use O_EXCL to fail if file already exists (race condition protection)
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			// Another process beat us to it - re-read and report
			if existingLock, readErr := ReadLock(lockPath); readErr == nil {
				return nil, fmt.Errorf("%w: PID %d on %s", errors.ErrRunLocked, existingLock.PID, existingLock.Hostname)
			}
			return nil, errors.ErrRunLocked
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(lockPath)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	if logger != nil {
		logger.Info("run lock acquired",
			"run_id", runID,
			"pid", lock.PID,
		)
	}

	return lock, nil
}

// Release releases the run lock by removing the lock file.
// Safe to call multiple times.
func (l *Lock) Release() error {
	if l == nil || l.lockFile == "" {
		return nil
	}

	// Only remove if we own the lock (PID matches)
	existingLock, err := ReadLock(l.lockFile)
	if err != nil {
		// Lock file doesn't exist or can't be read - nothing to do
		return nil
	}

	if existingLock.PID != l.PID {
		// Not our lock - don't remove it
		return nil
	}

	if err := os.Remove(l.lockFile); err != nil {
		return err
	}

	if l.logger != nil {
		l.logger.Info("run lock released",
			"run_id", l.RunID,
		)
	}

	return nil
}

// ReadLock reads a lock file and returns the Lock info.
func ReadLock(lockPath string) (*Lock, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}

	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	lock.lockFile = lockPath

	return &lock, nil
}

// IsLocked checks if a run directory is currently locked by a live process.
// Returns the lock info if locked, nil otherwise.
func IsLocked(runDir string) (*Lock, bool) {
	lockPath := filepath.Join(runDir, LockFileName)

	lock, err := ReadLock(lockPath)
	if err != nil {
		return nil, false
	}

	if !isProcessAlive(lock.PID) {
		// Stale lock
		return lock, false
	}

	return lock, true
}

// CleanStaleLock removes a stale lock file if the owning process is no
// longer running. Returns true if a stale lock was cleaned.
// The logger parameter is optional and can be nil.
func CleanStaleLock(runDir string, logger *logging.Logger) (bool, error) {
	lockPath := filepath.Join(runDir, LockFileName)

	lock, err := ReadLock(lockPath)
	if err != nil {
		// No lock file
		return false, nil
	}

	if isProcessAlive(lock.PID) {
		// Process is still running - not stale
		return false, nil
	}

	oldPID := lock.PID
	runID := lock.RunID

	if err := os.Remove(lockPath); err != nil {
		return false, fmt.Errorf("failed to remove stale lock: %w", err)
	}

	if logger != nil {
		logger.Warn("stale lock cleaned",
			"run_id", runID,
			"old_pid", oldPID,
		)
	}

	return true, nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	// On Unix, sending signal 0 checks if process exists without affecting it
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	return err == nil
}
