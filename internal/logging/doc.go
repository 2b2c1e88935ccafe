// Package logging provides structured logging for taxaflow runs.
//
// This package wraps Go's log/slog to provide JSON-formatted logs for
// debugging and post-hoc analysis. A pipeline run can involve several
// long external toolkit invocations; the structured log records what was
// invoked, with which arguments, and what came back, so a failed run can
// be reconstructed after the fact.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Persistent attributes (run ID, stage)
//   - Log rotation with configurable size limits
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The [Logger] type
// uses Go's slog internally which is designed for concurrent access. The
// [RotatingWriter] type uses a mutex to protect file operations during
// rotation. Child loggers created via With* methods share the underlying
// writer safely.
//
// # Basic Usage
//
// Create a logger for a run directory:
//
//	logger, err := logging.NewLogger("/path/to/run", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Debug("detailed info", "key", "value")
//	logger.Info("invocation completed", "duration_ms", 150)
//	logger.Warn("potential issue", "threshold", 100)
//	logger.Error("invocation failed", "error", err.Error())
//
// # Persistent Attributes
//
// Create child loggers with persistent attributes:
//
//	runLogger := logger.WithRun("a3f9c2")
//	stageLogger := runLogger.WithStage("ols-regression")
//
//	// All logs from stageLogger will include run_id and stage
//	stageLogger.Info("invocation started", "subcommand", "gneiss ols-regression")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"invocation started","run_id":"a3f9c2","stage":"ols-regression","subcommand":"gneiss ols-regression"}
//
// # Log Rotation
//
// Rotated files are named: debug.log.1, debug.log.2, etc., where .1 is the
// most recent backup. A MaxSizeMB of 0 disables rotation.
//
// # Testing
//
// For testing, use [NopLogger] to discard all log output:
//
//	func TestSomething(t *testing.T) {
//	    logger := logging.NopLogger()
//	    // Use logger in tests without creating files
//	}
//
// # Configuration
//
// The logging system is typically configured via taxaflow's config file:
//
//	logging:
//	  level: info
//	  max_size_mb: 10
//	  max_backups: 3
package logging
