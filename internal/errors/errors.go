// Package errors provides centralized error definitions and error handling utilities
// for the taxaflow codebase. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - RunError: errors related to run directory management
//   - ToolkitError: errors from external toolkit invocations
//   - PipelineError: errors related to pipeline stage execution
//   - ArtifactError: errors related to artifact tracking
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewRunError("failed to load manifest", errors.ErrManifestCorrupted)
//
//	// Semantic error
//	err := errors.NewNotFoundError("run", "a3f9c2")
//
//	// With context wrapping
//	err := errors.NewToolkitError("invocation failed", baseErr).WithExitCode(2)
//
// Checking errors:
//
//	// Check for specific sentinel errors
//	if errors.Is(err, errors.ErrRunNotFound) { ... }
//
//	// Check for error types
//	var tkErr *errors.ToolkitError
//	if errors.As(err, &tkErr) { ... }
//
//	// Use classification helpers
//	if errors.IsUserFacing(err) { ... }
//	code := errors.ExitCode(err)
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
//   - ExitCode: the process exit code a failed toolkit invocation carried
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Run-related sentinel errors
var (
	// ErrRunNotFound indicates that a run directory could not be found.
	ErrRunNotFound = New("run not found")
	// ErrRunLocked indicates that a run is locked by another process.
	ErrRunLocked = New("run is locked")
	// ErrManifestCorrupted indicates that a run manifest could not be decoded.
	ErrManifestCorrupted = New("run manifest corrupted")
	// ErrRunFinished indicates that a run has already reached a terminal status.
	ErrRunFinished = New("run already finished")
)

// Toolkit-related sentinel errors
var (
	// ErrToolkitNotFound indicates that the toolkit binary is not on PATH.
	ErrToolkitNotFound = New("toolkit binary not found")
	// ErrInvocationFailed indicates that a toolkit subcommand exited non-zero.
	ErrInvocationFailed = New("toolkit invocation failed")
)

// Pipeline-related sentinel errors
var (
	// ErrStageNotFound indicates that a named stage does not exist.
	ErrStageNotFound = New("stage not found")
	// ErrStageFailed indicates that a stage execution failed.
	ErrStageFailed = New("stage failed")
	// ErrPipelineCanceled indicates that pipeline execution was canceled.
	ErrPipelineCanceled = New("pipeline canceled")
	// ErrInvalidStageRange indicates that a --from/--until selection is not contiguous.
	ErrInvalidStageRange = New("invalid stage range")
)

// Artifact-related sentinel errors
var (
	// ErrArtifactNotFound indicates that an expected artifact file is missing.
	ErrArtifactNotFound = New("artifact not found")
	// ErrArtifactExists indicates that an artifact would be overwritten.
	ErrArtifactExists = New("artifact already exists")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrOperationFailed indicates a general operation failure.
	ErrOperationFailed = New("operation failed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// TaxaflowError is the base interface for all taxaflow errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type TaxaflowError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// RunError represents errors related to run directory management.
//
// Example:
//
//	err := errors.NewRunError("failed to load manifest", errors.ErrManifestCorrupted)
//	err = err.WithRunID("a3f9c2")
//	fmt.Println(err) // "run error [run=a3f9c2]: failed to load manifest: run manifest corrupted"
type RunError struct {
	baseError
	RunID string
}

// NewRunError creates a new RunError.
func NewRunError(message string, cause error) *RunError {
	return &RunError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithRunID adds a run ID to the error context.
func (e *RunError) WithRunID(id string) *RunError {
	e.RunID = id
	return e
}

// WithSeverity sets the error severity.
func (e *RunError) WithSeverity(s Severity) *RunError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *RunError) Error() string {
	prefix := "run error"
	if e.RunID != "" {
		prefix = fmt.Sprintf("run error [run=%s]", e.RunID)
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *RunError) Is(target error) bool {
	if _, ok := target.(*RunError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ToolkitError represents a failed external toolkit invocation. It carries
// the subcommand, the process exit code, and the captured output so the
// toolkit's own diagnostics can be surfaced verbatim.
//
// Example:
//
//	err := errors.NewToolkitError("invocation failed", errors.ErrInvocationFailed)
//	err = err.WithSubcommand("gneiss ols-regression").WithExitCode(1).WithOutput(stderr)
type ToolkitError struct {
	baseError
	Subcommand string
	Exit       int
	Output     string // Captured toolkit output (stdout+stderr)
}

// NewToolkitError creates a new ToolkitError.
func NewToolkitError(message string, cause error) *ToolkitError {
	return &ToolkitError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
		Exit: -1, // -1 indicates not set
	}
}

// WithSubcommand adds the toolkit subcommand to the error context.
func (e *ToolkitError) WithSubcommand(sub string) *ToolkitError {
	e.Subcommand = sub
	return e
}

// WithExitCode adds the process exit code to the error context.
func (e *ToolkitError) WithExitCode(code int) *ToolkitError {
	e.Exit = code
	return e
}

// WithOutput adds captured toolkit output to the error context.
func (e *ToolkitError) WithOutput(output string) *ToolkitError {
	e.Output = output
	return e
}

// WithSeverity sets the error severity.
func (e *ToolkitError) WithSeverity(s Severity) *ToolkitError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *ToolkitError) Error() string {
	var parts []string
	if e.Subcommand != "" {
		parts = append(parts, fmt.Sprintf("subcommand=%s", e.Subcommand))
	}
	if e.Exit >= 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.Exit))
	}

	prefix := "toolkit error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("toolkit error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Output != "" {
		msg = fmt.Sprintf("%s\ntoolkit output: %s", msg, strings.TrimSpace(e.Output))
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *ToolkitError) Is(target error) bool {
	if _, ok := target.(*ToolkitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PipelineError represents errors related to pipeline stage execution.
//
// Example:
//
//	err := errors.NewPipelineError("stage execution failed", errors.ErrStageFailed)
//	err = err.WithStage("ols-regression").WithRunID("a3f9c2")
type PipelineError struct {
	baseError
	Stage string
	RunID string
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(message string, cause error) *PipelineError {
	return &PipelineError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithStage adds a stage name to the error context.
func (e *PipelineError) WithStage(stage string) *PipelineError {
	e.Stage = stage
	return e
}

// WithRunID adds a run ID to the error context.
func (e *PipelineError) WithRunID(id string) *PipelineError {
	e.RunID = id
	return e
}

// WithSeverity sets the error severity.
func (e *PipelineError) WithSeverity(s Severity) *PipelineError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *PipelineError) Error() string {
	var parts []string
	if e.Stage != "" {
		parts = append(parts, fmt.Sprintf("stage=%s", e.Stage))
	}
	if e.RunID != "" {
		parts = append(parts, fmt.Sprintf("run=%s", e.RunID))
	}

	prefix := "pipeline error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("pipeline error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *PipelineError) Is(target error) bool {
	if _, ok := target.(*PipelineError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ArtifactError represents errors related to artifact tracking.
//
// Example:
//
//	err := errors.NewArtifactError("expected output missing", errors.ErrArtifactNotFound)
//	err = err.WithKind("balances").WithPath("/runs/a3f9c2/artifacts/balances.qza")
type ArtifactError struct {
	baseError
	Kind string
	Path string
}

// NewArtifactError creates a new ArtifactError.
func NewArtifactError(message string, cause error) *ArtifactError {
	return &ArtifactError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithKind adds an artifact kind to the error context.
func (e *ArtifactError) WithKind(kind string) *ArtifactError {
	e.Kind = kind
	return e
}

// WithPath adds an artifact path to the error context.
func (e *ArtifactError) WithPath(path string) *ArtifactError {
	e.Path = path
	return e
}

// WithSeverity sets the error severity.
func (e *ArtifactError) WithSeverity(s Severity) *ArtifactError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *ArtifactError) Error() string {
	var parts []string
	if e.Kind != "" {
		parts = append(parts, fmt.Sprintf("kind=%s", e.Kind))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "artifact error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("artifact error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ArtifactError) Is(target error) bool {
	if _, ok := target.(*ArtifactError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("run", "a3f9c2")
//	fmt.Println(err) // "run 'a3f9c2' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("artifact", "balances.qza")
//	fmt.Println(err) // "artifact 'balances.qza' already exists"
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("pseudocount must be positive")
//	err = err.WithField("composition.pseudocount").WithValue(-1)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for toolkit invocation", 30*time.Minute)
//	fmt.Println(err) // "timeout error: waiting for toolkit invocation (timeout: 30m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsUserFacing returns true if the error message is safe to display to end users.
// This checks for:
//   - Errors implementing TaxaflowError with IsUserFacing() returning true
//   - Semantic errors (NotFoundError, AlreadyExistsError, ValidationError, TimeoutError)
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    displayToUser(err.Error())
//	} else {
//	    displayToUser("An internal error occurred")
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	// Check if error implements TaxaflowError
	var tfErr TaxaflowError
	if As(err, &tfErr) {
		return tfErr.IsUserFacing()
	}

	// Semantic errors are always user-facing
	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	if As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout) {
		return true
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement TaxaflowError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    log.Error("critical", "err", err)
//	case errors.SeverityWarning:
//	    log.Warn("warning", "err", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	// Check if error implements TaxaflowError
	var tfErr TaxaflowError
	if As(err, &tfErr) {
		return tfErr.Severity()
	}

	// Default to Error severity for unknown errors
	return SeverityError
}

// ExitCode returns the process exit code the error carries. A failed toolkit
// invocation propagates the toolkit's own exit code; every other error maps
// to exit code 1, and nil maps to 0.
//
// Example:
//
//	os.Exit(errors.ExitCode(err))
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var tkErr *ToolkitError
	if As(err, &tkErr) && tkErr.Exit > 0 {
		return tkErr.Exit
	}

	return 1
}

// IsDomainError returns true if the error is a domain-specific error
// (RunError, ToolkitError, PipelineError, or ArtifactError).
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}

	var runErr *RunError
	var tkErr *ToolkitError
	var pipeErr *PipelineError
	var artErr *ArtifactError

	return As(err, &runErr) || As(err, &tkErr) ||
		As(err, &pipeErr) || As(err, &artErr)
}

// IsSemanticError returns true if the error is a semantic error
// (NotFoundError, AlreadyExistsError, ValidationError, or TimeoutError).
func IsSemanticError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	return As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to record artifact")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to load run %s", runID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
