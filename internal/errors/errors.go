// Package errors provides structured error types for crashcheck operations.
package errors

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrorKind represents the category of an error.
type ErrorKind int

const (
	// KindResource represents allocation failures for core structures.
	KindResource ErrorKind = iota
	// KindContainerOpen represents failures opening the input container.
	KindContainerOpen
	// KindStreamInfo represents failures probing stream information.
	KindStreamInfo
	// KindContainerRead represents demux failures after the container was opened.
	KindContainerRead
	// KindIO represents I/O errors.
	KindIO
	// KindPath represents path-related errors.
	KindPath
	// KindCommand represents external command execution errors.
	KindCommand
	// KindFFprobeParse represents FFprobe output parsing errors.
	KindFFprobeParse
	// KindConfig represents configuration validation errors.
	KindConfig
	// KindNoFilesFound represents no suitable video files found.
	KindNoFilesFound
	// KindBackendUnavailable represents a missing or unusable media backend.
	KindBackendUnavailable
	// KindCancelled represents cancelled or timed out operations.
	KindCancelled
)

// String returns a string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindResource:
		return "Resource error"
	case KindContainerOpen:
		return "Container open error"
	case KindStreamInfo:
		return "Stream info error"
	case KindContainerRead:
		return "Container read error"
	case KindIO:
		return "I/O error"
	case KindPath:
		return "Path error"
	case KindCommand:
		return "Command error"
	case KindFFprobeParse:
		return "FFprobe parse error"
	case KindConfig:
		return "Configuration error"
	case KindNoFilesFound:
		return "No files found"
	case KindBackendUnavailable:
		return "Backend unavailable"
	case KindCancelled:
		return "Operation cancelled"
	default:
		return "Unknown error"
	}
}

// Code is the integer result contract of a single check: 0 and 1 are
// verdicts, negative values are infrastructure failures.
type Code int

const (
	CodeSafe             Code = 0
	CodeUnsafe           Code = 1
	CodeOpenFailed       Code = -1
	CodeStreamInfoFailed Code = -2
	CodeOutOfMemory      Code = -3
	CodeInternal         Code = -4
)

// IsVerdict reports whether c is SAFE or UNSAFE rather than a failure.
func (c Code) IsVerdict() bool {
	return c >= 0
}

// CodeOf maps an error to its negative result code.
func CodeOf(err error) Code {
	var coreErr *CoreError
	if !errors.As(err, &coreErr) {
		return CodeInternal
	}
	switch coreErr.Kind {
	case KindResource:
		return CodeOutOfMemory
	case KindContainerOpen, KindContainerRead, KindPath:
		return CodeOpenFailed
	case KindStreamInfo:
		return CodeStreamInfoFailed
	default:
		return CodeInternal
	}
}

// CommandErrorKind represents the type of command error.
type CommandErrorKind int

const (
	// CommandStart means the command failed to start.
	CommandStart CommandErrorKind = iota
	// CommandWait means waiting for the command failed.
	CommandWait
	// CommandFailed means the command returned non-zero exit status.
	CommandFailed
)

// CommandError represents an error from executing an external command.
type CommandError struct {
	Command    string
	Kind       CommandErrorKind
	ExitCode   int
	Stderr     string
	Underlying error
}

func (e *CommandError) Error() string {
	switch e.Kind {
	case CommandStart:
		return fmt.Sprintf("failed to execute %s: %v", e.Command, e.Underlying)
	case CommandWait:
		return fmt.Sprintf("failed to wait for %s: %v", e.Command, e.Underlying)
	case CommandFailed:
		if e.Stderr != "" {
			return fmt.Sprintf("command %s failed with exit code %d: %s", e.Command, e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("command %s failed with exit code %d", e.Command, e.ExitCode)
	default:
		return fmt.Sprintf("command %s error: %v", e.Command, e.Underlying)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Underlying
}

// CoreError is the main error type for crashcheck operations.
type CoreError struct {
	Kind       ErrorKind
	Message    string
	Underlying error
}

func (e *CoreError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target matches this error's kind.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewResourceError creates an error for a failed allocation.
func NewResourceError(what string) *CoreError {
	return &CoreError{Kind: KindResource, Message: fmt.Sprintf("failed to allocate %s", what)}
}

// NewContainerOpenError creates an error for an input that could not be opened.
func NewContainerOpenError(path string, underlying error) *CoreError {
	return &CoreError{Kind: KindContainerOpen, Message: fmt.Sprintf("cannot open %s", path), Underlying: underlying}
}

// NewStreamInfoError creates an error for a failed stream info probe.
func NewStreamInfoError(path string, underlying error) *CoreError {
	return &CoreError{Kind: KindStreamInfo, Message: fmt.Sprintf("cannot read stream info of %s", path), Underlying: underlying}
}

// NewContainerReadError creates an error for a demux failure mid-scan.
func NewContainerReadError(path string, underlying error) *CoreError {
	return &CoreError{Kind: KindContainerRead, Message: fmt.Sprintf("failed reading packets from %s", path), Underlying: underlying}
}

// NewIOError creates a new I/O error.
func NewIOError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindIO, Message: message, Underlying: underlying}
}

// NewPathError creates a new path-related error.
func NewPathError(message string) *CoreError {
	return &CoreError{Kind: KindPath, Message: message}
}

// NewCommandError creates a new command execution error.
func NewCommandError(cmd string, kind CommandErrorKind, underlying error) *CoreError {
	cmdErr := &CommandError{
		Command:    cmd,
		Kind:       kind,
		Underlying: underlying,
	}
	return &CoreError{Kind: KindCommand, Message: cmdErr.Error(), Underlying: cmdErr}
}

// NewCommandStartError creates an error for when a command fails to start.
func NewCommandStartError(cmd string, err error) *CoreError {
	return NewCommandError(cmd, CommandStart, err)
}

// NewCommandWaitError creates an error for when waiting for a command fails.
func NewCommandWaitError(cmd string, err error) *CoreError {
	return NewCommandError(cmd, CommandWait, err)
}

// NewCommandFailedError creates an error for when a command returns non-zero exit status.
func NewCommandFailedError(cmd string, exitCode int, stderr string) *CoreError {
	cmdErr := &CommandError{
		Command:  cmd,
		Kind:     CommandFailed,
		ExitCode: exitCode,
		Stderr:   stderr,
	}
	return &CoreError{Kind: KindCommand, Message: cmdErr.Error(), Underlying: cmdErr}
}

// NewFFprobeParseError creates a new FFprobe parsing error.
func NewFFprobeParseError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindFFprobeParse, Message: message, Underlying: underlying}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *CoreError {
	return &CoreError{Kind: KindConfig, Message: message}
}

// NewNoFilesFoundError creates an error for when no video files are found.
func NewNoFilesFoundError(dir string) *CoreError {
	return &CoreError{Kind: KindNoFilesFound, Message: fmt.Sprintf("no suitable video files found in %s", dir)}
}

// NewBackendUnavailableError creates an error for an unknown or missing backend.
func NewBackendUnavailableError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindBackendUnavailable, Message: message, Underlying: underlying}
}

// NewCancelledError creates an error for cancelled or timed out scans.
func NewCancelledError(cause error) *CoreError {
	return &CoreError{Kind: KindCancelled, Message: "scan was interrupted", Underlying: cause}
}

// IsKind checks if the error has the specified kind.
func IsKind(err error, kind ErrorKind) bool {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Kind == kind
	}
	return false
}

// KindLabel returns a short snake_case name for the kind of err, suitable
// as a metric label. Errors that are not a CoreError are "internal".
func KindLabel(err error) string {
	var coreErr *CoreError
	if !errors.As(err, &coreErr) {
		return "internal"
	}
	switch coreErr.Kind {
	case KindResource:
		return "resource"
	case KindContainerOpen:
		return "container_open"
	case KindStreamInfo:
		return "stream_info"
	case KindContainerRead:
		return "container_read"
	case KindIO:
		return "io"
	case KindPath:
		return "path"
	case KindCommand:
		return "command"
	case KindFFprobeParse:
		return "ffprobe_parse"
	case KindConfig:
		return "config"
	case KindNoFilesFound:
		return "no_files_found"
	case KindBackendUnavailable:
		return "backend_unavailable"
	case KindCancelled:
		return "cancelled"
	default:
		return "internal"
	}
}

// IsCancelled checks if the error is a cancellation error.
func IsCancelled(err error) bool {
	return IsKind(err, KindCancelled)
}

// IsNoFilesFound checks if the error is a no-files-found error.
func IsNoFilesFound(err error) bool {
	return IsKind(err, KindNoFilesFound)
}

// WrapExecError wraps an exec.ExitError into a CoreError.
func WrapExecError(cmd string, err error, stderr string) *CoreError {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return NewCommandFailedError(cmd, exitErr.ExitCode(), stderr)
	}
	return NewCommandStartError(cmd, err)
}
