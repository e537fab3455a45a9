// Package errors provides structured error types for shrinkray operations.
package errors

import (
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrorKind represents the category of an error.
type ErrorKind int

const (
	// KindIO represents I/O errors.
	KindIO ErrorKind = iota
	// KindConfig represents configuration validation errors.
	KindConfig
	// KindDiscovery represents file discovery errors.
	KindDiscovery
	// KindClassify represents file type classification errors.
	KindClassify
	// KindCommand represents external command execution errors.
	KindCommand
	// KindTimeout represents external commands killed for exceeding their deadline.
	KindTimeout
	// KindToolMissing represents external tools not found on the system.
	KindToolMissing
	// KindCorruptOutput represents re-encoded output failing verification.
	KindCorruptOutput
	// KindCommit represents errors while swapping the output into place.
	KindCommit
	// KindCancelled represents user-cancelled operations.
	KindCancelled
)

// String returns a string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "I/O error"
	case KindConfig:
		return "Configuration error"
	case KindDiscovery:
		return "Discovery error"
	case KindClassify:
		return "Classification error"
	case KindCommand:
		return "Command error"
	case KindTimeout:
		return "Timeout"
	case KindToolMissing:
		return "Tool not found"
	case KindCorruptOutput:
		return "Corrupt output"
	case KindCommit:
		return "Commit error"
	case KindCancelled:
		return "Operation cancelled"
	default:
		return "Unknown error"
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

// CoreError is the main error type for shrinkray operations.
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

// NewIOError creates a new I/O error.
func NewIOError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindIO, Message: message, Underlying: underlying}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *CoreError {
	return &CoreError{Kind: KindConfig, Message: message}
}

// NewDiscoveryError creates a new file discovery error.
func NewDiscoveryError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindDiscovery, Message: message, Underlying: underlying}
}

// NewClassifyError creates a new classification error.
func NewClassifyError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindClassify, Message: message, Underlying: underlying}
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

// NewTimeoutError creates an error for a command killed after exceeding its deadline.
func NewTimeoutError(tool string, timeout time.Duration) *CoreError {
	return &CoreError{Kind: KindTimeout, Message: fmt.Sprintf("%s did not finish within %s", tool, timeout)}
}

// NewToolMissingError creates an error for an external tool missing from the system.
func NewToolMissingError(tool string) *CoreError {
	return &CoreError{Kind: KindToolMissing, Message: fmt.Sprintf("%s not found in PATH", tool)}
}

// NewCorruptOutputError creates an error for output failing post-encode verification.
func NewCorruptOutputError(path string, detail string) *CoreError {
	return &CoreError{Kind: KindCorruptOutput, Message: fmt.Sprintf("%s: %s", path, detail)}
}

// NewEmptyOutputError creates an error for a tool exiting cleanly without producing output.
func NewEmptyOutputError(tool string, path string) *CoreError {
	return &CoreError{Kind: KindCommand, Message: fmt.Sprintf("%s produced no output at %s", tool, path)}
}

// NewCommitError creates a new commit error.
func NewCommitError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindCommit, Message: message, Underlying: underlying}
}

// NewCancelledError creates an error for user-cancelled operations.
func NewCancelledError() *CoreError {
	return &CoreError{Kind: KindCancelled, Message: "operation was cancelled by the user"}
}

// IsKind checks if the error has the specified kind.
func IsKind(err error, kind ErrorKind) bool {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Kind == kind
	}
	return false
}

// IsCancelled checks if the error is a cancellation error.
func IsCancelled(err error) bool {
	return IsKind(err, KindCancelled)
}

// WrapExecError wraps an exec.ExitError into a CoreError.
func WrapExecError(cmd string, err error, stderr string) *CoreError {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return NewCommandFailedError(cmd, exitErr.ExitCode(), stderr)
	}
	return NewCommandStartError(cmd, err)
}
