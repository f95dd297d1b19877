package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when a job is created under an id already in use
	ErrJobExists = errors.New("job already exists")

	// ErrInvalidTransition is returned when a status change is not an allowed edge
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrAlreadyClaimed is returned when another worker owns the job's invocation
	ErrAlreadyClaimed = errors.New("job invocation already claimed")

	// ErrStorageUnavailable wraps failures of the backing store
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrArtifactNotFound is returned when a requested output file does not exist
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrForbiddenPath is returned when a requested path escapes the job root
	ErrForbiddenPath = errors.New("path escapes job directory")

	// ErrMalformedMetadata is returned when a metadata or manifest file cannot be used
	ErrMalformedMetadata = errors.New("malformed metadata")

	// ErrUnknownPlatform is returned for platform names outside the supported set
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrNoPlatforms is returned when a job is requested without target platforms
	ErrNoPlatforms = errors.New("at least one platform is required")

	// ErrInvalidPayload is returned when a queue message is malformed
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrNoOutputs is returned when the processor exits cleanly without producing files
	ErrNoOutputs = errors.New("no output files were generated")
)

// ProcessorLaunchError means the external processor could not be started
type ProcessorLaunchError struct {
	Err error
}

func (e *ProcessorLaunchError) Error() string {
	return "failed to launch processor: " + e.Err.Error()
}

func (e *ProcessorLaunchError) Unwrap() error {
	return e.Err
}

// ProcessorRuntimeError means the external processor exited unsuccessfully
type ProcessorRuntimeError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessorRuntimeError) Error() string {
	msg := fmt.Sprintf("processor exited with code %d", e.ExitCode)
	if e.Err != nil && e.ExitCode < 0 {
		msg = "processor failed: " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ProcessorRuntimeError) Unwrap() error {
	return e.Err
}

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
