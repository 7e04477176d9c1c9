package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a pipeline failure for routing and diagnostics.
type ErrorKind string

const (
	// ErrorKindValidation indicates malformed input such as an unrecognized
	// jurisdiction or contract type. Never retried.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindMissingDependency indicates a node read another step's result
	// before it was produced. This is an orchestration bug and is raised
	// loudly rather than defaulted to empty.
	ErrorKindMissingDependency ErrorKind = "missing_dependency"

	// ErrorKindTransient indicates a recoverable collaborator failure
	// (network, rate limit). Retried up to the per-step cap.
	ErrorKindTransient ErrorKind = "transient"

	// ErrorKindLowConfidence indicates a computed confidence below the gate
	// threshold. Retried, then either proceeds with a warning or halts
	// depending on the band.
	ErrorKindLowConfidence ErrorKind = "low_confidence"

	// ErrorKindCheckpointCorruption indicates a checkpoint that claims a step
	// completed but its backing result is absent. Triggers forced
	// re-execution during resume, never a user-facing failure.
	ErrorKindCheckpointCorruption ErrorKind = "checkpoint_corruption"

	// ErrorKindTimeout indicates a node exceeded its wall-clock budget.
	// Counts against the step's retry budget.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindFatal is the terminal classification for unrecoverable
	// failures, including exhausted retry budgets.
	ErrorKindFatal ErrorKind = "fatal"
)

// PipelineError is a classified failure attributed to a pipeline step. It
// supports Go's error wrapping with Unwrap.
type PipelineError struct {
	Kind    ErrorKind `json:"kind"`
	Step    Step      `json:"step"`
	Cause   string    `json:"cause"`
	Wrapped error     `json:"-"`
}

func (e *PipelineError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: %s: %s", e.Step, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
}

func (e *PipelineError) Unwrap() error {
	return e.Wrapped
}

// Retryable reports whether this error may be retried within a step's budget.
func (e *PipelineError) Retryable() bool {
	switch e.Kind {
	case ErrorKindTransient, ErrorKindTimeout, ErrorKindLowConfidence:
		return true
	case ErrorKindValidation, ErrorKindMissingDependency, ErrorKindCheckpointCorruption, ErrorKindFatal:
		return false
	}
	return false
}

// NewValidationError reports malformed run input.
func NewValidationError(step Step, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: ErrorKindValidation, Step: step, Cause: fmt.Sprintf(format, args...)}
}

// NewMissingDependency reports that step required the result of dep before it
// was produced.
func NewMissingDependency(step, dep Step) *PipelineError {
	return &PipelineError{
		Kind:  ErrorKindMissingDependency,
		Step:  step,
		Cause: fmt.Sprintf("result of %q required but not present", dep),
	}
}

// NewLowConfidenceError reports a score below the gate threshold.
func NewLowConfidenceError(step Step, score float64) *PipelineError {
	return &PipelineError{
		Kind:  ErrorKindLowConfidence,
		Step:  step,
		Cause: fmt.Sprintf("confidence %.2f below threshold %.2f", score, GateContinue),
	}
}

// NewCheckpointCorruption reports a completed checkpoint whose backing result
// is missing or undecodable.
func NewCheckpointCorruption(step Step, detail string) *PipelineError {
	return &PipelineError{Kind: ErrorKindCheckpointCorruption, Step: step, Cause: detail}
}

// NewTransientInvocationError wraps a recoverable collaborator failure.
func NewTransientInvocationError(err error) *PipelineError {
	return &PipelineError{Kind: ErrorKindTransient, Cause: err.Error(), Wrapped: err}
}

// NewFatalInvocationError wraps an unrecoverable collaborator failure such as
// a malformed request or an auth error.
func NewFatalInvocationError(err error) *PipelineError {
	return &PipelineError{Kind: ErrorKindFatal, Cause: err.Error(), Wrapped: err}
}

// NewFatalError wraps any terminal failure for a step.
func NewFatalError(step Step, err error) *PipelineError {
	return &PipelineError{Kind: ErrorKindFatal, Step: step, Cause: err.Error(), Wrapped: err}
}

// ClassifyError converts an arbitrary collaborator error into a
// PipelineError attributed to step. Already-classified errors pass through
// with the step filled in. Context deadline errors become timeouts and
// cancellation becomes fatal. Unknown errors default to transient so the
// retry budget gets a chance at them; errors known to be unrecoverable must
// be constructed with NewFatalInvocationError.
func ClassifyError(step Step, err error) *PipelineError {
	var perr *PipelineError
	if errors.As(err, &perr) {
		if perr.Step == "" {
			perr.Step = step
		}
		return perr
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return &PipelineError{Kind: ErrorKindTimeout, Step: step, Cause: err.Error(), Wrapped: err}
	}
	if errors.Is(err, context.Canceled) {
		return &PipelineError{Kind: ErrorKindFatal, Step: step, Cause: err.Error(), Wrapped: err}
	}
	return &PipelineError{Kind: ErrorKindTransient, Step: step, Cause: err.Error(), Wrapped: err}
}

// KindOf returns the classification of err, or ErrorKindFatal for
// unclassified errors.
func KindOf(err error) ErrorKind {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ErrorKindFatal
}
