package pipeline

import (
	"context"
)

// Outcome is the three-way result classification the orchestrator routes on.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRetryable Outcome = "retryable"
	OutcomeFatal     Outcome = "fatal"
)

// NodeResult is the only value a node may hand back to the orchestrator.
// Nodes classify their own failures; raw collaborator errors never cross
// this boundary.
type NodeResult struct {
	Outcome    Outcome
	Output     StepResult
	Confidence float64
	Scored     bool
	Err        *PipelineError
}

// Success returns a successful result carrying the step's output. The output
// must be a typed, non-nil container even when the step found nothing.
func Success(output StepResult) NodeResult {
	return NodeResult{Outcome: OutcomeSuccess, Output: output}
}

// SuccessWithConfidence returns a successful result with a quality score in
// [0,1] that the confidence gate will evaluate.
func SuccessWithConfidence(output StepResult, confidence float64) NodeResult {
	return NodeResult{Outcome: OutcomeSuccess, Output: output, Confidence: confidence, Scored: true}
}

// Retryable returns a result that consumes one unit of the step's retry
// budget.
func Retryable(err *PipelineError) NodeResult {
	return NodeResult{Outcome: OutcomeRetryable, Err: err}
}

// Fatal returns a result that halts the run.
func Fatal(err *PipelineError) NodeResult {
	return NodeResult{Outcome: OutcomeFatal, Err: err}
}

// Node is one unit of work in the pipeline. Execute reads prior step results
// from state and returns its own output inside a NodeResult; it never writes
// to state directly. The orchestrator owns the single state write path.
type Node interface {

	// Step returns the pipeline step this node implements.
	Step() Step

	// Execute runs the node against the current state. Implementations must
	// honor ctx cancellation at collaborator call boundaries.
	Execute(ctx context.Context, state *WorkflowState) NodeResult
}

// NodeFunc adapts a plain function into a Node. Useful in tests and for
// small auxiliary steps.
type NodeFunc struct {
	step Step
	fn   func(ctx context.Context, state *WorkflowState) NodeResult
}

// NewNodeFunc creates a NodeFunc for the given step.
func NewNodeFunc(step Step, fn func(ctx context.Context, state *WorkflowState) NodeResult) *NodeFunc {
	return &NodeFunc{step: step, fn: fn}
}

func (n *NodeFunc) Step() Step {
	return n.step
}

func (n *NodeFunc) Execute(ctx context.Context, state *WorkflowState) NodeResult {
	return n.fn(ctx, state)
}
