package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultMaxRetries is the per-step retry budget.
	DefaultMaxRetries = 2

	// DefaultStepTimeout bounds one node invocation's wall-clock time.
	DefaultStepTimeout = 2 * time.Minute
)

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Nodes        []Node
	Checkpointer Checkpointer
	Notifier     ProgressNotifier
	RunLogger    RunLogger
	Logger       *slog.Logger
	Metrics      *Metrics
	StepTimeout  time.Duration
	MaxRetries   int
}

// Orchestrator executes the ordered step graph against one WorkflowState at
// a time. It owns the single state write path: nodes hand results back and
// the orchestrator merges them, writes the checkpoint, and advances. Distinct
// runs are independent; one orchestrator may drive many runs concurrently,
// but no two steps of the same run ever execute at once.
type Orchestrator struct {
	nodes        map[Step]Node
	checkpointer Checkpointer
	notifier     ProgressNotifier
	runLogger    RunLogger
	logger       *slog.Logger
	metrics      *Metrics
	scorer       ConfidenceScorer
	stepTimeout  time.Duration
	maxRetries   int
}

// NewOrchestrator creates an orchestrator over the given nodes.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if len(opts.Nodes) == 0 {
		return nil, fmt.Errorf("nodes are required")
	}
	if opts.Checkpointer == nil {
		opts.Checkpointer = NewNullCheckpointer()
	}
	if opts.Notifier == nil {
		opts.Notifier = NewNullNotifier()
	}
	if opts.RunLogger == nil {
		opts.RunLogger = NewNullRunLogger()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}

	nodes := make(map[Step]Node, len(opts.Nodes))
	for _, node := range opts.Nodes {
		step := node.Step()
		if !step.Valid() {
			return nil, fmt.Errorf("node registered for unknown step %q", step)
		}
		if _, exists := nodes[step]; exists {
			return nil, fmt.Errorf("duplicate node for step %q", step)
		}
		nodes[step] = node
	}

	return &Orchestrator{
		nodes:        nodes,
		checkpointer: opts.Checkpointer,
		notifier:     opts.Notifier,
		runLogger:    opts.RunLogger,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		stepTimeout:  opts.StepTimeout,
		maxRetries:   opts.MaxRetries,
	}, nil
}

// Run executes a fresh run to completion, returning the final state. The
// returned error is the fatal PipelineError when the run halted; partial
// results already computed remain retrievable from the state either way.
func (o *Orchestrator) Run(ctx context.Context, state *WorkflowState) (*WorkflowState, error) {
	return o.runFrom(ctx, state, 0)
}

// Resume continues an interrupted run from its last proven checkpoint.
func (o *Orchestrator) Resume(ctx context.Context, runID string) (*WorkflowState, error) {
	coordinator := NewResumeCoordinator(o.checkpointer, o.logger)
	state, next, err := coordinator.Resume(ctx, runID)
	if err != nil {
		return nil, err
	}
	if next == "" {
		o.logger.Info("run already completed, nothing to resume", "run_id", runID)
		return state, nil
	}
	order := state.Order()
	return o.runFrom(ctx, state, stepIndex(order, next))
}

func (o *Orchestrator) runFrom(ctx context.Context, state *WorkflowState, startIdx int) (*WorkflowState, error) {
	order := state.Order()
	if startIdx < 0 || startIdx >= len(order) {
		return state, fmt.Errorf("invalid start step index %d", startIdx)
	}
	for _, step := range order {
		if _, ok := o.nodes[step]; !ok {
			return state, fmt.Errorf("no node registered for step %q", step)
		}
	}

	logger := o.logger.With("run_id", state.RunID())
	o.metrics.runStarted()
	state.markRunning(order[startIdx])
	logger.Info("run started", "start_step", order[startIdx], "steps", len(order)-startIdx)

	for i := startIdx; i < len(order); i++ {
		// Cancellation is honored at step boundaries only; an executing
		// node is never abandoned by the cancel flag.
		if state.CancelRequested() || ctx.Err() != nil {
			return o.finishRun(ctx, state, RunStatusCancelled, logger)
		}
		step := order[i]
		state.setCurrentStep(step)
		if err := o.executeStep(ctx, state, o.nodes[step], logger); err != nil {
			status := RunStatusFailed
			if ctx.Err() != nil || state.CancelRequested() {
				status = RunStatusCancelled
			}
			o.finishRun(ctx, state, status, logger)
			return state, err
		}
	}
	return o.finishRun(ctx, state, RunStatusCompleted, logger)
}

// executeStep drives one step through its retry loop. A nil return means the
// step completed and its checkpoint is durable; any error is terminal for
// the run.
func (o *Orchestrator) executeStep(ctx context.Context, state *WorkflowState, node Node, logger *slog.Logger) error {
	step := node.Step()
	for {
		start := time.Now()
		result := o.invokeNode(ctx, node, state)
		duration := time.Since(start)
		o.metrics.observeStep(step, duration)
		o.logExecution(ctx, state, step, result, start, duration)

		// Confidence gate: a scored success may still be routed to retry or
		// halt. An exhausted low-confidence retry proceeds with a warning.
		if result.Outcome == OutcomeSuccess && result.Scored {
			switch GateOutcome(result.Confidence) {
			case OutcomeSuccess:
			case OutcomeRetryable:
				if state.RetryCount(step) < o.maxRetries {
					result = Retryable(NewLowConfidenceError(step, result.Confidence))
				} else {
					warning := fmt.Sprintf("%s: proceeding with confidence %.2f after %d retries",
						step, result.Confidence, o.maxRetries)
					state.AppendWarning(warning)
					logger.Warn("confidence gate exhausted, proceeding",
						"step", step, "confidence", result.Confidence)
				}
			case OutcomeFatal:
				result = Fatal(NewLowConfidenceError(step, result.Confidence))
			}
		}

		switch result.Outcome {
		case OutcomeSuccess:
			if err := state.Complete(step, result.Output, result.Confidence, result.Scored); err != nil {
				return NewFatalError(step, err)
			}
			state.RecomputeOverall(o.scorer)
			// The checkpoint is a side effect of success handling only,
			// never of entering a step, and must be durable before the
			// next step begins.
			if err := o.persistCheckpoint(ctx, state); err != nil {
				return NewFatalError(step, fmt.Errorf("checkpoint write failed: %w", err))
			}
			o.notifyProgress(ctx, state, step)
			logger.Info("step completed",
				"step", step,
				"progress_percent", state.Progress(),
				"confidence", result.Confidence,
				"duration", duration)
			return nil

		case OutcomeRetryable:
			state.AppendError(step, result.Err.Kind, result.Err.Cause)
			if state.RetryCount(step) < o.maxRetries {
				attempt := state.IncrementRetry(step)
				o.metrics.stepRetried(step)
				logger.Warn("retrying step",
					"step", step,
					"attempt", attempt,
					"max_retries", o.maxRetries,
					"reason", result.Err.Cause)
				continue
			}
			fatalErr := &PipelineError{
				Kind:    ErrorKindFatal,
				Step:    step,
				Cause:   fmt.Sprintf("retries exhausted after %d attempts: %s", o.maxRetries, result.Err.Cause),
				Wrapped: result.Err,
			}
			state.AppendError(step, fatalErr.Kind, fatalErr.Cause)
			return fatalErr

		case OutcomeFatal:
			state.AppendError(step, result.Err.Kind, result.Err.Cause)
			return result.Err

		default:
			return NewFatalError(step, fmt.Errorf("node returned unknown outcome %q", result.Outcome))
		}
	}
}

// invokeNode runs a node under the step's wall-clock budget. Nodes never
// write to state, so a node that overruns its budget can be abandoned safely;
// it observes its context cancellation and unwinds on its own.
func (o *Orchestrator) invokeNode(ctx context.Context, node Node, state *WorkflowState) NodeResult {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	done := make(chan NodeResult, 1)
	go func() {
		done <- node.Execute(stepCtx, state)
	}()
	select {
	case result := <-done:
		return result
	case <-stepCtx.Done():
		if ctx.Err() != nil {
			return Fatal(ClassifyError(node.Step(), ctx.Err()))
		}
		return Retryable(&PipelineError{
			Kind:  ErrorKindTimeout,
			Step:  node.Step(),
			Cause: fmt.Sprintf("exceeded step budget of %s", o.stepTimeout),
		})
	}
}

func (o *Orchestrator) persistCheckpoint(ctx context.Context, state *WorkflowState) error {
	state.bumpCheckpointVersion()
	checkpoint, err := state.ToCheckpoint()
	if err != nil {
		return err
	}
	return o.checkpointer.Save(ctx, checkpoint)
}

func (o *Orchestrator) finishRun(ctx context.Context, state *WorkflowState, status RunStatus, logger *slog.Logger) (*WorkflowState, error) {
	state.finish(status)
	o.metrics.runFinished(status)

	// Terminal persistence still applies when ctx is already cancelled.
	persistCtx := context.WithoutCancel(ctx)
	if err := o.persistCheckpoint(persistCtx, state); err != nil {
		logger.Error("failed to persist terminal checkpoint", "error", err)
	}
	o.notifyProgress(persistCtx, state, state.CurrentStep())

	switch status {
	case RunStatusCompleted:
		logger.Info("run completed",
			"progress_percent", state.Progress(),
			"overall_confidence", state.OverallConfidence())
	case RunStatusCancelled:
		logger.Info("run cancelled", "step", state.CurrentStep())
	default:
		logger.Error("run failed",
			"step", state.CurrentStep(),
			"progress_percent", state.Progress(),
			"errors", len(state.Errors()))
	}
	return state, nil
}

func (o *Orchestrator) notifyProgress(ctx context.Context, state *WorkflowState, step Step) {
	o.notifier.Notify(ctx, ProgressUpdate{
		RunID:       state.RunID(),
		Step:        step,
		Progress:    state.Progress(),
		Description: step.Description(),
		Status:      state.Status(),
		At:          time.Now(),
	})
}

func (o *Orchestrator) logExecution(ctx context.Context, state *WorkflowState, step Step, result NodeResult, start time.Time, duration time.Duration) {
	entry := &RunLogEntry{
		RunID:     state.RunID(),
		Step:      step,
		Outcome:   result.Outcome,
		Attempt:   state.RetryCount(step) + 1,
		StartTime: start,
		Duration:  duration.Seconds(),
	}
	if result.Scored {
		entry.Confidence = result.Confidence
	}
	if result.Err != nil {
		entry.Error = result.Err.Error()
	}
	if err := o.runLogger.LogExecution(ctx, entry); err != nil {
		o.logger.Warn("failed to write run log entry", "run_id", state.RunID(), "error", err)
	}
}
