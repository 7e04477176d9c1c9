package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// ResumeCoordinator reconstructs an interrupted run from its persisted
// checkpoint and decides where execution continues. It never trusts a
// checkpoint's completion claim blindly: every step it intends to skip must
// have a present, non-empty, decodable result, covering the full step order
// including the optional quality validation step. A "completed" marker whose
// backing result is missing forces re-execution of that step and everything
// after it.
type ResumeCoordinator struct {
	checkpointer Checkpointer
	logger       *slog.Logger
}

// NewResumeCoordinator creates a coordinator over the given checkpoint store.
func NewResumeCoordinator(checkpointer Checkpointer, logger *slog.Logger) *ResumeCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResumeCoordinator{checkpointer: checkpointer, logger: logger}
}

// Resume loads the latest checkpoint for runID, rebuilds the WorkflowState,
// and returns it together with the next step to execute. An empty next step
// means the run already completed. Corrupted per-step results are recorded
// on the state as checkpoint_corruption errors and their steps re-run; this
// is an internal recovery path, not a user-facing failure.
func (rc *ResumeCoordinator) Resume(ctx context.Context, runID string) (*WorkflowState, Step, error) {
	checkpoint, err := rc.checkpointer.LoadLatest(ctx, runID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load checkpoint for %s: %w", runID, err)
	}

	var corrupted []Step
	state := stateFromCheckpoint(checkpoint, func(step Step, decodeErr error) {
		corrupted = append(corrupted, step)
		rc.logger.Warn("checkpointed result unusable, forcing re-execution",
			"run_id", runID,
			"step", step,
			"error", decodeErr)
	})
	for _, step := range corrupted {
		state.AppendError(step, ErrorKindCheckpointCorruption,
			"checkpoint claimed completion but result was unusable, step will re-run")
	}

	next := rc.nextStep(state)
	if next == "" && state.Status() == RunStatusCompleted {
		return state, "", nil
	}
	if next == "" {
		// Every step has a proven result but the run never reached a
		// terminal status; only the final bookkeeping remains. Re-running
		// the last step is the safe choice.
		order := state.Order()
		next = order[len(order)-1]
	}
	rc.logger.Info("resume plan",
		"run_id", runID,
		"checkpoint_version", state.CheckpointVersion(),
		"next_step", next,
		"corrupted_steps", len(corrupted))
	return state, next, nil
}

// nextStep returns the first step in the run's order whose result is not
// proven present. Steps before it are skip-eligible by construction: the
// scan itself is the validation that every skipped step's required state is
// actually there.
func (rc *ResumeCoordinator) nextStep(state *WorkflowState) Step {
	for _, step := range state.Order() {
		if !state.HasResult(step) {
			return step
		}
	}
	return ""
}
