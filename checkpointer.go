package pipeline

import (
	"context"
	"errors"
)

// ErrNoCheckpoint is returned when no checkpoint exists for a run.
var ErrNoCheckpoint = errors.New("no checkpoint found")

// Checkpointer persists run checkpoints. Writes are keyed by run ID so
// concurrent runs never contend on the same record. Save must be idempotent:
// persisting the same version twice is a no-op, not an error.
type Checkpointer interface {

	// Save durably records the checkpoint.
	Save(ctx context.Context, checkpoint *Checkpoint) error

	// LoadLatest returns the most recent checkpoint for a run, or
	// ErrNoCheckpoint.
	LoadLatest(ctx context.Context, runID string) (*Checkpoint, error)

	// Delete removes all checkpoint data for a run.
	Delete(ctx context.Context, runID string) error
}

// RunLister is implemented by checkpoint stores that can enumerate runs.
type RunLister interface {
	ListRuns(ctx context.Context) ([]RunSummary, error)
}
