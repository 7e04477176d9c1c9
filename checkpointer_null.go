package pipeline

import "context"

// NullCheckpointer is a no-op implementation. Runs executed against it
// cannot be resumed.
type NullCheckpointer struct{}

func NewNullCheckpointer() *NullCheckpointer {
	return &NullCheckpointer{}
}

func (c *NullCheckpointer) Save(ctx context.Context, checkpoint *Checkpoint) error {
	return nil
}

func (c *NullCheckpointer) LoadLatest(ctx context.Context, runID string) (*Checkpoint, error) {
	return nil, ErrNoCheckpoint
}

func (c *NullCheckpointer) Delete(ctx context.Context, runID string) error {
	return nil
}
