package pipeline

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryCheckpointer is an in-process Checkpointer. Checkpoints are stored
// as their JSON encoding so loads exercise the same decode path as the
// durable stores.
type MemoryCheckpointer struct {
	mutex   sync.RWMutex
	records map[string][]byte
}

func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{records: map[string][]byte{}}
}

func (c *MemoryCheckpointer) Save(ctx context.Context, checkpoint *Checkpoint) error {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.records[checkpoint.RunID] = data
	return nil
}

func (c *MemoryCheckpointer) LoadLatest(ctx context.Context, runID string) (*Checkpoint, error) {
	c.mutex.RLock()
	data, ok := c.records[runID]
	c.mutex.RUnlock()
	if !ok {
		return nil, ErrNoCheckpoint
	}
	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, err
	}
	return &checkpoint, nil
}

func (c *MemoryCheckpointer) Delete(ctx context.Context, runID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.records, runID)
	return nil
}

func (c *MemoryCheckpointer) ListRuns(ctx context.Context) ([]RunSummary, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var summaries []RunSummary
	for _, data := range c.records {
		var checkpoint Checkpoint
		if err := json.Unmarshal(data, &checkpoint); err != nil {
			continue
		}
		summaries = append(summaries, checkpoint.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
	return summaries, nil
}
