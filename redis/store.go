// Package redis provides a Redis-backed checkpoint store and a pub/sub
// progress notifier for the contract analysis pipeline.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/clearcontract-ai/pipeline"
)

// Store implements pipeline.Checkpointer on Redis. Each run holds one latest
// checkpoint plus a small version set used for idempotency; run IDs are
// indexed in a ZSET scored by checkpoint time so listings come back newest
// first.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for checkpoint records. Zero means no
// expiration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for checkpoint records.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "contractpipe:run:",
		ttl:    0,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(runID string) string {
	return s.prefix + runID
}

func (s *Store) versionsKey(runID string) string {
	return s.prefix + runID + ":versions"
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the checkpoint. Re-saving an already recorded version is a
// no-op so an interrupted write can be retried safely.
func (s *Store) Save(ctx context.Context, checkpoint *pipeline.Checkpoint) error {
	seen, err := s.client.SIsMember(ctx, s.versionsKey(checkpoint.RunID), checkpoint.Version).Result()
	if err != nil {
		return fmt.Errorf("failed to check checkpoint version: %w", err)
	}
	if seen {
		return nil
	}

	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(checkpoint.RunID), data, s.ttl)
	pipe.SAdd(ctx, s.versionsKey(checkpoint.RunID), checkpoint.Version)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.versionsKey(checkpoint.RunID), s.ttl)
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(checkpoint.CheckpointAt.Unix()),
		Member: checkpoint.RunID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}
	return nil
}

// LoadLatest returns the most recent checkpoint for a run.
func (s *Store) LoadLatest(ctx context.Context, runID string) (*pipeline.Checkpoint, error) {
	val, err := s.client.Get(ctx, s.key(runID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, pipeline.ErrNoCheckpoint
		}
		return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}

	var checkpoint pipeline.Checkpoint
	if err := json.Unmarshal([]byte(val), &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

// Delete removes all checkpoint data for a run.
func (s *Store) Delete(ctx context.Context, runID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(runID))
	pipe.Del(ctx, s.versionsKey(runID))
	pipe.ZRem(ctx, s.indexKey(), runID)
	_, err := pipe.Exec(ctx)
	return err
}

// ListRuns returns run summaries, newest checkpoint first. Index entries
// whose checkpoint has expired are pruned as they are encountered.
func (s *Store) ListRuns(ctx context.Context) ([]pipeline.RunSummary, error) {
	runIDs, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	summaries := make([]pipeline.RunSummary, 0, len(runIDs))
	for _, runID := range runIDs {
		checkpoint, err := s.LoadLatest(ctx, runID)
		if err == pipeline.ErrNoCheckpoint {
			s.client.ZRem(ctx, s.indexKey(), runID)
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, checkpoint.Summary())
	}
	return summaries, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
