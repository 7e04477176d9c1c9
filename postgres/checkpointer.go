// Package postgres provides a PostgreSQL-backed checkpoint store for the
// contract analysis pipeline.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/clearcontract-ai/pipeline"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pipeline_checkpoints (
	run_id        TEXT PRIMARY KEY,
	version       INTEGER NOT NULL,
	status        TEXT NOT NULL,
	jurisdiction  TEXT NOT NULL DEFAULT '',
	contract_type TEXT NOT NULL DEFAULT '',
	current_step  TEXT NOT NULL DEFAULT '',
	progress      INTEGER NOT NULL DEFAULT 0,
	start_time    TIMESTAMPTZ,
	checkpoint_at TIMESTAMPTZ NOT NULL,
	payload       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS pipeline_checkpoints_checkpoint_at_idx
	ON pipeline_checkpoints (checkpoint_at DESC);
`

// Checkpointer implements pipeline.Checkpointer on PostgreSQL. One row per
// run holds the latest checkpoint; the stored version makes saves
// idempotent, an upsert only applies when the incoming version is newer.
type Checkpointer struct {
	db *sql.DB
}

// New opens a connection pool for the given DSN and ensures the schema
// exists.
func New(ctx context.Context, dsn string) (*Checkpointer, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	c := &Checkpointer{db: db}
	if err := c.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewFromDB wraps an existing pool. The caller keeps ownership of the pool
// and should call EnsureSchema before first use.
func NewFromDB(db *sql.DB) *Checkpointer {
	return &Checkpointer{db: db}
}

// EnsureSchema creates the checkpoint table if it does not exist.
func (c *Checkpointer) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create checkpoint schema: %w", err)
	}
	return nil
}

// Save upserts the checkpoint. Saving a version at or below the stored one
// is a no-op.
func (c *Checkpointer) Save(ctx context.Context, checkpoint *pipeline.Checkpoint) error {
	payload, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	const query = `
		INSERT INTO pipeline_checkpoints
			(run_id, version, status, jurisdiction, contract_type, current_step,
			 progress, start_time, checkpoint_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id) DO UPDATE SET
			version       = EXCLUDED.version,
			status        = EXCLUDED.status,
			jurisdiction  = EXCLUDED.jurisdiction,
			contract_type = EXCLUDED.contract_type,
			current_step  = EXCLUDED.current_step,
			progress      = EXCLUDED.progress,
			start_time    = EXCLUDED.start_time,
			checkpoint_at = EXCLUDED.checkpoint_at,
			payload       = EXCLUDED.payload
		WHERE pipeline_checkpoints.version < EXCLUDED.version`

	_, err = c.db.ExecContext(ctx, query,
		checkpoint.RunID,
		checkpoint.Version,
		checkpoint.Status,
		checkpoint.Jurisdiction,
		checkpoint.ContractType,
		checkpoint.CurrentStep,
		checkpoint.Progress,
		checkpoint.StartTime,
		checkpoint.CheckpointAt,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadLatest returns the stored checkpoint for a run.
func (c *Checkpointer) LoadLatest(ctx context.Context, runID string) (*pipeline.Checkpoint, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM pipeline_checkpoints WHERE run_id = $1`, runID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, pipeline.ErrNoCheckpoint
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var checkpoint pipeline.Checkpoint
	if err := json.Unmarshal(payload, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

// Delete removes a run's checkpoint.
func (c *Checkpointer) Delete(ctx context.Context, runID string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM pipeline_checkpoints WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// ListRuns returns run summaries, newest checkpoint first.
func (c *Checkpointer) ListRuns(ctx context.Context) ([]pipeline.RunSummary, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT payload FROM pipeline_checkpoints ORDER BY checkpoint_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var summaries []pipeline.RunSummary
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var checkpoint pipeline.Checkpoint
		if err := json.Unmarshal(payload, &checkpoint); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
		}
		summaries = append(summaries, checkpoint.Summary())
	}
	return summaries, rows.Err()
}

// Close closes the underlying pool.
func (c *Checkpointer) Close() error {
	return c.db.Close()
}
