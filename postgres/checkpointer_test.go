package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clearcontract-ai/pipeline"
	"github.com/clearcontract-ai/pipeline/postgres"
)

// Tests run only against a real database, pointed at by
// CONTRACTPIPE_POSTGRES_DSN.
func newTestCheckpointer(t *testing.T) *postgres.Checkpointer {
	t.Helper()
	dsn := os.Getenv("CONTRACTPIPE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CONTRACTPIPE_POSTGRES_DSN not set")
	}
	cp, err := postgres.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { cp.Close() })
	return cp
}

func TestPostgresCheckpointerRoundTrip(t *testing.T) {
	cp := newTestCheckpointer(t)
	ctx := context.Background()

	runID := pipeline.NewRunID()
	t.Cleanup(func() { cp.Delete(ctx, runID) })

	saved := &pipeline.Checkpoint{
		RunID:        runID,
		Status:       pipeline.RunStatusRunning,
		Version:      1,
		Jurisdiction: pipeline.JurisdictionNSW,
		ContractType: pipeline.ContractPurchaseAgreement,
		CurrentStep:  pipeline.StepProcessDocument,
		Progress:     20,
		CheckpointAt: time.Now().UTC(),
	}
	require.NoError(t, cp.Save(ctx, saved))

	loaded, err := cp.LoadLatest(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, saved.RunID, loaded.RunID)
	require.Equal(t, saved.CurrentStep, loaded.CurrentStep)
	require.Equal(t, saved.Progress, loaded.Progress)

	// Replaying an old version leaves the stored record alone.
	stale := *saved
	stale.Progress = 5
	require.NoError(t, cp.Save(ctx, &stale))

	loaded, err = cp.LoadLatest(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, 20, loaded.Progress)

	// A newer version replaces it.
	next := *saved
	next.Version = 2
	next.CurrentStep = pipeline.StepExtractTerms
	next.Progress = 35
	require.NoError(t, cp.Save(ctx, &next))

	loaded, err = cp.LoadLatest(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, 35, loaded.Progress)

	require.NoError(t, cp.Delete(ctx, runID))
	_, err = cp.LoadLatest(ctx, runID)
	require.ErrorIs(t, err, pipeline.ErrNoCheckpoint)
}
