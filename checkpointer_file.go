package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// FileCheckpointer persists checkpoints as JSON files, one directory per
// run. It writes each versioned checkpoint alongside a latest.json copy so
// loads never have to scan. The filesystem is abstracted behind afero so
// tests can run against an in-memory fs.
type FileCheckpointer struct {
	fs      afero.Fs
	dataDir string
}

// NewFileCheckpointer creates a checkpointer rooted at dataDir on the host
// filesystem. An empty dataDir defaults to ~/.contractpipe/runs.
func NewFileCheckpointer(dataDir string) (*FileCheckpointer, error) {
	return NewFileCheckpointerFs(afero.NewOsFs(), dataDir)
}

// NewFileCheckpointerFs creates a checkpointer on an explicit filesystem.
func NewFileCheckpointerFs(fs afero.Fs, dataDir string) (*FileCheckpointer, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".contractpipe", "runs")
	}
	if err := fs.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &FileCheckpointer{fs: fs, dataDir: dataDir}, nil
}

func (c *FileCheckpointer) runDir(runID string) string {
	return filepath.Join(c.dataDir, runID)
}

// Save writes the checkpoint and updates latest.json. Saving a version that
// is already on disk is a no-op.
func (c *FileCheckpointer) Save(ctx context.Context, checkpoint *Checkpoint) error {
	runDir := c.runDir(checkpoint.RunID)
	if err := c.fs.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	versionPath := filepath.Join(runDir, fmt.Sprintf("checkpoint-%06d.json", checkpoint.Version))
	if _, err := c.fs.Stat(versionPath); err == nil {
		return nil
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := afero.WriteFile(c.fs, versionPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	latestPath := filepath.Join(runDir, "latest.json")
	if err := afero.WriteFile(c.fs, latestPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write latest checkpoint: %w", err)
	}
	return nil
}

// LoadLatest reads latest.json for a run.
func (c *FileCheckpointer) LoadLatest(ctx context.Context, runID string) (*Checkpoint, error) {
	latestPath := filepath.Join(c.runDir(runID), "latest.json")
	exists, err := afero.Exists(c.fs, latestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat checkpoint file: %w", err)
	}
	if !exists {
		return nil, ErrNoCheckpoint
	}
	data, err := afero.ReadFile(c.fs, latestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

// Delete removes all checkpoint data for a run.
func (c *FileCheckpointer) Delete(ctx context.Context, runID string) error {
	if err := c.fs.RemoveAll(c.runDir(runID)); err != nil {
		return fmt.Errorf("failed to delete run directory: %w", err)
	}
	return nil
}

// ListRuns returns a summary for every run with a readable checkpoint,
// newest start first.
func (c *FileCheckpointer) ListRuns(ctx context.Context) ([]RunSummary, error) {
	entries, err := afero.ReadDir(c.fs, c.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunSummary{}, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}
	var summaries []RunSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		checkpoint, err := c.LoadLatest(ctx, entry.Name())
		if err != nil {
			// Skip runs we can't read
			continue
		}
		summaries = append(summaries, checkpoint.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
	return summaries, nil
}
