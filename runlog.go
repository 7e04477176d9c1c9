package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// RunLogEntry records one node execution for a run's audit trail.
type RunLogEntry struct {
	RunID      string  `json:"run_id"`
	Step       Step    `json:"step"`
	Outcome    Outcome `json:"outcome"`
	Attempt    int     `json:"attempt"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
	StartTime  time.Time `json:"start_time"`
	Duration   float64 `json:"duration"`
}

// RunLogger records node executions.
type RunLogger interface {

	// LogExecution logs one completed node execution.
	LogExecution(ctx context.Context, entry *RunLogEntry) error

	// GetRunHistory retrieves the execution log for a run.
	GetRunHistory(ctx context.Context, runID string) ([]*RunLogEntry, error)
}

// FileRunLogger writes one newline-delimited JSON file per run.
type FileRunLogger struct {
	fs        afero.Fs
	directory string
}

func NewFileRunLogger(directory string) *FileRunLogger {
	return &FileRunLogger{fs: afero.NewOsFs(), directory: directory}
}

func NewFileRunLoggerFs(fs afero.Fs, directory string) *FileRunLogger {
	return &FileRunLogger{fs: fs, directory: directory}
}

func (l *FileRunLogger) runLogPath(runID string) string {
	return filepath.Join(l.directory, fmt.Sprintf("%s.jsonl", runID))
}

func (l *FileRunLogger) LogExecution(ctx context.Context, entry *RunLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	filePath := l.runLogPath(entry.RunID)
	if err := l.fs.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return err
	}
	f, err := l.fs.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func (l *FileRunLogger) GetRunHistory(ctx context.Context, runID string) ([]*RunLogEntry, error) {
	data, err := afero.ReadFile(l.fs, l.runLogPath(runID))
	if err != nil {
		return nil, err
	}
	var entries []*RunLogEntry
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var entry RunLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// NullRunLogger discards entries.
type NullRunLogger struct{}

func NewNullRunLogger() *NullRunLogger {
	return &NullRunLogger{}
}

func (l *NullRunLogger) LogExecution(ctx context.Context, entry *RunLogEntry) error {
	return nil
}

func (l *NullRunLogger) GetRunHistory(ctx context.Context, runID string) ([]*RunLogEntry, error) {
	return nil, nil
}
