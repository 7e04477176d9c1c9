package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// ProgressUpdate is one step-transition notification pushed to a consumer
// such as a UI. Delivery is one-way and best-effort: a sink failure must
// never fail the run, so Notify returns nothing and implementations swallow
// and log their own errors.
type ProgressUpdate struct {
	RunID       string    `json:"run_id"`
	Step        Step      `json:"current_step"`
	Progress    int       `json:"progress_percent"`
	Description string    `json:"step_description"`
	Status      RunStatus `json:"status"`
	At          time.Time `json:"at"`
}

// ProgressNotifier receives progress updates. The pipeline emits at least
// one update per step transition plus one for the terminal status.
type ProgressNotifier interface {
	Notify(ctx context.Context, update ProgressUpdate)
}

// NotifierFunc adapts a plain function to the ProgressNotifier interface.
type NotifierFunc func(ctx context.Context, update ProgressUpdate)

func (f NotifierFunc) Notify(ctx context.Context, update ProgressUpdate) {
	f(ctx, update)
}

// NullNotifier discards updates.
type NullNotifier struct{}

func NewNullNotifier() *NullNotifier {
	return &NullNotifier{}
}

func (n *NullNotifier) Notify(ctx context.Context, update ProgressUpdate) {}

// LogNotifier writes updates to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, update ProgressUpdate) {
	n.logger.InfoContext(ctx, "progress",
		"run_id", update.RunID,
		"step", update.Step,
		"progress_percent", update.Progress,
		"status", update.Status,
		"description", update.Description)
}
