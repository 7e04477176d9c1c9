package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	backend "github.com/redis/go-redis/v9"

	"github.com/clearcontract-ai/pipeline"
)

// Notifier publishes progress updates to a Redis channel. Delivery is best
// effort: publish failures are logged and never interrupt the run.
type Notifier struct {
	client  *backend.Client
	channel string
	logger  *slog.Logger
}

// NewNotifier publishes to the given channel. A nil logger defaults to
// slog.Default.
func NewNotifier(client *backend.Client, channel string, logger *slog.Logger) *Notifier {
	if channel == "" {
		channel = "contractpipe:progress"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, channel: channel, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, update pipeline.ProgressUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		n.logger.Warn("progress update not serializable", "error", err)
		return
	}
	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		n.logger.Warn("progress publish failed",
			"run_id", update.RunID,
			"error", err)
	}
}
