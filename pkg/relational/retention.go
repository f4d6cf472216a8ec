package relational

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// retentionInterval is how often the purge loop wakes up.
const retentionInterval = time.Hour

// PurgeRawPayloads nulls the raw payload on sources last touched before
// the cutoff. The parsed chunks and entities are untouched; only the
// original blob is dropped. Returns the number of rows purged.
func (c *Client) PurgeRawPayloads(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	tag, err := c.pool.Exec(ctx,
		`UPDATE sources SET raw_payload = NULL
		 WHERE raw_payload IS NOT NULL AND last_seen < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging raw payloads: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Retention periodically enforces the raw-payload retention window.
// Idempotent and safe to run alongside the ingestion writer.
type Retention struct {
	client        *Client
	retentionDays int
	logger        *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRetention creates the retention service. A retentionDays of 0
// disables purging; Start becomes a no-op.
func NewRetention(client *Client, retentionDays int) *Retention {
	return &Retention{
		client:        client,
		retentionDays: retentionDays,
		logger:        slog.Default().With("component", "retention"),
	}
}

// Start launches the background purge loop.
func (r *Retention) Start(ctx context.Context) {
	if r.retentionDays <= 0 || r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go r.run(ctx)

	r.logger.Info("Retention service started",
		"raw_retention_days", r.retentionDays,
		"interval", retentionInterval)
}

// Stop signals the purge loop to exit and waits for it to finish.
func (r *Retention) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.logger.Info("Retention service stopped")
}

func (r *Retention) run(ctx context.Context) {
	defer close(r.done)

	r.purge(ctx)

	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.purge(ctx)
		}
	}
}

func (r *Retention) purge(ctx context.Context) {
	olderThan := time.Duration(r.retentionDays) * 24 * time.Hour
	count, err := r.client.PurgeRawPayloads(ctx, olderThan)
	if err != nil {
		r.logger.Error("Retention: raw payload purge failed", "error", err)
		return
	}
	if count > 0 {
		r.logger.Info("Retention: purged raw payloads", "count", count)
	}
}
