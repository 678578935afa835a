package session

import (
	"context"
	"log/slog"
	"time"
)

// Janitor purges dead sessions on a fixed interval.
type Janitor struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger
}

// NewJanitor returns a Janitor; a nil logger falls back to slog.Default.
func NewJanitor(registry *Registry, interval time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{registry: registry, interval: interval, logger: logger}
}

// Run blocks, sweeping every interval, until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one purge and logs the outcome.
func (j *Janitor) Sweep(ctx context.Context) int64 {
	n, err := j.registry.Purge(ctx)
	if err != nil {
		j.logger.Error("session purge failed", "error", err)
		return 0
	}
	if n > 0 {
		j.logger.Info("purged sessions", "count", n)
	}
	return n
}
