// Package cleanup enforces data retention on the proxy request log.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

const defaultInterval = time.Hour

// Pruner is the store operation retention needs.
type Pruner interface {
	PruneRequestLog(ctx context.Context, olderThan time.Time) (int64, error)
}

// Options tune the retention loop. RetentionDays of zero (or less)
// disables pruning entirely; Interval defaults to an hour.
type Options struct {
	RetentionDays int
	Interval      time.Duration
}

// Service periodically deletes request-log rows older than the retention
// window. Deletion is idempotent and safe to run from multiple replicas.
type Service struct {
	store Pruner
	opts  Options
	now   func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates the retention service.
func NewService(store Pruner, opts Options) *Service {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	return &Service{store: store, opts: opts, now: time.Now}
}

// Start launches the background retention loop. With retention disabled
// Start is a no-op.
func (s *Service) Start(ctx context.Context) {
	if s.opts.RetentionDays <= 0 {
		slog.Info("Request log retention disabled")
		return
	}
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Request log retention started",
		"retention_days", s.opts.RetentionDays,
		"interval", s.opts.Interval)
}

// Stop signals the retention loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Request log retention stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.prune(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prune(ctx)
		}
	}
}

func (s *Service) prune(ctx context.Context) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.opts.RetentionDays)
	count, err := s.store.PruneRequestLog(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: request log prune failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned request log rows",
			"count", count,
			"older_than", cutoff)
	}
}
