package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/metrics"
)

// AttendancePruner periodically deletes attendance rows older than a
// configurable retention period.
//
// A retention of 0 disables pruning entirely.
type AttendancePruner struct {
	store     store.AttendanceStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// PrunerConfig holds the parameters for NewAttendancePruner.
type PrunerConfig struct {
	// RetentionDays is how many days of attendance history to keep.
	// 0 means keep everything (pruner will not start).
	RetentionDays int

	// Interval is how often the pruner runs.  Defaults to 6h.
	Interval time.Duration

	Now func() time.Time
}

// NewAttendancePruner creates a pruner but does not start it.
func NewAttendancePruner(s store.AttendanceStore, cfg PrunerConfig, logger *slog.Logger, m *metrics.Metrics) *AttendancePruner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &AttendancePruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		metrics:   m,
		now:       now,
		done:      make(chan struct{}),
	}
}

// Start runs an immediate prune and then repeats on the configured
// interval until ctx is cancelled or Stop is called.
func (p *AttendancePruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Info("attendance pruner disabled", "retention_days", 0)
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.Info("attendance pruner started",
		"retention_days", int(p.retention.Hours()/24),
		"interval", p.interval.String(),
	)
}

// Stop signals the pruner to exit and waits for it to finish.
func (p *AttendancePruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

// Done is closed once the pruner has exited.
func (p *AttendancePruner) Done() <-chan struct{} { return p.done }

func (p *AttendancePruner) loop(ctx context.Context) {
	defer close(p.done)

	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *AttendancePruner) prune(ctx context.Context) {
	cutoff := p.now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneAttendanceOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("attendance prune failed", "error", err)
		return
	}
	if deleted > 0 {
		p.metrics.AttendancePruned.Add(float64(deleted))
		p.logger.Info("attendance pruned",
			"deleted", deleted,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
}
