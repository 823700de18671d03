// Package jobs runs background maintenance while the server is up.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/abhisek/adaptest/internal/store"
)

// Pruner trims old session snapshots on a schedule, keeping the newest
// Keep per storage key.
type Pruner struct {
	scheduler *gocron.Scheduler
	snapshots store.SnapshotRepo
	keep      int
	every     time.Duration
	log       *slog.Logger
}

// NewPruner creates a pruner. It does nothing until Start.
func NewPruner(snapshots store.SnapshotRepo, keep int, every time.Duration, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	if keep < 1 {
		keep = 1
	}
	return &Pruner{
		scheduler: gocron.NewScheduler(time.UTC),
		snapshots: snapshots,
		keep:      keep,
		every:     every,
		log:       logger,
	}
}

// Start schedules the prune job and runs it asynchronously.
func (p *Pruner) Start() error {
	p.scheduler.SingletonModeAll()
	if _, err := p.scheduler.Every(p.every).Do(p.run); err != nil {
		return fmt.Errorf("schedule prune job: %w", err)
	}
	p.scheduler.StartAsync()
	p.log.Info("snapshot pruner started", "every", p.every, "keep", p.keep)
	return nil
}

// Stop halts the scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

func (p *Pruner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := p.RunOnce(ctx); err != nil {
		p.log.Warn("prune snapshots failed", "error", err)
	}
}

// RunOnce prunes every storage key and returns how many snapshots were
// deleted. A failing key does not stop the others; the first error is
// returned.
func (p *Pruner) RunOnce(ctx context.Context) (int, error) {
	keys, err := p.snapshots.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list storage keys: %w", err)
	}
	var (
		total    int
		firstErr error
	)
	for _, key := range keys {
		n, err := p.snapshots.Prune(ctx, key, p.keep)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("prune %s: %w", key, err)
			}
			continue
		}
		total += n
	}
	if total > 0 {
		p.log.Info("pruned snapshots", "deleted", total, "keys", len(keys))
	}
	return total, firstErr
}
