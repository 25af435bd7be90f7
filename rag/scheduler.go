package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// SyncFunc runs one sync pass, typically Engine.Sync bound to a Loader.
type SyncFunc func(ctx context.Context) (SyncStats, error)

// Scheduler runs a SyncFunc on a cron expression, matching
// config.RAGConfig.Schedule.
type Scheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewScheduler creates a Scheduler that invokes fn on the given cron
// expression (standard five-field syntax). The schedule does not start
// running until Start is called.
func NewScheduler(schedule string, fn SyncFunc) (*Scheduler, error) {
	c := cron.New()
	id, err := c.AddFunc(schedule, func() {
		ctx := context.Background()
		stats, err := fn(ctx)
		if err != nil {
			slog.Error("scheduled rag sync failed", "error", err)
			return
		}
		slog.Info("scheduled rag sync complete",
			"added", stats.Added, "updated", stats.Updated,
			"deleted", stats.Deleted, "unchanged", stats.Unchanged,
			"failed", stats.Failed, "duration", stats.Duration)
	})
	if err != nil {
		return nil, fmt.Errorf("rag: invalid sync schedule %q: %w", schedule, err)
	}
	return &Scheduler{cron: c, entryID: id}, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
