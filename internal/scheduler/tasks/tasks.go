// Package tasks registers the reelrank jobs with the scheduler.
package tasks

import (
	"context"
	"time"

	"github.com/reelrank/reelrank/internal/history"
	"github.com/reelrank/reelrank/internal/recommend"
	"github.com/reelrank/reelrank/internal/scheduler"
)

const (
	RecommendTaskID      = "recommend"
	HistoryCleanupTaskID = "history-cleanup"
)

// RegisterRecommendTask schedules a full recommendation run.
func RegisterRecommendTask(sched *scheduler.Scheduler, svc *recommend.Service, cron string, runOnStart bool) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          RecommendTaskID,
		Name:        "Recommend",
		Description: "Ranks the current candidate batch and writes the output file",
		Cron:        cron,
		RunOnStart:  runOnStart,
		Func: func(ctx context.Context) error {
			_, err := svc.RunOnce(ctx)
			return err
		},
	})
}

// RegisterHistoryCleanupTask schedules a daily purge of shown items older
// than retentionDays.
func RegisterHistoryCleanupTask(sched *scheduler.Scheduler, svc *history.Service, retentionDays int) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HistoryCleanupTaskID,
		Name:        "History Cleanup",
		Description: "Deletes shown-item history older than the retention period",
		Cron:        "0 2 * * *",
		Func: func(ctx context.Context) error {
			cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
			_, err := svc.Cleanup(ctx, cutoff)
			return err
		},
	})
}
