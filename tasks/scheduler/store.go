package scheduler

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tradinglab/stockfetch/types"
)

// JobStore persists scheduler_jobs rows: each job's declaration and when it
// last ran.
type JobStore struct {
	db *gorm.DB
}

// NewJobStore builds a store bound to db.
func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

// Upsert writes (or replaces) a job's declaration.
func (s *JobStore) Upsert(ctx context.Context, job types.Job) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cron_expr", "executor", "run_on_start", "enabled", "next_run",
		}),
	}).Create(&job).Error
}

// RecordRun stamps last_run/next_run/last_error after a job tick completes.
func (s *JobStore) RecordRun(ctx context.Context, id string, lastRun, nextRun time.Time, runErr error) error {
	updates := map[string]any{
		"last_run": lastRun,
		"next_run": nextRun,
	}
	if runErr != nil {
		updates["last_error"] = runErr.Error()
	} else {
		updates["last_error"] = ""
	}
	return s.db.WithContext(ctx).Model(&types.Job{}).Where("id = ?", id).Updates(updates).Error
}

// All returns every persisted job. Scheduler does not call it: Start
// schedules only the jobs registered through AddJob in the current process.
func (s *JobStore) All(ctx context.Context) ([]types.Job, error) {
	var jobs []types.Job
	err := s.db.WithContext(ctx).Find(&jobs).Error
	return jobs, err
}
