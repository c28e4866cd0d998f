package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/talentscore/internal/domain"
	"gorm.io/gorm"
)

// ScoringJobStore is the durable record of every scoring job.
// Every status change goes through CompareAndSetStatus; no other method
// writes the status column.
type ScoringJobStore interface {
	Create(ctx context.Context, job *domain.ScoringJob) error
	Get(ctx context.Context, id string) (*domain.ScoringJob, error)
	CompareAndSetStatus(ctx context.Context, id string, expected, next domain.JobStatus, update domain.JobUpdate) (*domain.ScoringJob, error)
	RecordSnapshot(ctx context.Context, id, snapshot, model string) error
	List(ctx context.Context, filter domain.ListFilter) ([]domain.ScoringJob, int64, error)
	ListStale(ctx context.Context, status domain.JobStatus, olderThan time.Time, limit int) ([]domain.ScoringJob, error)
	CountByStatus(ctx context.Context) (map[domain.JobStatus]int64, error)
}

// checkTransition rejects edges outside the state machine and payloads that
// do not fit the target status, before storage is touched.
func checkTransition(expected, next domain.JobStatus, update domain.JobUpdate) error {
	if !domain.CanTransition(expected, next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, expected, next)
	}
	return update.Validate(next)
}

func completionTime(update domain.JobUpdate, now time.Time) time.Time {
	if update.CompletedAt != nil {
		return update.CompletedAt.UTC()
	}
	return now
}

// transitionColumns returns the column set written together with a status change.
// applyTransition below must stay in step with it.
func transitionColumns(next domain.JobStatus, update domain.JobUpdate, now time.Time) map[string]interface{} {
	cols := map[string]interface{}{
		"status":     next,
		"updated_at": now,
		"version":    gorm.Expr("version + 1"),
	}

	switch next {
	case domain.JobStatusCompleted, domain.JobStatusFailed:
		cols["completed_at"] = completionTime(update, now)
		cols["tokens_used"] = update.TokensUsed
		cols["attempts"] = update.Attempts
		cols["archive_key"] = update.ArchiveKey
		if update.Model != "" {
			cols["model"] = update.Model
		}
		if next == domain.JobStatusCompleted {
			cols["result"] = update.Result
			cols["error"] = nil
		} else {
			cols["error"] = update.Error
			cols["result"] = nil
		}
	case domain.JobStatusPending:
		cols["result"] = nil
		cols["error"] = nil
		cols["prompt_snapshot"] = ""
		cols["model"] = ""
		cols["tokens_used"] = 0
		cols["attempts"] = 0
		cols["archive_key"] = ""
		cols["completed_at"] = nil
		if update.IncrementRetry {
			cols["retry_count"] = gorm.Expr("retry_count + 1")
		}
	}
	return cols
}

// applyTransition mutates an in-memory job the same way transitionColumns
// mutates a row.
func applyTransition(job *domain.ScoringJob, next domain.JobStatus, update domain.JobUpdate, now time.Time) {
	job.Status = next
	job.UpdatedAt = now
	job.Version++

	switch next {
	case domain.JobStatusCompleted, domain.JobStatusFailed:
		completedAt := completionTime(update, now)
		job.CompletedAt = &completedAt
		job.TokensUsed = update.TokensUsed
		job.Attempts = update.Attempts
		job.ArchiveKey = update.ArchiveKey
		if update.Model != "" {
			job.Model = update.Model
		}
		if next == domain.JobStatusCompleted {
			job.Result = update.Result.Clone()
			job.Error = nil
		} else {
			e := *update.Error
			job.Error = &e
			job.Result = nil
		}
	case domain.JobStatusPending:
		job.Result = nil
		job.Error = nil
		job.PromptSnapshot = ""
		job.Model = ""
		job.TokensUsed = 0
		job.Attempts = 0
		job.ArchiveKey = ""
		job.CompletedAt = nil
		if update.IncrementRetry {
			job.RetryCount++
		}
	}
}

func prepareNewJob(job *domain.ScoringJob, now time.Time) error {
	if job.ID == "" {
		return &domain.ValidationError{Field: "id", Message: "job id is required"}
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	if job.Status != domain.JobStatusPending {
		return &domain.ValidationError{Field: "status", Message: "new jobs start pending"}
	}
	job.Version = 1
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}
