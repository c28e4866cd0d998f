package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/talentscore/internal/domain"
	"gorm.io/gorm"
)

// GormScoringJobRepository stores scoring jobs in a SQL database.
type GormScoringJobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewScoringJobRepository creates a new GormScoringJobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *GormScoringJobRepository: repository instance bound to db.
func NewScoringJobRepository(db *gorm.DB) *GormScoringJobRepository {
	return &GormScoringJobRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (r *GormScoringJobRepository) SetClock(now func() time.Time) {
	r.now = now
}

// Create inserts a new pending job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job to persist; ID must be set, timestamps and version are assigned.
// Returns:
//   - error: ErrDuplicateJob on id collision, StoreError on other failures.
func (r *GormScoringJobRepository) Create(ctx context.Context, job *domain.ScoringJob) error {
	if err := prepareNewJob(job, r.now()); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateJob
		}
		return domain.StoreError("create scoring job", err)
	}
	return nil
}

// Get retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.ScoringJob: job record if found.
//   - error: ErrJobNotFound when absent, StoreError on other failures.
func (r *GormScoringJobRepository) Get(ctx context.Context, id string) (*domain.ScoringJob, error) {
	var job domain.ScoringJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, domain.StoreError("get scoring job", err)
	}
	return &job, nil
}

// CompareAndSetStatus moves a job from expected to next in one conditional UPDATE.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - expected: status the caller believes the job is in.
//   - next: status to move to; must be a legal edge from expected.
//   - update: fields written together with the status.
// Returns:
//   - *domain.ScoringJob: the job as stored after the write.
//   - error: ConflictError when the stored status differs, ErrJobNotFound,
//     ErrInvalidTransition, ValidationError or StoreError.
func (r *GormScoringJobRepository) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.JobStatus, update domain.JobUpdate) (*domain.ScoringJob, error) {
	if err := checkTransition(expected, next, update); err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&domain.ScoringJob{}).
		Where("id = ? AND status = ?", id, expected)
	if update.IncrementRetry && update.RetryLimit > 0 {
		query = query.Where("retry_count < ?", update.RetryLimit)
	}
	res := query.Updates(transitionColumns(next, update, r.now()))
	if res.Error != nil {
		return nil, domain.StoreError("compare-and-set status", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == expected {
			return nil, fmt.Errorf("%w: job %s has used %d retries", domain.ErrRetryLimitExceeded, id, current.RetryCount)
		}
		return nil, &domain.ConflictError{JobID: id, Expected: expected, Actual: current.Status}
	}

	return r.Get(ctx, id)
}

// RecordSnapshot writes the resolved prompt once per processing attempt.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - snapshot: prompt text sent to the model.
//   - model: model name the prompt is sent to.
// Returns:
//   - error: ConflictError if the job is not processing, ErrSnapshotAlreadySet
//     if a snapshot exists, ErrJobNotFound or StoreError.
func (r *GormScoringJobRepository) RecordSnapshot(ctx context.Context, id, snapshot, model string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.ScoringJob{}).
		Where("id = ? AND status = ? AND (prompt_snapshot = '' OR prompt_snapshot IS NULL)", id, domain.JobStatusProcessing).
		Updates(map[string]interface{}{
			"prompt_snapshot": snapshot,
			"model":           model,
			"updated_at":      r.now(),
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return domain.StoreError("record prompt snapshot", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != domain.JobStatusProcessing {
		return &domain.ConflictError{JobID: id, Expected: domain.JobStatusProcessing, Actual: current.Status}
	}
	return domain.ErrSnapshotAlreadySet
}

// List returns jobs newest first plus the total matching the filter.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filter: optional status/profile filters and paging.
// Returns:
//   - []domain.ScoringJob: page of jobs.
//   - int64: total matching jobs ignoring paging.
//   - error: StoreError on failure.
func (r *GormScoringJobRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.ScoringJob, int64, error) {
	filter = filter.Normalize()

	query := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&domain.ScoringJob{})
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.ProfileID != "" {
			q = q.Where("profile_id = ?", filter.ProfileID)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, domain.StoreError("count scoring jobs", err)
	}

	var jobs []domain.ScoringJob
	if err := query().Order("created_at DESC, id DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&jobs).Error; err != nil {
		return nil, 0, domain.StoreError("list scoring jobs", err)
	}
	return jobs, total, nil
}

// ListStale returns jobs in status whose last write is older than olderThan, oldest first.
func (r *GormScoringJobRepository) ListStale(ctx context.Context, status domain.JobStatus, olderThan time.Time, limit int) ([]domain.ScoringJob, error) {
	if limit <= 0 {
		limit = domain.MaxListLimit
	}
	var jobs []domain.ScoringJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, olderThan.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, domain.StoreError("list stale scoring jobs", err)
	}
	return jobs, nil
}

// CountByStatus returns the number of jobs in each status.
func (r *GormScoringJobRepository) CountByStatus(ctx context.Context) (map[domain.JobStatus]int64, error) {
	var rows []struct {
		Status domain.JobStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.ScoringJob{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, domain.StoreError("count scoring jobs by status", err)
	}

	counts := make(map[domain.JobStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
