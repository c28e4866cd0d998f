package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/timmy/talentscore/internal/domain"
)

// MemoryScoringJobRepository keeps jobs in a mutex-guarded map.
// Used by database.driver=memory and by tests; contents are lost on exit.
type MemoryScoringJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.ScoringJob
	now  func() time.Time
}

// NewMemoryScoringJobRepository creates an empty in-memory store.
func NewMemoryScoringJobRepository() *MemoryScoringJobRepository {
	return &MemoryScoringJobRepository{
		jobs: make(map[string]*domain.ScoringJob),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (r *MemoryScoringJobRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *MemoryScoringJobRepository) Create(_ context.Context, job *domain.ScoringJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := prepareNewJob(job, r.now()); err != nil {
		return err
	}
	if _, exists := r.jobs[job.ID]; exists {
		return domain.ErrDuplicateJob
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *MemoryScoringJobRepository) Get(_ context.Context, id string) (*domain.ScoringJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

func (r *MemoryScoringJobRepository) CompareAndSetStatus(_ context.Context, id string, expected, next domain.JobStatus, update domain.JobUpdate) (*domain.ScoringJob, error) {
	if err := checkTransition(expected, next, update); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if job.Status != expected {
		return nil, &domain.ConflictError{JobID: id, Expected: expected, Actual: job.Status}
	}
	if update.IncrementRetry && update.RetryLimit > 0 && job.RetryCount >= update.RetryLimit {
		return nil, fmt.Errorf("%w: job %s has used %d retries", domain.ErrRetryLimitExceeded, id, job.RetryCount)
	}

	applyTransition(job, next, update, r.now())
	return job.Clone(), nil
}

func (r *MemoryScoringJobRepository) RecordSnapshot(_ context.Context, id, snapshot, model string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.Status != domain.JobStatusProcessing {
		return &domain.ConflictError{JobID: id, Expected: domain.JobStatusProcessing, Actual: job.Status}
	}
	if job.PromptSnapshot != "" {
		return domain.ErrSnapshotAlreadySet
	}

	job.PromptSnapshot = snapshot
	job.Model = model
	job.UpdatedAt = r.now()
	job.Version++
	return nil
}

func (r *MemoryScoringJobRepository) List(_ context.Context, filter domain.ListFilter) ([]domain.ScoringJob, int64, error) {
	filter = filter.Normalize()

	r.mu.Lock()
	matched := make([]*domain.ScoringJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.ProfileID != "" && job.ProfileID != filter.ProfileID {
			continue
		}
		matched = append(matched, job.Clone())
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []domain.ScoringJob{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]domain.ScoringJob, 0, end-filter.Offset)
	for _, job := range matched[filter.Offset:end] {
		page = append(page, *job)
	}
	return page, total, nil
}

func (r *MemoryScoringJobRepository) ListStale(_ context.Context, status domain.JobStatus, olderThan time.Time, limit int) ([]domain.ScoringJob, error) {
	if limit <= 0 {
		limit = domain.MaxListLimit
	}

	r.mu.Lock()
	var stale []domain.ScoringJob
	for _, job := range r.jobs {
		if job.Status == status && job.UpdatedAt.Before(olderThan) {
			stale = append(stale, *job.Clone())
		}
	}
	r.mu.Unlock()

	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	if len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (r *MemoryScoringJobRepository) CountByStatus(_ context.Context) (map[domain.JobStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[domain.JobStatus]int64)
	for _, job := range r.jobs {
		counts[job.Status]++
	}
	return counts, nil
}
