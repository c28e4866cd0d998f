package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/talentscore/internal/domain"
	"github.com/timmy/talentscore/internal/logger"
	"github.com/timmy/talentscore/internal/notify"
	"github.com/timmy/talentscore/internal/repository"
)

const defaultSweepBatch = 100

// RecoveryConfig controls when jobs count as stuck. StaleAfter is how long a
// processing job may go without a write; PendingRedispatchAfter is how long a
// pending job may wait before it is submitted again.
type RecoveryConfig struct {
	StaleAfter             time.Duration
	PendingRedispatchAfter time.Duration
	Interval               time.Duration
	BatchSize              int
}

// SweepReport lists what one sweep found and changed.
type SweepReport struct {
	Stale        []string `json:"stale"`
	Redispatched []string `json:"redispatched"`
}

// RecoverySweeper re-dispatches pending jobs that never reached a worker and
// reports processing jobs whose execution unit appears to have died. Stale
// jobs are only failed on operator request through Recover.
type RecoverySweeper struct {
	store      repository.ScoringJobStore
	dispatcher Submitter
	notifier   notify.Notifier
	logger     *logger.Logger
	cfg        RecoveryConfig
	now        func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewRecoverySweeper creates a sweeper. dispatcher may be nil, in which
// case pending jobs are left alone.
func NewRecoverySweeper(store repository.ScoringJobStore, dispatcher Submitter, notifier notify.Notifier, log *logger.Logger, cfg RecoveryConfig) *RecoverySweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatch
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &RecoverySweeper{
		store:      store,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     log.WithField(logger.FieldComponent, "recovery"),
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ListStale returns processing jobs with no write for StaleAfter.
func (r *RecoverySweeper) ListStale(ctx context.Context) ([]domain.ScoringJob, error) {
	return r.store.ListStale(ctx, domain.JobStatusProcessing, r.now().Add(-r.cfg.StaleAfter), r.cfg.BatchSize)
}

// Recover marks one stale processing job failed with kind abandoned.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.ScoringJob: the failed job.
//   - error: ErrInvalidState unless processing, ErrNotStale when the job was
//     written recently, ConflictError if it moved meanwhile, or StoreError.
func (r *RecoverySweeper) Recover(ctx context.Context, id string) (*domain.ScoringJob, error) {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusProcessing {
		return nil, fmt.Errorf("%w: job %s is %s", domain.ErrInvalidState, id, job.Status)
	}
	cutoff := r.now().Add(-r.cfg.StaleAfter)
	if job.UpdatedAt.After(cutoff) {
		return nil, fmt.Errorf("%w: job %s last written %s", domain.ErrNotStale, id, job.UpdatedAt.Format(time.RFC3339))
	}

	failed, err := r.store.CompareAndSetStatus(ctx, id, domain.JobStatusProcessing, domain.JobStatusFailed, domain.JobUpdate{
		Error: &domain.JobError{
			Kind:    domain.ErrorKindAbandoned,
			Message: fmt.Sprintf("no progress since %s", job.UpdatedAt.Format(time.RFC3339)),
		},
		TokensUsed: job.TokensUsed,
		Attempts:   job.Attempts,
		Model:      job.Model,
	})
	if err != nil {
		return nil, err
	}

	r.logger.WithField(logger.FieldJobID, id).Warn("Abandoned job marked failed")
	if err := r.notifier.Notify(ctx, notify.NewEvent(notify.EventJobFailed, failed)); err != nil {
		r.logger.WithError(err).Warn("Failed to publish job event")
	}
	return failed, nil
}

// Sweep runs one recovery pass.
func (r *RecoverySweeper) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{Stale: []string{}, Redispatched: []string{}}

	stale, err := r.ListStale(ctx)
	if err != nil {
		return report, err
	}
	for _, job := range stale {
		report.Stale = append(report.Stale, job.ID)
	}

	if r.dispatcher == nil {
		return report, nil
	}
	pending, err := r.store.ListStale(ctx, domain.JobStatusPending, r.now().Add(-r.cfg.PendingRedispatchAfter), r.cfg.BatchSize)
	if err != nil {
		return report, err
	}
	for _, job := range pending {
		if err := r.dispatcher.Submit(job.ID); err != nil {
			if errors.Is(err, ErrQueueFull) {
				break
			}
			return report, err
		}
		report.Redispatched = append(report.Redispatched, job.ID)
	}
	return report, nil
}

// Start runs Sweep immediately and then every Interval until Stop.
func (r *RecoverySweeper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running || r.cfg.Interval <= 0 {
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})

	r.wg.Add(1)
	go r.loop(ctx)
}

func (r *RecoverySweeper) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		r.sweepOnce(ctx)
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *RecoverySweeper) sweepOnce(ctx context.Context) {
	report, err := r.Sweep(ctx)
	if err != nil {
		r.logger.WithError(err).Error("Recovery sweep failed")
	}
	if len(report.Stale) > 0 {
		r.logger.WithField("job_ids", report.Stale).Warn("Stale processing jobs need operator recovery")
	}
	if len(report.Redispatched) > 0 {
		logger.With(logger.Fields{"job_ids": report.Redispatched}).
			WithCount(len(report.Redispatched)).
			Info(r.logger.WithContext(ctx), "Re-dispatched pending jobs")
	}
}

// Stop ends the periodic loop and waits for a running sweep.
func (r *RecoverySweeper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()
	r.wg.Wait()
}
