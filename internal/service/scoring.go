package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/talentscore/internal/domain"
	"github.com/timmy/talentscore/internal/llm"
	"github.com/timmy/talentscore/internal/logger"
	"github.com/timmy/talentscore/internal/notify"
	"github.com/timmy/talentscore/internal/repository"
	"github.com/timmy/talentscore/internal/source"
	"github.com/timmy/talentscore/internal/storage"
)

// PromptResolver renders a job's prompt source against a profile.
type PromptResolver interface {
	Resolve(ctx context.Context, src domain.PromptSource, profile *domain.Profile) (string, error)
}

// Submitter hands job IDs to the execution pool.
type Submitter interface {
	Submit(jobID string) error
}

// Archiver stores the audit trail of an execution.
type Archiver interface {
	Write(ctx context.Context, record *storage.AuditRecord) (string, error)
}

// ScoringConfig bounds work done per job.
type ScoringConfig struct {
	MaxAttempts int // model calls per execution
	MaxRetries  int // job-level retries
	Backoff     Backoff
}

// ScoringDeps are the collaborators of ScoringService. Dispatcher, Notifier
// and Archive are optional.
type ScoringDeps struct {
	Store      repository.ScoringJobStore
	Profiles   source.ProfileSource
	Resolver   PromptResolver
	Client     llm.Client
	Dispatcher Submitter
	Notifier   notify.Notifier
	Archive    Archiver
	Logger     *logger.Logger
}

// ScoringService owns the scoring job lifecycle: creation, execution,
// and explicit retry. All status changes go through the store's
// compare-and-set.
type ScoringService struct {
	store      repository.ScoringJobStore
	profiles   source.ProfileSource
	resolver   PromptResolver
	client     llm.Client
	dispatcher Submitter
	notifier   notify.Notifier
	archive    Archiver
	logger     *logger.Logger
	cfg        ScoringConfig

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

// NewScoringService creates a new scoring service
func NewScoringService(deps ScoringDeps, cfg ScoringConfig) *ScoringService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}
	return &ScoringService{
		store:      deps.Store,
		profiles:   deps.Profiles,
		resolver:   deps.Resolver,
		client:     deps.Client,
		dispatcher: deps.Dispatcher,
		notifier:   notifier,
		archive:    deps.Archive,
		logger:     log,
		cfg:        cfg,
		sleep:      sleepContext,
		newID:      func() string { return uuid.New().String() },
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *ScoringService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// CreateJobRequest is the input of CreateJob. Exactly one of TemplateID and
// Prompt must be set.
type CreateJobRequest struct {
	ProfileID  string
	TemplateID string
	Prompt     string
}

// CreateJob validates and persists a pending job, then dispatches it.
// Parameters:
//   - ctx: request context.
//   - req: profile reference and prompt source.
// Returns:
//   - *domain.ScoringJob: the stored pending job.
//   - error: ValidationError for bad input, StoreError, or
//     ErrDispatcherStopped (the job is stored but not queued).
func (s *ScoringService) CreateJob(ctx context.Context, req CreateJobRequest) (*domain.ScoringJob, error) {
	profileID := strings.TrimSpace(req.ProfileID)
	if profileID == "" {
		return nil, &domain.ValidationError{Field: "profile_id", Message: "profile_id is required"}
	}
	src, err := domain.NewPromptSource(req.TemplateID, req.Prompt)
	if err != nil {
		return nil, err
	}

	job := &domain.ScoringJob{
		ID:           s.newID(),
		ProfileID:    profileID,
		PromptSource: src,
		Status:       domain.JobStatusPending,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}

	ctx = logger.SetJobID(ctx, job.ID)
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldProfileID: job.ProfileID,
		"prompt_source":       job.PromptSource.Kind,
	}).Info("Scoring job created")
	s.notify(ctx, notify.EventJobCreated, job)

	if err := s.submit(ctx, job.ID); err != nil {
		return job, err
	}
	return job, nil
}

// GetJob returns the job as stored.
func (s *ScoringService) GetJob(ctx context.Context, id string) (*domain.ScoringJob, error) {
	return s.store.Get(ctx, id)
}

// ListJobs returns a page of jobs newest first and the total match count.
func (s *ScoringService) ListJobs(ctx context.Context, filter domain.ListFilter) ([]domain.ScoringJob, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", filter.Status)}
	}
	return s.store.List(ctx, filter.Normalize())
}

// Stats returns job counts per status.
func (s *ScoringService) Stats(ctx context.Context) (map[domain.JobStatus]int64, error) {
	return s.store.CountByStatus(ctx)
}

// RetryJob moves a failed job back to pending and dispatches it.
// Parameters:
//   - ctx: request context.
//   - id: job ID.
// Returns:
//   - *domain.ScoringJob: the job after the reset.
//   - error: ErrJobNotFound, ErrInvalidState unless the job is failed,
//     ErrRetryLimitExceeded once max retries are used, or StoreError.
func (s *ScoringService) RetryJob(ctx context.Context, id string) (*domain.ScoringJob, error) {
	ctx = logger.SetJobID(ctx, id)

	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusFailed {
		return nil, fmt.Errorf("%w: job %s is %s", domain.ErrInvalidState, id, job.Status)
	}
	if job.RetryCount >= s.cfg.MaxRetries {
		return nil, fmt.Errorf("%w: job %s has used %d of %d retries", domain.ErrRetryLimitExceeded, id, job.RetryCount, s.cfg.MaxRetries)
	}

	updated, err := s.store.CompareAndSetStatus(ctx, id, domain.JobStatusFailed, domain.JobStatusPending, domain.JobUpdate{
		IncrementRetry: true,
		RetryLimit:     s.cfg.MaxRetries,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidState, err)
		}
		return nil, err
	}

	s.log(ctx).WithField("retry_count", updated.RetryCount).Info("Scoring job retried")
	s.notify(ctx, notify.EventJobRetried, updated)

	if err := s.submit(ctx, id); err != nil {
		return updated, err
	}
	return updated, nil
}

// submit queues a job. A full queue is not an error: the job stays pending
// and the recovery sweeper dispatches it later.
func (s *ScoringService) submit(ctx context.Context, jobID string) error {
	if s.dispatcher == nil {
		return nil
	}
	err := s.dispatcher.Submit(jobID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrQueueFull):
		s.log(ctx).WithError(err).Warn("Dispatch queue full, job left pending for sweeper")
		return nil
	default:
		return err
	}
}

func (s *ScoringService) notify(ctx context.Context, eventType notify.EventType, job *domain.ScoringJob) {
	if err := s.notifier.Notify(ctx, notify.NewEvent(eventType, job)); err != nil {
		s.log(ctx).WithError(err).WithField("event", eventType).Warn("Failed to publish job event")
	}
}

// execution collects what happened during one processing attempt.
type execution struct {
	snapshot string
	model    string
	result   *domain.ScoringResult
	jobErr   *domain.JobError
	tokens   int
	attempts int
	calls    []storage.AuditCall
	aborted  bool
}

func (e *execution) fail(kind domain.ErrorKind, format string, args ...interface{}) {
	e.result = nil
	e.jobErr = &domain.JobError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Execute claims a pending job and drives it to a terminal state.
// It is the dispatcher's ExecuteFunc. A lost claim is a silent no-op, and a
// cancelled ctx leaves the job processing for the recovery sweeper.
func (s *ScoringService) Execute(ctx context.Context, jobID string) {
	ctx = logger.SetJobID(ctx, jobID)
	start := time.Now()

	job, err := s.store.CompareAndSetStatus(ctx, jobID, domain.JobStatusPending, domain.JobStatusProcessing, domain.JobUpdate{})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.log(ctx).WithError(err).Debug("Job already claimed, skipping")
			return
		}
		s.log(ctx).WithError(err).Error("Failed to claim job")
		return
	}
	ctx = logger.SetProfileID(ctx, job.ProfileID)
	s.notify(ctx, notify.EventJobProcessing, job)

	exec := s.run(ctx, job)
	if exec.aborted {
		return
	}
	if ctx.Err() != nil {
		s.log(ctx).WithError(ctx.Err()).Warn("Execution cancelled, job left processing")
		return
	}
	s.finish(ctx, job, exec, start)
}

func (s *ScoringService) run(ctx context.Context, job *domain.ScoringJob) *execution {
	exec := &execution{model: s.client.Model()}

	profile, err := s.profiles.GetProfile(ctx, job.ProfileID)
	if err != nil {
		exec.fail(domain.ErrorKindResolution, "load profile %s: %v", job.ProfileID, err)
		return exec
	}
	prompt, err := s.resolver.Resolve(ctx, job.PromptSource, profile)
	if err != nil {
		exec.fail(domain.ErrorKindResolution, "%v", err)
		return exec
	}
	exec.snapshot = prompt

	if err := s.store.RecordSnapshot(ctx, job.ID, prompt, exec.model); err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrSnapshotAlreadySet) {
			s.log(ctx).WithError(err).Warn("Lost ownership before model call, aborting")
			exec.aborted = true
			return exec
		}
		exec.fail(domain.ErrorKindPersistence, "record prompt snapshot: %v", err)
		return exec
	}

	s.callModel(ctx, job, exec)
	return exec
}

// callModel spends the in-attempt budget. Only auth failures stop early.
func (s *ScoringService) callModel(ctx context.Context, job *domain.ScoringJob, exec *execution) {
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		exec.attempts = attempt
		callStart := time.Now()

		resp, err := s.client.Score(ctx, &llm.Request{Prompt: exec.snapshot, ProfileID: job.ProfileID})
		call := storage.AuditCall{Attempt: attempt}
		if err == nil {
			exec.tokens += resp.TotalTokens
			call.TokensUsed = resp.TotalTokens
			call.Output = resp.Text
			if resp.Model != "" {
				exec.model = resp.Model
			}
			var result *domain.ScoringResult
			if result, err = llm.ParseResult(resp.Text); err == nil {
				call.Duration = time.Since(callStart).String()
				exec.calls = append(exec.calls, call)
				exec.result = result
				exec.jobErr = nil
				return
			}
		}

		kind := llm.KindOf(err)
		call.ErrorKind = kind
		call.Error = err.Error()
		call.Duration = time.Since(callStart).String()
		exec.calls = append(exec.calls, call)
		exec.fail(kind, "%v", err)

		s.log(ctx).WithFields(logger.Fields{
			logger.FieldAttempt:   attempt,
			logger.FieldErrorKind: kind,
		}).WithError(err).Warn("Model call failed")

		if ctx.Err() != nil || !llm.IsRetryable(err) || attempt == s.cfg.MaxAttempts {
			return
		}
		if err := s.sleep(ctx, s.cfg.Backoff.Delay(attempt)); err != nil {
			return
		}
	}
}

// finish archives the attempt and writes the terminal state.
func (s *ScoringService) finish(ctx context.Context, job *domain.ScoringJob, exec *execution, start time.Time) {
	next := domain.JobStatusCompleted
	if exec.jobErr != nil {
		next = domain.JobStatusFailed
	}
	update := domain.JobUpdate{
		Result:     exec.result,
		Error:      exec.jobErr,
		TokensUsed: exec.tokens,
		Attempts:   exec.attempts,
		Model:      exec.model,
	}
	update.ArchiveKey = s.archiveAttempt(ctx, job, next, exec)

	final, err := s.store.CompareAndSetStatus(ctx, job.ID, domain.JobStatusProcessing, next, update)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.log(ctx).WithError(err).Warn("Lost ownership before terminal write, discarding outcome")
			return
		}
		s.log(ctx).WithError(err).Error("Failed to record job outcome")

		// The archived record must describe the outcome that is actually stored.
		exec.fail(domain.ErrorKindPersistence, "%v", err)
		update.Result = nil
		update.Error = exec.jobErr
		update.ArchiveKey = s.archiveAttempt(ctx, job, domain.JobStatusFailed, exec)
		final, err = s.store.CompareAndSetStatus(ctx, job.ID, domain.JobStatusProcessing, domain.JobStatusFailed, update)
		if err != nil {
			s.log(ctx).WithError(err).Error("Failed to mark job failed, left processing for recovery")
			return
		}
	}

	eventType := notify.EventJobCompleted
	fields := logger.Fields{logger.FieldAttempt: final.Attempts}
	if final.Status == domain.JobStatusFailed {
		eventType = notify.EventJobFailed
		fields[logger.FieldErrorKind] = final.Error.Kind
	}
	s.notify(ctx, eventType, final)

	logger.With(fields).
		WithStatus(string(final.Status)).
		WithDuration(time.Since(start).Milliseconds()).
		WithTokens(final.TokensUsed).
		Info(ctx, "Scoring job finished")
}

// archiveAttempt uploads the audit record and returns its key, or "" when
// archiving is disabled or the upload failed.
func (s *ScoringService) archiveAttempt(ctx context.Context, job *domain.ScoringJob, status domain.JobStatus, exec *execution) string {
	if s.archive == nil {
		return ""
	}
	key, err := s.archive.Write(ctx, &storage.AuditRecord{
		JobID:          job.ID,
		ProfileID:      job.ProfileID,
		RetryCount:     job.RetryCount,
		Status:         status,
		Model:          exec.model,
		PromptSnapshot: exec.snapshot,
		Calls:          exec.calls,
		Result:         exec.result,
		Error:          exec.jobErr,
		TokensUsed:     exec.tokens,
	})
	if err != nil {
		s.log(ctx).WithError(err).Warn("Failed to archive audit record")
		return ""
	}
	return key
}
