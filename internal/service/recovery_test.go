package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timmy/talentscore/internal/domain"
)

type recordingSubmitter struct {
	ids  []string
	full bool
}

func (s *recordingSubmitter) Submit(jobID string) error {
	if s.full {
		return ErrQueueFull
	}
	s.ids = append(s.ids, jobID)
	return nil
}

func TestRecoverySweep(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := base
	f.store.SetClock(func() time.Time { return now })

	stuck := f.create(t, rawRequest())
	waiting := f.create(t, rawRequest())
	if _, err := f.store.CompareAndSetStatus(ctx, stuck.ID, domain.JobStatusPending, domain.JobStatusProcessing, domain.JobUpdate{}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	now = base.Add(5 * time.Minute)
	fresh := f.create(t, rawRequest())
	if _, err := f.store.CompareAndSetStatus(ctx, fresh.ID, domain.JobStatusPending, domain.JobStatusProcessing, domain.JobUpdate{}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	submitter := &recordingSubmitter{}
	sweeper := NewRecoverySweeper(f.store, submitter, f.notifier, nil, RecoveryConfig{
		StaleAfter:             3 * time.Minute,
		PendingRedispatchAfter: time.Minute,
	})
	sweeper.now = func() time.Time { return now }

	report, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(report.Stale) != 1 || report.Stale[0] != stuck.ID {
		t.Fatalf("stale = %v, want [%s]", report.Stale, stuck.ID)
	}
	if len(report.Redispatched) != 1 || report.Redispatched[0] != waiting.ID || submitter.ids[0] != waiting.ID {
		t.Fatalf("redispatched = %v, want [%s]", report.Redispatched, waiting.ID)
	}

	if got := f.get(t, stuck.ID); got.Status != domain.JobStatusProcessing {
		t.Fatalf("sweep changed stale job: %s", got.Status)
	}
	if got := f.get(t, fresh.ID); got.Status != domain.JobStatusProcessing {
		t.Fatalf("fresh job touched: %s", got.Status)
	}

	abandoned, err := sweeper.Recover(ctx, stuck.ID)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if abandoned.Error == nil || abandoned.Error.Kind != domain.ErrorKindAbandoned {
		t.Fatalf("recovered job error = %+v", abandoned.Error)
	}

	if _, err := f.svc.RetryJob(ctx, stuck.ID); err != nil {
		t.Fatalf("abandoned job should be retryable: %v", err)
	}
}

func TestRecoverGuards(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.store.SetClock(func() time.Time { return now })

	sweeper := NewRecoverySweeper(f.store, nil, nil, nil, RecoveryConfig{StaleAfter: time.Minute})
	sweeper.now = func() time.Time { return now }

	pending := f.create(t, rawRequest())
	if _, err := sweeper.Recover(ctx, pending.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	if _, err := f.store.CompareAndSetStatus(ctx, pending.ID, domain.JobStatusPending, domain.JobStatusProcessing, domain.JobUpdate{}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := sweeper.Recover(ctx, pending.ID); !errors.Is(err, domain.ErrNotStale) {
		t.Fatalf("expected ErrNotStale, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	failed, err := sweeper.Recover(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if failed.Status != domain.JobStatusFailed || failed.CompletedAt == nil {
		t.Fatalf("unexpected job %+v", failed)
	}
	if _, err := sweeper.Recover(ctx, "missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestRecoverySweeperStartStop(t *testing.T) {
	f := newFixture(t, nil)
	submitter := &recordingSubmitter{full: true}
	f.create(t, rawRequest())

	sweeper := NewRecoverySweeper(f.store, submitter, nil, nil, RecoveryConfig{Interval: time.Hour})
	sweeper.Start(context.Background())
	sweeper.Start(context.Background())
	sweeper.Stop()
	sweeper.Stop()

	if len(submitter.ids) != 0 {
		t.Fatalf("full queue accepted %v", submitter.ids)
	}
}
