package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/timmy/talentscore/internal/domain"
	"github.com/timmy/talentscore/internal/llm"
	"github.com/timmy/talentscore/internal/notify"
	"github.com/timmy/talentscore/internal/storage"
)

func waitForStatus(t *testing.T, f *fixture, id string, want domain.JobStatus) *domain.ScoringJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := f.svc.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
	return nil
}

func TestCreateJobIsProcessedInBackground(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{Concurrency: 2, QueueSize: 4}, nil)
	f := newFixture(t, dispatcher)
	dispatcher.Start(f.svc.Execute)

	job := f.create(t, rawRequest())
	if job.Status != domain.JobStatusPending {
		t.Fatalf("created job status = %s, want pending", job.Status)
	}
	if job.PromptSource.Kind != domain.PromptSourceRaw {
		t.Fatalf("prompt source kind = %s", job.PromptSource.Kind)
	}

	done := waitForStatus(t, f, job.ID, domain.JobStatusCompleted)
	if done.Result == nil || done.Result.Role != "cto" || done.Result.OverallScore != 84 || !done.Result.Fit {
		t.Fatalf("unexpected result: %+v", done.Result)
	}
	if done.Error != nil || done.CompletedAt == nil {
		t.Fatalf("completed job has error=%v completed_at=%v", done.Error, done.CompletedAt)
	}
	if !strings.Contains(done.PromptSnapshot, "Evaluate this profile for CTO fitness") || !strings.Contains(done.PromptSnapshot, "Ada Example") {
		t.Fatalf("prompt snapshot missing prompt or profile: %q", done.PromptSnapshot)
	}
	if done.TokensUsed != 120 || done.Attempts != 1 || done.Model != "test-model-2024" {
		t.Fatalf("tokens=%d attempts=%d model=%q", done.TokensUsed, done.Attempts, done.Model)
	}

	if err := dispatcher.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	want := []notify.EventType{notify.EventJobCreated, notify.EventJobProcessing, notify.EventJobCompleted}
	got := f.notifier.Types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestRateLimitedCallsAreRetriedWithinAttempt(t *testing.T) {
	f := newFixture(t, nil,
		failWith(domain.ErrorKindRateLimited, 429),
		failWith(domain.ErrorKindRateLimited, 429),
		failWith(domain.ErrorKindRateLimited, 429),
		reply(validOutput, 50),
	)
	job := f.create(t, rawRequest())
	f.svc.Execute(context.Background(), job.ID)

	got := f.get(t, job.ID)
	if got.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed (error %+v)", got.Status, got.Error)
	}
	if got.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", got.Attempts)
	}
	if got.RetryCount != 0 {
		t.Errorf("retry_count = %d, want 0 for in-attempt retries", got.RetryCount)
	}
	if f.client.Calls() != 4 || len(f.sleeps) != 3 {
		t.Errorf("calls=%d sleeps=%d, want 4 and 3", f.client.Calls(), len(f.sleeps))
	}
	for i, d := range f.sleeps {
		if d <= 0 || d > 8*time.Second {
			t.Errorf("sleep %d = %s out of range", i, d)
		}
	}
}

func TestAuthErrorFailsWithoutRetry(t *testing.T) {
	f := newFixture(t, nil, failWith(domain.ErrorKindAuth, 401), reply(validOutput, 10))
	job := f.create(t, rawRequest())
	f.svc.Execute(context.Background(), job.ID)

	got := f.get(t, job.ID)
	if got.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.Error == nil || got.Error.Kind != domain.ErrorKindAuth {
		t.Fatalf("error = %+v, want auth_error", got.Error)
	}
	if f.client.Calls() != 1 || len(f.sleeps) != 0 || got.Attempts != 1 {
		t.Fatalf("calls=%d sleeps=%d attempts=%d, want a single call", f.client.Calls(), len(f.sleeps), got.Attempts)
	}
	if got.RetryCount != 0 || got.CompletedAt == nil {
		t.Fatalf("retry_count=%d completed_at=%v", got.RetryCount, got.CompletedAt)
	}
}

func TestConcurrentTerminalWritesHaveOneWinner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	job := f.create(t, rawRequest())
	if _, err := f.store.CompareAndSetStatus(ctx, job.ID, domain.JobStatusPending, domain.JobStatusProcessing, domain.JobUpdate{}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	scores := []float64{12, 97}
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		mu        sync.Mutex
		winners   []float64
		conflicts int
	)
	for _, score := range scores {
		wg.Add(1)
		go func(score float64) {
			defer wg.Done()
			<-start
			_, err := f.store.CompareAndSetStatus(ctx, job.ID, domain.JobStatusProcessing, domain.JobStatusCompleted, domain.JobUpdate{
				Result: &domain.ScoringResult{Role: "cto", OverallScore: score},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, score)
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(score)
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 || conflicts != 1 {
		t.Fatalf("winners=%v conflicts=%d, want exactly one winner", winners, conflicts)
	}
	got := f.get(t, job.ID)
	if got.Result == nil || got.Result.OverallScore != winners[0] {
		t.Fatalf("stored result %+v does not match winner %v", got.Result, winners[0])
	}
}

func TestConcurrentExecutionsClaimOnce(t *testing.T) {
	f := newFixture(t, nil)
	job := f.create(t, rawRequest())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.Execute(context.Background(), job.ID)
		}()
	}
	wg.Wait()

	if f.client.Calls() != 1 {
		t.Fatalf("model called %d times, want 1", f.client.Calls())
	}
	if got := f.get(t, job.ID); got.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
}

func TestRetryRejectedUnlessFailed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	pending := f.create(t, rawRequest())
	processing := f.create(t, rawRequest())
	if _, err := f.store.CompareAndSetStatus(ctx, processing.ID, domain.JobStatusPending, domain.JobStatusProcessing, domain.JobUpdate{}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	for _, id := range []string{pending.ID, processing.ID} {
		before := f.get(t, id)
		if _, err := f.svc.RetryJob(ctx, id); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("RetryJob(%s) error = %v, want ErrInvalidState", before.Status, err)
		}
		after := f.get(t, id)
		if after.Status != before.Status || after.Version != before.Version || after.RetryCount != 0 {
			t.Fatalf("job changed by rejected retry: before=%+v after=%+v", before, after)
		}
	}

	if _, err := f.svc.RetryJob(ctx, "missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestRetryResetsAndIsBounded(t *testing.T) {
	f := newFixture(t, nil, failWith(domain.ErrorKindAuth, 403))
	ctx := context.Background()
	job := f.create(t, rawRequest())

	for round := 1; round <= 2; round++ {
		f.svc.Execute(ctx, job.ID)
		if got := f.get(t, job.ID); got.Status != domain.JobStatusFailed {
			t.Fatalf("round %d: status = %s, want failed", round, got.Status)
		}
		retried, err := f.svc.RetryJob(ctx, job.ID)
		if err != nil {
			t.Fatalf("round %d: RetryJob: %v", round, err)
		}
		if retried.Status != domain.JobStatusPending || retried.RetryCount != round {
			t.Fatalf("round %d: status=%s retry_count=%d", round, retried.Status, retried.RetryCount)
		}
		if retried.Error != nil || retried.PromptSnapshot != "" || retried.CompletedAt != nil {
			t.Fatalf("round %d: outcome not reset: %+v", round, retried)
		}
	}

	f.svc.Execute(ctx, job.ID)
	if _, err := f.svc.RetryJob(ctx, job.ID); !errors.Is(err, domain.ErrRetryLimitExceeded) {
		t.Fatalf("expected ErrRetryLimitExceeded, got %v", err)
	}
	if got := f.get(t, job.ID); got.Status != domain.JobStatusFailed || got.RetryCount != 2 {
		t.Fatalf("status=%s retry_count=%d after rejected retry", got.Status, got.RetryCount)
	}

	objects := []string{storage.AuditKey(job.ID, 0), storage.AuditKey(job.ID, 1), storage.AuditKey(job.ID, 2)}
	for _, key := range objects {
		if ok, _ := f.objects.Exists(ctx, key); !ok {
			t.Errorf("missing audit object %s", key)
		}
	}
}

func TestCreateJobValidation(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name string
		req  CreateJobRequest
	}{
		{"missing profile", CreateJobRequest{Prompt: "score"}},
		{"no prompt source", CreateJobRequest{ProfileID: "profile-1"}},
		{"both prompt sources", CreateJobRequest{ProfileID: "profile-1", TemplateID: "cto", Prompt: "score"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateJob(context.Background(), tt.req)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
	if counts, _ := f.store.CountByStatus(context.Background()); len(counts) != 0 {
		t.Fatalf("invalid requests created jobs: %v", counts)
	}
}

func TestResolutionFailures(t *testing.T) {
	tests := []struct {
		name string
		req  CreateJobRequest
	}{
		{"unknown profile", CreateJobRequest{ProfileID: "nobody", TemplateID: "cto"}},
		{"unknown template", CreateJobRequest{ProfileID: "profile-1", TemplateID: "cfo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			job := f.create(t, tt.req)
			f.svc.Execute(context.Background(), job.ID)

			got := f.get(t, job.ID)
			if got.Status != domain.JobStatusFailed || got.Error == nil || got.Error.Kind != domain.ErrorKindResolution {
				t.Fatalf("status=%s error=%+v, want resolution_error", got.Status, got.Error)
			}
			if f.client.Calls() != 0 {
				t.Fatalf("model called %d times", f.client.Calls())
			}
		})
	}
}

func TestTemplateJobAndMalformedOutput(t *testing.T) {
	f := newFixture(t, nil, reply("I think they are great", 5), reply("```json\n"+validOutput+"\n```", 7))
	job := f.create(t, CreateJobRequest{ProfileID: "profile-1", TemplateID: "cto"})
	f.svc.Execute(context.Background(), job.ID)

	got := f.get(t, job.ID)
	if got.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, error = %+v", got.Status, got.Error)
	}
	if got.Attempts != 2 || got.TokensUsed != 12 {
		t.Fatalf("attempts=%d tokens=%d, want 2 and 12", got.Attempts, got.TokensUsed)
	}

	record, err := storage.NewAuditArchive(f.objects).Read(context.Background(), got.ArchiveKey)
	if err != nil {
		t.Fatalf("read audit record: %v", err)
	}
	if len(record.Calls) != 2 || record.Calls[0].ErrorKind != domain.ErrorKindMalformedResponse || record.PromptSnapshot != got.PromptSnapshot {
		t.Fatalf("unexpected audit record: %+v", record)
	}
}

func TestExhaustedAttemptsFailWithLastKind(t *testing.T) {
	f := newFixture(t, nil, failWith(domain.ErrorKindProvider, 502), failWith(domain.ErrorKindTimeout, 0))
	job := f.create(t, rawRequest())
	f.svc.Execute(context.Background(), job.ID)

	got := f.get(t, job.ID)
	if got.Status != domain.JobStatusFailed || got.Error.Kind != domain.ErrorKindTimeout {
		t.Fatalf("status=%s error=%+v", got.Status, got.Error)
	}
	if got.Attempts != 4 || len(f.sleeps) != 3 {
		t.Fatalf("attempts=%d sleeps=%d", got.Attempts, len(f.sleeps))
	}
}

func TestStoreFailureAfterClaim(t *testing.T) {
	t.Run("terminal write fails, fallback records persistence_error", func(t *testing.T) {
		f := newFixture(t, nil)
		job := f.create(t, rawRequest())
		f.withFailingStore(1, false)
		f.svc.Execute(context.Background(), job.ID)

		got := f.get(t, job.ID)
		if got.Status != domain.JobStatusFailed || got.Error == nil || got.Error.Kind != domain.ErrorKindPersistence {
			t.Fatalf("status=%s error=%+v, want failed/persistence_error", got.Status, got.Error)
		}
		if got.Result != nil || got.CompletedAt == nil {
			t.Fatalf("result=%+v completed_at=%v", got.Result, got.CompletedAt)
		}

		// The archived record matches what the store holds.
		record, err := storage.NewAuditArchive(f.objects).Read(context.Background(), got.ArchiveKey)
		if err != nil {
			t.Fatalf("read audit record: %v", err)
		}
		if record.Status != domain.JobStatusFailed || record.Result != nil || record.Error == nil || record.Error.Kind != domain.ErrorKindPersistence {
			t.Fatalf("audit record disagrees with job: %+v", record)
		}
		if len(record.Calls) != 1 || record.Calls[0].Output == "" {
			t.Fatalf("model calls missing from audit record: %+v", record.Calls)
		}

		types := f.notifier.Types()
		if types[len(types)-1] != notify.EventJobFailed {
			t.Fatalf("events = %v, want job.failed last", types)
		}
	})

	t.Run("fallback write also fails, job left processing", func(t *testing.T) {
		f := newFixture(t, nil)
		job := f.create(t, rawRequest())
		f.withFailingStore(2, false)
		f.svc.Execute(context.Background(), job.ID)

		got := f.get(t, job.ID)
		if got.Status != domain.JobStatusProcessing || got.Error != nil || got.Result != nil || got.CompletedAt != nil {
			t.Fatalf("job should stay processing untouched: %+v", got)
		}
		for _, typ := range f.notifier.Types() {
			if typ == notify.EventJobCompleted || typ == notify.EventJobFailed {
				t.Fatalf("terminal event %s published without a terminal write", typ)
			}
		}
	})

	t.Run("snapshot write fails before the model call", func(t *testing.T) {
		f := newFixture(t, nil)
		job := f.create(t, rawRequest())
		f.withFailingStore(0, true)
		f.svc.Execute(context.Background(), job.ID)

		got := f.get(t, job.ID)
		if got.Status != domain.JobStatusFailed || got.Error == nil || got.Error.Kind != domain.ErrorKindPersistence {
			t.Fatalf("status=%s error=%+v, want failed/persistence_error", got.Status, got.Error)
		}
		if f.client.Calls() != 0 {
			t.Fatalf("model called %d times after snapshot failure", f.client.Calls())
		}
	})
}

func TestCancelledExecutionLeavesJobProcessing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t, nil, func(context.Context) (*llm.Response, error) {
		cancel()
		return nil, &llm.Error{Kind: domain.ErrorKindTimeout, Message: "cancelled"}
	})
	job := f.create(t, rawRequest())
	f.svc.Execute(ctx, job.ID)

	got := f.get(t, job.ID)
	if got.Status != domain.JobStatusProcessing || got.Error != nil || got.CompletedAt != nil {
		t.Fatalf("cancelled execution wrote state: %+v", got)
	}
	if f.client.Calls() != 1 {
		t.Fatalf("model called %d times after cancellation", f.client.Calls())
	}
}

func TestCreateJobDispatchFailures(t *testing.T) {
	full := NewDispatcher(DispatcherConfig{Concurrency: 1, QueueSize: 1}, nil)
	f := newFixture(t, full)
	first := f.create(t, rawRequest())
	second, err := f.svc.CreateJob(context.Background(), rawRequest())
	if err != nil {
		t.Fatalf("queue full should not fail creation: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("job ids are not unique")
	}

	stopped := NewDispatcher(DispatcherConfig{Concurrency: 1, QueueSize: 1}, nil)
	stopped.Stop(context.Background())
	f = newFixture(t, stopped)
	job, err := f.svc.CreateJob(context.Background(), rawRequest())
	if !errors.Is(err, ErrDispatcherStopped) {
		t.Fatalf("expected ErrDispatcherStopped, got %v", err)
	}
	if job == nil || f.get(t, job.ID).Status != domain.JobStatusPending {
		t.Fatal("job should be stored pending when dispatch is refused")
	}
}

func TestListJobs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.create(t, rawRequest())
	}
	jobs, total, err := f.svc.ListJobs(ctx, domain.ListFilter{Status: domain.JobStatusPending, Limit: 2})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if total != 3 || len(jobs) != 2 {
		t.Fatalf("total=%d len=%d, want 3 and 2", total, len(jobs))
	}
	if _, _, err := f.svc.ListJobs(ctx, domain.ListFilter{Status: "done"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	counts, err := f.svc.Stats(ctx)
	if err != nil || counts[domain.JobStatusPending] != 3 {
		t.Fatalf("counts=%v err=%v", counts, err)
	}
}
