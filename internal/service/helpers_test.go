package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/timmy/talentscore/internal/domain"
	"github.com/timmy/talentscore/internal/llm"
	"github.com/timmy/talentscore/internal/notify"
	"github.com/timmy/talentscore/internal/prompts"
	"github.com/timmy/talentscore/internal/repository"
	"github.com/timmy/talentscore/internal/storage"
)

const validOutput = `{"role":"CTO","overall_score":84,"fit":true,"strengths":["scaled platform teams"],"summary":"Strong engineering leader."}`

// scriptedClient replays one step per Score call; the last step repeats.
type scriptedClient struct {
	mu    sync.Mutex
	steps []func(ctx context.Context) (*llm.Response, error)
	calls int
}

func (c *scriptedClient) Score(ctx context.Context, _ *llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	i := c.calls
	c.calls++
	if i >= len(c.steps) {
		i = len(c.steps) - 1
	}
	step := c.steps[i]
	c.mu.Unlock()
	return step(ctx)
}

func (c *scriptedClient) Model() string    { return "test-model" }
func (c *scriptedClient) Provider() string { return "test" }

func (c *scriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func reply(text string, tokens int) func(context.Context) (*llm.Response, error) {
	return func(context.Context) (*llm.Response, error) {
		return &llm.Response{Text: text, Model: "test-model-2024", TotalTokens: tokens}, nil
	}
}

func failWith(kind domain.ErrorKind, status int) func(context.Context) (*llm.Response, error) {
	return func(context.Context) (*llm.Response, error) {
		return nil, &llm.Error{Kind: kind, StatusCode: status, Message: fmt.Sprintf("simulated %s", kind)}
	}
}

type profileMap map[string]*domain.Profile

func (m profileMap) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	p, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, id)
	}
	return p, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) Types() []notify.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]notify.EventType, len(n.events))
	for i, ev := range n.events {
		types[i] = ev.Type
	}
	return types
}

type fixture struct {
	svc      *ScoringService
	store    *repository.MemoryScoringJobRepository
	client   *scriptedClient
	notifier *recordingNotifier
	objects  *storage.MemoryStorage
	sleeps   []time.Duration
}

func newFixture(t *testing.T, dispatcher Submitter, steps ...func(context.Context) (*llm.Response, error)) *fixture {
	t.Helper()
	if len(steps) == 0 {
		steps = append(steps, reply(validOutput, 120))
	}
	f := &fixture{
		store:    repository.NewMemoryScoringJobRepository(),
		client:   &scriptedClient{steps: steps},
		notifier: &recordingNotifier{},
		objects:  storage.NewMemoryStorage(),
	}
	profiles := profileMap{
		"profile-1": {ID: "profile-1", FullName: "Ada Example", Headline: "VP Engineering", Skills: domain.StringArray{"go", "kubernetes"}},
	}
	f.svc = NewScoringService(ScoringDeps{
		Store:      f.store,
		Profiles:   profiles,
		Resolver:   prompts.NewResolver(prompts.NewBuiltinTemplates()),
		Client:     f.client,
		Dispatcher: dispatcher,
		Notifier:   f.notifier,
		Archive:    storage.NewAuditArchive(f.objects),
	}, ScoringConfig{
		MaxAttempts: 4,
		MaxRetries:  2,
		Backoff:     Backoff{Initial: time.Second, Max: 8 * time.Second},
	})
	var mu sync.Mutex
	f.svc.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		f.sleeps = append(f.sleeps, d)
		mu.Unlock()
		return ctx.Err()
	}
	return f
}

func (f *fixture) create(t *testing.T, req CreateJobRequest) *domain.ScoringJob {
	t.Helper()
	job, err := f.svc.CreateJob(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

func (f *fixture) get(t *testing.T, id string) *domain.ScoringJob {
	t.Helper()
	job, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return job
}

func rawRequest() CreateJobRequest {
	return CreateJobRequest{ProfileID: "profile-1", Prompt: "Evaluate this profile for CTO fitness"}
}

// failingStore wraps a job store and fails writes out of processing, and
// optionally the snapshot write, with a store error.
type failingStore struct {
	repository.ScoringJobStore

	mu              sync.Mutex
	failTerminal    int
	failSnapshot    bool
	terminalAttempt int
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.JobStatus, update domain.JobUpdate) (*domain.ScoringJob, error) {
	if expected == domain.JobStatusProcessing {
		s.mu.Lock()
		s.terminalAttempt++
		fail := s.terminalAttempt <= s.failTerminal
		s.mu.Unlock()
		if fail {
			return nil, domain.StoreError("update scoring job", errDiskFull)
		}
	}
	return s.ScoringJobStore.CompareAndSetStatus(ctx, id, expected, next, update)
}

func (s *failingStore) RecordSnapshot(ctx context.Context, id, snapshot, model string) error {
	if s.failSnapshot {
		return domain.StoreError("record snapshot", errDiskFull)
	}
	return s.ScoringJobStore.RecordSnapshot(ctx, id, snapshot, model)
}

// withFailingStore routes the service's writes through a failingStore.
func (f *fixture) withFailingStore(failTerminal int, failSnapshot bool) *failingStore {
	fs := &failingStore{ScoringJobStore: f.store, failTerminal: failTerminal, failSnapshot: failSnapshot}
	f.svc.store = fs
	return fs
}
