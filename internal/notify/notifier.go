// Package notify fans job lifecycle events out to in-process subscribers and
// message brokers. Delivery is best effort.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/talentscore/internal/domain"
)

// EventType names a job lifecycle event. It doubles as the broker routing key.
type EventType string

const (
	EventJobCreated    EventType = "job.created"
	EventJobProcessing EventType = "job.processing"
	EventJobCompleted  EventType = "job.completed"
	EventJobFailed     EventType = "job.failed"
	EventJobRetried    EventType = "job.retried"
)

// Event is the payload published for a job state change.
type Event struct {
	Type         EventType        `json:"type"`
	JobID        string           `json:"job_id"`
	ProfileID    string           `json:"profile_id"`
	Status       domain.JobStatus `json:"status"`
	RetryCount   int              `json:"retry_count"`
	OverallScore *float64         `json:"overall_score,omitempty"`
	ErrorKind    domain.ErrorKind `json:"error_kind,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// NewEvent snapshots the fields of job that subscribers care about.
func NewEvent(eventType EventType, job *domain.ScoringJob) Event {
	ev := Event{
		Type:       eventType,
		JobID:      job.ID,
		ProfileID:  job.ProfileID,
		Status:     job.Status,
		RetryCount: job.RetryCount,
		OccurredAt: time.Now().UTC(),
	}
	if job.Result != nil && job.Status == domain.JobStatusCompleted {
		score := job.Result.OverallScore
		ev.OverallScore = &score
	}
	if job.Error != nil && job.Status == domain.JobStatusFailed {
		ev.ErrorKind = job.Error.Kind
	}
	return ev
}

// Notifier delivers events. Errors are reported to the caller but must never
// affect job state.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
