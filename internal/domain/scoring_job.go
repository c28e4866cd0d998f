package domain

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a scoring job.
// Values include JobStatusPending, JobStatusProcessing, JobStatusCompleted, and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// transitions lists every edge of the job state machine.
// completed is absorbing; failed only leaves through an explicit retry.
var transitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
	JobStatusFailed:     {JobStatusPending},
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s carries an outcome (completed or failed).
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether from -> to is an allowed edge.
// Parameters:
//   - from: current status.
//   - to: requested status.
// Returns:
//   - bool: true when the edge exists in the state machine.
func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseJobStatus converts a user supplied string into a JobStatus.
func ParseJobStatus(raw string) (JobStatus, error) {
	s := JobStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Message: "unknown status " + raw}
	}
	return s, nil
}

// PromptSourceKind identifies how the prompt for a job is obtained.
type PromptSourceKind string

const (
	PromptSourceTemplate PromptSourceKind = "template"
	PromptSourceRaw      PromptSourceKind = "raw"
)

// PromptSource is either a stored template reference or literal prompt text.
// Exactly one form is set for any valid job.
type PromptSource struct {
	Kind PromptSourceKind `gorm:"column:prompt_source_kind;type:varchar(16);not null" json:"kind"`
	Ref  string           `gorm:"column:prompt_source_ref;type:text;not null" json:"ref"`
}

// NewPromptSource builds a PromptSource from the two mutually exclusive inputs.
// Parameters:
//   - templateID: identifier of a stored prompt template, may be empty.
//   - rawPrompt: literal prompt text, may be empty.
// Returns:
//   - PromptSource: the populated source.
//   - error: ValidationError when neither or both inputs are supplied.
func NewPromptSource(templateID, rawPrompt string) (PromptSource, error) {
	templateID = strings.TrimSpace(templateID)
	hasRaw := strings.TrimSpace(rawPrompt) != ""

	switch {
	case templateID != "" && hasRaw:
		return PromptSource{}, &ValidationError{Field: "prompt", Message: "provide either template_id or raw_prompt, not both"}
	case templateID != "":
		return PromptSource{Kind: PromptSourceTemplate, Ref: templateID}, nil
	case hasRaw:
		return PromptSource{Kind: PromptSourceRaw, Ref: rawPrompt}, nil
	default:
		return PromptSource{}, &ValidationError{Field: "prompt", Message: "template_id or raw_prompt is required"}
	}
}

// ScoringJob is one request to score a profile with an LLM.
type ScoringJob struct {
	ID             string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	ProfileID      string         `gorm:"type:varchar(128);not null;index:idx_scoring_jobs_profile" json:"profile_id"`
	PromptSource   PromptSource   `gorm:"embedded" json:"prompt_source"`
	Status         JobStatus      `gorm:"type:varchar(16);not null;index:idx_scoring_jobs_status_updated,priority:1" json:"status"`
	Result         *ScoringResult `gorm:"type:text" json:"result,omitempty"`
	Error          *JobError      `gorm:"type:text" json:"error,omitempty"`
	PromptSnapshot string         `gorm:"type:text" json:"prompt_snapshot,omitempty"`
	Model          string         `gorm:"type:varchar(128)" json:"model,omitempty"`
	TokensUsed     int            `gorm:"default:0" json:"tokens_used"`
	Attempts       int            `gorm:"default:0" json:"attempts"`
	RetryCount     int            `gorm:"default:0" json:"retry_count"`
	ArchiveKey     string         `gorm:"type:varchar(255)" json:"archive_key,omitempty"`
	Version        int64          `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time      `gorm:"index:idx_scoring_jobs_created" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"index:idx_scoring_jobs_status_updated,priority:2" json:"updated_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// TableName returns the database table name for ScoringJob.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ScoringJob) TableName() string {
	return "scoring_jobs"
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (j *ScoringJob) Clone() *ScoringJob {
	if j == nil {
		return nil
	}
	out := *j
	if j.Result != nil {
		out.Result = j.Result.Clone()
	}
	if j.Error != nil {
		e := *j.Error
		out.Error = &e
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// JobUpdate carries the fields written together with a status transition.
// Which fields are honoured depends on the target status. RetryLimit guards
// IncrementRetry: the write only applies while retry_count < RetryLimit, and
// zero means unbounded.
type JobUpdate struct {
	Result         *ScoringResult
	Error          *JobError
	TokensUsed     int
	Attempts       int
	Model          string
	ArchiveKey     string
	IncrementRetry bool
	RetryLimit     int
	CompletedAt    *time.Time
}

// Validate checks that the payload fits the target status.
// Parameters:
//   - next: status being transitioned into.
// Returns:
//   - error: ValidationError when an outcome is missing or misplaced.
func (u JobUpdate) Validate(next JobStatus) error {
	switch next {
	case JobStatusCompleted:
		if u.Result == nil {
			return &ValidationError{Field: "result", Message: "completed jobs require a result"}
		}
		if u.Error != nil {
			return &ValidationError{Field: "error", Message: "completed jobs cannot carry an error"}
		}
	case JobStatusFailed:
		if u.Error == nil {
			return &ValidationError{Field: "error", Message: "failed jobs require an error"}
		}
		if u.Result != nil {
			return &ValidationError{Field: "result", Message: "failed jobs cannot carry a result"}
		}
	default:
		if u.Result != nil || u.Error != nil {
			return &ValidationError{Field: "outcome", Message: "non-terminal jobs cannot carry an outcome"}
		}
	}
	if u.IncrementRetry && next != JobStatusPending {
		return &ValidationError{Field: "retry_count", Message: "retry count only changes on failed -> pending"}
	}
	return nil
}

// ListFilter narrows ListJobs queries.
type ListFilter struct {
	ProfileID string
	Status    JobStatus
	Limit     int
	Offset    int
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Normalize clamps paging values into the supported range.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
