package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/timmy/talentscore/internal/domain"
)

const auditContentType = "application/json"

// AuditCall is one model call made during an attempt.
type AuditCall struct {
	Attempt    int              `json:"attempt"`
	Output     string           `json:"output,omitempty"`
	ErrorKind  domain.ErrorKind `json:"error_kind,omitempty"`
	Error      string           `json:"error,omitempty"`
	TokensUsed int              `json:"tokens_used"`
	Duration   string           `json:"duration"`
}

// AuditRecord is the archived trace of one execution attempt of a job.
type AuditRecord struct {
	JobID          string                `json:"job_id"`
	ProfileID      string                `json:"profile_id"`
	RetryCount     int                   `json:"retry_count"`
	Status         domain.JobStatus      `json:"status"`
	Model          string                `json:"model,omitempty"`
	PromptSnapshot string                `json:"prompt_snapshot"`
	Calls          []AuditCall           `json:"calls"`
	Result         *domain.ScoringResult `json:"result,omitempty"`
	Error          *domain.JobError      `json:"error,omitempty"`
	TokensUsed     int                   `json:"tokens_used"`
	ArchivedAt     time.Time             `json:"archived_at"`
}

// AuditKey returns the object key for an attempt. Each retry gets its own object.
func AuditKey(jobID string, retryCount int) string {
	return fmt.Sprintf("audit/%s/%d.json", jobID, retryCount)
}

// AuditArchive writes and reads audit records in object storage.
type AuditArchive struct {
	store ObjectStorage
}

func NewAuditArchive(store ObjectStorage) *AuditArchive {
	return &AuditArchive{store: store}
}

// Write uploads the record and returns its key.
func (a *AuditArchive) Write(ctx context.Context, record *AuditRecord) (string, error) {
	if record.ArchivedAt.IsZero() {
		record.ArchivedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode audit record: %w", err)
	}

	key := AuditKey(record.JobID, record.RetryCount)
	if err := a.store.Put(ctx, key, data, auditContentType); err != nil {
		return "", err
	}
	return key, nil
}

// Read downloads and decodes the record stored at key.
func (a *AuditArchive) Read(ctx context.Context, key string) (*AuditRecord, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var record AuditRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode audit record %s: %w", key, err)
	}
	return &record, nil
}

// URL returns a link to the archived record.
func (a *AuditArchive) URL(key string) string {
	return a.store.URL(key)
}
