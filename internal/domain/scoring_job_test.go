package domain

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from JobStatus
		to   JobStatus
		want bool
	}{
		{JobStatusPending, JobStatusProcessing, true},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusFailed, JobStatusPending, true},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusPending, JobStatusFailed, false},
		{JobStatusCompleted, JobStatusPending, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusProcessing, false},
		{JobStatusProcessing, JobStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestNewPromptSource(t *testing.T) {
	tests := []struct {
		name       string
		templateID string
		raw        string
		wantKind   PromptSourceKind
		wantErr    bool
	}{
		{name: "template", templateID: "cto", wantKind: PromptSourceTemplate},
		{name: "raw", raw: "Score this CTO candidate", wantKind: PromptSourceRaw},
		{name: "both", templateID: "cto", raw: "text", wantErr: true},
		{name: "neither", wantErr: true},
		{name: "whitespace only", templateID: "  ", raw: "\n\t", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewPromptSource(tt.templateID, tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if src.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", src.Kind, tt.wantKind)
			}
		})
	}
}

func TestJobUpdateValidate(t *testing.T) {
	result := &ScoringResult{OverallScore: 80}
	jobErr := &JobError{Kind: ErrorKindTimeout, Message: "deadline exceeded"}

	tests := []struct {
		name    string
		next    JobStatus
		update  JobUpdate
		wantErr bool
	}{
		{name: "completed with result", next: JobStatusCompleted, update: JobUpdate{Result: result}},
		{name: "completed without result", next: JobStatusCompleted, wantErr: true},
		{name: "completed with error", next: JobStatusCompleted, update: JobUpdate{Result: result, Error: jobErr}, wantErr: true},
		{name: "failed with error", next: JobStatusFailed, update: JobUpdate{Error: jobErr}},
		{name: "failed without error", next: JobStatusFailed, wantErr: true},
		{name: "processing with outcome", next: JobStatusProcessing, update: JobUpdate{Result: result}, wantErr: true},
		{name: "pending retry", next: JobStatusPending, update: JobUpdate{IncrementRetry: true}},
		{name: "retry increment on claim", next: JobStatusProcessing, update: JobUpdate{IncrementRetry: true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.update.Validate(tt.next)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConflictErrorMatchesSentinel(t *testing.T) {
	var err error = &ConflictError{JobID: "j1", Expected: JobStatusPending, Actual: JobStatusProcessing}

	if !errors.Is(err, ErrConflict) {
		t.Error("expected ConflictError to match ErrConflict")
	}
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.Actual != JobStatusProcessing {
		t.Errorf("unexpected conflict details: %+v", ce)
	}
}

func TestListFilterNormalize(t *testing.T) {
	f := ListFilter{Limit: 0, Offset: -3}.Normalize()
	if f.Limit != DefaultListLimit || f.Offset != 0 {
		t.Errorf("unexpected defaults: %+v", f)
	}
	f = ListFilter{Limit: 500}.Normalize()
	if f.Limit != MaxListLimit {
		t.Errorf("limit = %d, want %d", f.Limit, MaxListLimit)
	}
}

func TestScoringResultColumn(t *testing.T) {
	in := ScoringResult{
		Role:            "cto",
		OverallScore:    72.5,
		Fit:             true,
		DimensionScores: map[string]float64{"leadership": 80},
	}
	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	var out ScoringResult
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if out.OverallScore != 72.5 || out.DimensionScores["leadership"] != 80 {
		t.Errorf("unexpected scan result: %+v", out)
	}

	if err := out.Scan(42); err == nil {
		t.Error("expected error scanning unsupported type")
	}
}

func TestScoringJobCloneIsDeep(t *testing.T) {
	job := &ScoringJob{
		ID:     "j1",
		Result: &ScoringResult{Strengths: []string{"a"}},
		Error:  &JobError{Kind: ErrorKindProvider},
	}
	cp := job.Clone()
	cp.Result.Strengths[0] = "b"
	cp.Error.Kind = ErrorKindAuth

	if job.Result.Strengths[0] != "a" || job.Error.Kind != ErrorKindProvider {
		t.Error("clone shares state with original")
	}
}
