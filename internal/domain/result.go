package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// ScoringResult is the structured evaluation parsed from the model output.
type ScoringResult struct {
	Role            string             `json:"role,omitempty"`
	OverallScore    float64            `json:"overall_score"`
	Fit             bool               `json:"fit"`
	DimensionScores map[string]float64 `json:"dimension_scores,omitempty"`
	Strengths       []string           `json:"strengths,omitempty"`
	Concerns        []string           `json:"concerns,omitempty"`
	Summary         string             `json:"summary,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *ScoringResult) Clone() *ScoringResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.DimensionScores != nil {
		out.DimensionScores = make(map[string]float64, len(r.DimensionScores))
		for k, v := range r.DimensionScores {
			out.DimensionScores[k] = v
		}
	}
	out.Strengths = append([]string(nil), r.Strengths...)
	out.Concerns = append([]string(nil), r.Concerns...)
	return &out
}

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the result.
//   - error: non-nil if marshaling fails.
func (r ScoringResult) Value() (driver.Value, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (r *ScoringResult) Scan(value interface{}) error {
	if value == nil {
		*r = ScoringResult{}
		return nil
	}
	b, err := columnBytes(value)
	if err != nil {
		return errors.New("failed to scan ScoringResult")
	}
	return json.Unmarshal(b, r)
}

// ErrorKind classifies why a job failed.
type ErrorKind string

const (
	ErrorKindAuth              ErrorKind = "auth_error"
	ErrorKindRateLimited       ErrorKind = "rate_limited"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindMalformedResponse ErrorKind = "malformed_response"
	ErrorKindProvider          ErrorKind = "provider_error"
	ErrorKindResolution        ErrorKind = "resolution_error"
	ErrorKindPersistence       ErrorKind = "persistence_error"
	ErrorKindAbandoned         ErrorKind = "abandoned"
)

// JobError is the structured failure stored on a failed job.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Value implements the driver.Valuer interface for database serialization.
func (e JobError) Value() (driver.Value, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (e *JobError) Scan(value interface{}) error {
	if value == nil {
		*e = JobError{}
		return nil
	}
	b, err := columnBytes(value)
	if err != nil {
		return errors.New("failed to scan JobError")
	}
	return json.Unmarshal(b, e)
}

func columnBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("unsupported column type")
	}
}
