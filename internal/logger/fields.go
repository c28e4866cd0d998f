package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the scoring job ID
	FieldJobID = "job_id"

	// FieldProfileID is the profile being scored
	FieldProfileID = "profile_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSource is the profile source identifier
	FieldSource = "source"

	// FieldProvider is the LLM provider name
	FieldProvider = "provider"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldAttempt is the 1-based LLM call number within one execution
	FieldAttempt = "attempt"

	// FieldErrorKind is the classified failure kind
	FieldErrorKind = "error_kind"

	// FieldTokens is the number of tokens consumed
	FieldTokens = "tokens"
)
