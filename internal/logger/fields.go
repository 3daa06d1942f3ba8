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

	// FieldJobID is the exchange job ID
	FieldJobID = "job_id"

	// FieldCompanyID is the company that owns the job or request
	FieldCompanyID = "company_id"

	// FieldExchangeType is the document type: catalog, price, stock-balance
	FieldExchangeType = "exchange_type"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldWorker identifies the worker holding a job lease
	FieldWorker = "worker"

	// FieldUserID is the session user ID
	FieldUserID = "user_id"
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

	// FieldAttempt is the delivery attempt number of a job
	FieldAttempt = "attempt"

	// FieldFailed is the number of failed items
	FieldFailed = "failed"
)
