package logger

import (
	"context"
	"time"
)

// Entry carries metric fields for one log line; the logger itself comes from
// the context at emit time, so tracing fields (job_id, company_id) are kept.
//
//	logger.With(logger.Fields{logger.FieldSize: n}).Info(ctx, "Document stored")
//	logger.Since(start).WithCounters(total, failed).Info(ctx, "Job finished")
type Entry struct {
	fields Fields
}

// With creates a new Entry with the given metric fields.
func With(fields Fields) *Entry {
	return &Entry{fields: fields}
}

// Since starts an Entry with duration_ms measured from start.
func Since(start time.Time) *Entry {
	return With(Fields{FieldDurationMs: time.Since(start).Milliseconds()})
}

// With adds more fields. The receiver is not modified.
func (e *Entry) With(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{fields: merged}
}

// WithField adds a single field.
func (e *Entry) WithField(key string, value interface{}) *Entry {
	return e.With(Fields{key: value})
}

// WithSize sets size in bytes.
func (e *Entry) WithSize(size int64) *Entry {
	return e.WithField(FieldSize, size)
}

// WithCounters sets count and failed for a batch or job outcome.
func (e *Entry) WithCounters(total, failed int) *Entry {
	return e.With(Fields{FieldCount: total, FieldFailed: failed})
}

func (e *Entry) log(ctx context.Context) *Logger {
	return FromContext(ctx).WithFields(e.fields)
}

// Debug logs at Debug level with metric fields.
func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	e.log(ctx).Debugf(format, args...)
}

// Info logs at Info level with metric fields.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	e.log(ctx).Infof(format, args...)
}

// Warn logs at Warn level with metric fields.
func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	e.log(ctx).Warnf(format, args...)
}

// Error logs at Error level with metric fields.
func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	e.log(ctx).Errorf(format, args...)
}
