package logger

import (
	"context"
	"errors"
	"time"

	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM's SQL logging through the context logger so that
// statements carry job_id/request_id fields.
type GormLogger struct {
	logLevel                  gormlogger.LogLevel
	slowThreshold             time.Duration
	ignoreRecordNotFoundError bool
}

// NewGormLogger creates a GORM logger at the given level.
// Parameters:
//   - level: one of silent, error, warn, info.
//   - slowThreshold: queries slower than this are logged at warn; zero disables.
// Returns:
//   - *GormLogger: logger usable as gorm.Config.Logger.
func NewGormLogger(level string, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{
		logLevel:                  MapGormLogLevel(level),
		slowThreshold:             slowThreshold,
		ignoreRecordNotFoundError: true,
	}
}

// LogMode implements gormlogger.Interface.
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Info {
		l.from(ctx).Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Warn {
		l.from(ctx).Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Error {
		l.from(ctx).Errorf(msg, data...)
	}
}

// Trace implements gormlogger.Interface.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	log := l.from(ctx).WithFields(Fields{
		FieldDurationMs: elapsed.Milliseconds(),
		"rows":          rows,
		"sql":           sql,
	})

	switch {
	case err != nil && l.logLevel >= gormlogger.Error:
		if l.ignoreRecordNotFoundError && errors.Is(err, gormlogger.ErrRecordNotFound) {
			return
		}
		log.WithError(err).Error("SQL error")
	case l.slowThreshold != 0 && elapsed > l.slowThreshold && l.logLevel >= gormlogger.Warn:
		log.Warnf("SLOW SQL >= %v", l.slowThreshold)
	case l.logLevel >= gormlogger.Info:
		log.Debug("SQL query")
	}
}

func (l *GormLogger) from(ctx context.Context) *Logger {
	return FromContext(ctx).WithField(FieldComponent, "gorm")
}

// MapGormLogLevel maps a string level to a GORM log level.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
