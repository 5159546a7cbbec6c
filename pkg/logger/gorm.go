package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// maxSQLLength caps logged statements. Imported agreement text is bound
// into UPDATE statements and would otherwise flood the log.
const maxSQLLength = 2048

// SQLLogger is the GORM logger. Statements are logged on the request's
// logger so they carry its request_id.
type SQLLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewSQLLogger returns a GORM logger at the given level. Queries slower than
// slowThreshold are logged as warnings; zero disables the check.
func NewSQLLogger(level gormlogger.LogLevel, slowThreshold time.Duration) *SQLLogger {
	return &SQLLogger{level: level, slowThreshold: slowThreshold}
}

func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Info, slog.LevelInfo, msg, data)
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Warn, slog.LevelWarn, msg, data)
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Error, slog.LevelError, msg, data)
}

func (l *SQLLogger) printf(ctx context.Context, min gormlogger.LogLevel, level slog.Level, msg string, data []interface{}) {
	if l.level < min {
		return
	}
	l.from(ctx).Log(ctx, level, fmt.Sprintf(msg, data...))
}

func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	// Lookups by id routinely miss; the services turn those into 404s.
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold

	var (
		level slog.Level
		msg   string
	)
	switch {
	case failed && l.level >= gormlogger.Error:
		level, msg = slog.LevelError, "query failed"
	case slow && l.level >= gormlogger.Warn:
		level, msg = slog.LevelWarn, "slow query"
	case l.level >= gormlogger.Info:
		level, msg = slog.LevelDebug, "query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []any{
		slog.String("sql", truncateSQL(sql)),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if failed {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.from(ctx).Log(ctx, level, msg, attrs...)
}

func (l *SQLLogger) from(ctx context.Context) *slog.Logger {
	return FromContext(ctx).With(slog.String("component", "gorm"))
}

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLength {
		return sql
	}
	return fmt.Sprintf("%s... (%d bytes)", sql[:maxSQLLength], len(sql))
}
