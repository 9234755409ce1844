package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// maxSQLLength caps the SQL text in debug logs; longer statements get
// their middle elided.
const maxSQLLength = 200

// slogGormLogger adapts slog to GORM's logger.Interface. Every query runs
// through Trace; level filtering is delegated to slog so the SQL
// formatting callback never fires when Debug output is discarded.
type slogGormLogger struct{}

// LogMode is a no-op; level filtering is handled by slog.
func (l slogGormLogger) LogMode(logger.LogLevel) logger.Interface { return l }

func (l slogGormLogger) Info(_ context.Context, msg string, args ...any) {
	slog.Info(fmt.Sprintf(msg, args...))
}

func (l slogGormLogger) Warn(_ context.Context, msg string, args ...any) {
	slog.Warn(fmt.Sprintf(msg, args...))
}

func (l slogGormLogger) Error(_ context.Context, msg string, args ...any) {
	slog.Error(fmt.Sprintf(msg, args...))
}

// Trace reports finished SQL operations. ErrRecordNotFound is the normal
// "no rows" outcome of FindOne and stays at Debug with successful
// queries; anything else logs at Error.
func (l slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		sql, rows := fc()
		slog.Error("gorm query error",
			slog.String("sql", elideSQL(sql)),
			slog.Int64("rows", rows),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
		return
	}

	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}

	sql, rows := fc()
	slog.Debug("gorm query",
		slog.String("sql", elideSQL(sql)),
		slog.Int64("rows", rows),
		slog.Duration("duration", elapsed),
	)
}

func elideSQL(sql string) string {
	if len(sql) <= maxSQLLength {
		return sql
	}
	half := (maxSQLLength - 3) / 2
	return sql[:half] + "..." + sql[len(sql)-half:]
}
