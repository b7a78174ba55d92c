package logger

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger forwards gorm's SQL logging to a logrus entry.
type GormLogger struct {
	entry         *logrus.Entry
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger returns a gorm logger writing through the given component.
// SQL statements are only traced when logrus is at trace level.
func NewGormLogger(component string, slowThreshold time.Duration) *GormLogger {
	level := gormlogger.Warn
	if Logger.IsLevelEnabled(logrus.TraceLevel) {
		level = gormlogger.Info
	}
	return &GormLogger{
		entry:         WithComponent(component),
		level:         level,
		slowThreshold: slowThreshold,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.entry.Infof(msg, args...)
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.entry.Warnf(msg, args...)
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.entry.Errorf(msg, args...)
	}
}

func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gormlogger.ErrRecordNotFound):
		sql, rows := fc()
		l.entry.WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows}).Errorf("sql error: %v [%s]", err, sql)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.entry.WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows}).Warnf("slow sql (>%v): %s", l.slowThreshold, sql)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.entry.WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows}).Trace(sql)
	}
}
