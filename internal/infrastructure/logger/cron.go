package logger

import "github.com/robfig/cron/v3"

// CronLogger routes robfig/cron's logging into zap. cron logs every wake-up
// at info, which is demoted to debug here.
func (l *Logger) CronLogger() cron.Logger {
	return cronLogger{l: l}
}

type cronLogger struct {
	l *Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
