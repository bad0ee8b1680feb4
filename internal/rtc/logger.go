package rtc

import (
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// loggerFactory bridges pion's leveled logging onto slog so ICE and DTLS
// internals land in the same handler as the rest of the client. Pion is
// chatty at info level, so everything below warn maps to debug.
type loggerFactory struct {
	log *slog.Logger
}

func (f *loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{log: f.log.With("scope", scope)}
}

type leveledLogger struct {
	log *slog.Logger
}

func (l *leveledLogger) Trace(msg string) { l.log.Debug(msg) }
func (l *leveledLogger) Tracef(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *leveledLogger) Debug(msg string) { l.log.Debug(msg) }
func (l *leveledLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *leveledLogger) Info(msg string) { l.log.Debug(msg) }
func (l *leveledLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *leveledLogger) Warn(msg string) { l.log.Warn(msg) }
func (l *leveledLogger) Warnf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *leveledLogger) Error(msg string) { l.log.Error(msg) }
func (l *leveledLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}
