// Package logger gives the core a structured logging seam instead of the
// teacher's package-level infof/debugf writing straight to stdout (see
// spec.md §9 "Global state" — ambient output is exactly the kind of thing
// that should be threaded explicitly instead).
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the interface every component that reports progress takes,
// modeled on make-os-kit/pkgs/logger's Logger.
type Logger interface {
	SetToDebug()
	SetToInfo()
	SetToError()
	Module(ns string) Logger
	Debug(msg string, keyValues ...interface{})
	Info(msg string, keyValues ...interface{})
	Warn(msg string, keyValues ...interface{})
	Error(msg string, keyValues ...interface{})
	Fatal(msg string, keyValues ...interface{})
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds a logrus-backed Logger writing to stderr, matching the
// teacher's convention of reserving stdout for porcelain output.
func New() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// FromVerbosity maps the teacher's -v/-q countFlag convention onto a level:
// 0 or less = errors only, 1 = info, 2+ = debug.
func FromVerbosity(verbose int) Logger {
	l := New().(*logrusLogger)
	switch {
	case verbose <= 0:
		l.entry.Logger.SetLevel(logrus.ErrorLevel)
	case verbose == 1:
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	default:
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	}
	return l
}

func (l *logrusLogger) SetToDebug() { l.entry.Logger.SetLevel(logrus.DebugLevel) }
func (l *logrusLogger) SetToInfo()  { l.entry.Logger.SetLevel(logrus.InfoLevel) }
func (l *logrusLogger) SetToError() { l.entry.Logger.SetLevel(logrus.ErrorLevel) }

func (l *logrusLogger) Module(ns string) Logger {
	return &logrusLogger{entry: l.entry.WithField("module", ns)}
}

func fields(keyValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		f[key] = keyValues[i+1]
	}
	return f
}

func (l *logrusLogger) Debug(msg string, kv ...interface{}) { l.entry.WithFields(fields(kv)).Debug(msg) }
func (l *logrusLogger) Info(msg string, kv ...interface{})  { l.entry.WithFields(fields(kv)).Info(msg) }
func (l *logrusLogger) Warn(msg string, kv ...interface{})  { l.entry.WithFields(fields(kv)).Warn(msg) }
func (l *logrusLogger) Error(msg string, kv ...interface{}) { l.entry.WithFields(fields(kv)).Error(msg) }
func (l *logrusLogger) Fatal(msg string, kv ...interface{}) { l.entry.WithFields(fields(kv)).Fatal(msg) }

// Nop returns a Logger that discards everything, for tests that don't care
// about log output.
func Nop() Logger {
	l := logrus.New()
	l.SetOutput(nopWriter{})
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
