// Package logger provides a thread-safe, levelled logger backed by logrus.
package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"reflect"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level represents a logging verbosity level.
type Level int

const (
	// LevelDebug emits all messages.
	LevelDebug Level = iota
	// LevelInfo emits INFO, WARN and ERROR messages.
	LevelInfo
	// LevelWarn emits WARN and ERROR messages.
	LevelWarn
	// LevelError emits only ERROR messages.
	LevelError
)

func (l Level) logrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLevel maps "debug", "info", "warn" or "error" (any case) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("logger: unknown level %q", s)
	}
}

// Logger is a structured, levelled logger.
//
// Thread-safety: logrus serialises writes to the output with its own mutex
// and stores the level atomically, so SetLevel may be called concurrently
// with logging methods.  Loggers derived with With share the parent's
// output and level.
type Logger struct {
	base  *logrus.Logger
	entry *logrus.Entry
}

// New creates a Logger that writes to stderr at the given minimum level.
func New(level Level) *Logger {
	return NewWithOutput(os.Stderr, level)
}

// NewWithOutput creates a Logger that writes to w.
func NewWithOutput(w io.Writer, level Level) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(level.logrus())
	base.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			// logrus reports the wrapper method in this package; use its caller.
			if c, ok := callerFrame(); ok {
				f = &c
			}
			return fmt.Sprintf("%s()", path.Base(f.Function)), fmt.Sprintf("%s:%d", path.Base(f.File), f.Line)
		},
	}
	return &Logger{base: base, entry: logrus.NewEntry(base)}
}

var (
	loggerPkg = funcPackage(runtime.FuncForPC(reflect.ValueOf(funcPackage).Pointer()).Name())
	logrusPkg = funcPackage(runtime.FuncForPC(reflect.ValueOf(logrus.New).Pointer()).Name())
)

// funcPackage returns the import path part of a fully qualified function
// name such as "github.com/sirupsen/logrus.(*Entry).Log".
func funcPackage(name string) string {
	slash := strings.LastIndex(name, "/")
	if dot := strings.Index(name[slash+1:], "."); dot >= 0 {
		return name[:slash+1+dot]
	}
	return name
}

// callerFrame returns the first stack frame outside logrus, this package and
// the runtime.
func callerFrame() (runtime.Frame, bool) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		switch funcPackage(f.Function) {
		case loggerPkg, logrusPkg, "runtime", "":
		default:
			return f, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWithOutput(io.Discard, LevelError)
}

// SetLevel changes the minimum log level at runtime.  Safe for concurrent use.
func (l *Logger) SetLevel(level Level) {
	l.base.SetLevel(level.logrus())
}

// SetReportCaller toggles the file:line of the caller in every entry.
func (l *Logger) SetReportCaller(on bool) {
	l.base.SetReportCaller(on)
}

// With returns a child Logger that adds key=value to every entry.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{base: l.base, entry: l.entry.WithField(key, value)}
}

// Info logs a message at INFO level.
func (l *Logger) Info(msg string) { l.entry.Info(msg) }

// Infof logs a formatted message at INFO level.
func (l *Logger) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

// Warn logs a message at WARN level.
func (l *Logger) Warn(msg string) { l.entry.Warn(msg) }

// Warnf logs a formatted message at WARN level.
func (l *Logger) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

// Error logs a message at ERROR level.
func (l *Logger) Error(msg string) { l.entry.Error(msg) }

// Errorf logs a formatted message at ERROR level.
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// Debug logs a message at DEBUG level.
func (l *Logger) Debug(msg string) { l.entry.Debug(msg) }

// Debugf logs a formatted message at DEBUG level.
func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

// Fatalf logs at FATAL level and exits the process with status 1.
func (l *Logger) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }
