// logger.go - Structured logging for the mint: console, optional log file and audit trail.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a zerolog.Logger that also owns its output files.
type Logger struct {
	zerolog.Logger

	file  *os.File
	audit *os.File
	trail zerolog.Logger
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	}
	return zerolog.InfoLevel
}

// New creates a logger writing human-readable lines to stdout, JSON lines to
// logFile and warnings plus audit events to auditFile. Empty paths disable
// the corresponding output.
func New(level, logFile, auditFile string) (*Logger, error) {
	return newLogger(os.Stdout, level, logFile, auditFile)
}

func newLogger(console io.Writer, level, logFile, auditFile string) (*Logger, error) {
	l := &Logger{trail: zerolog.Nop()}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.DateTime}}

	if logFile != "" {
		f, err := openAppend(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = f
		writers = append(writers, f)
	}
	if auditFile != "" {
		f, err := openAppend(auditFile)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		l.audit = f
		l.trail = zerolog.New(f).With().Timestamp().Logger()
		writers = append(writers, warnAndAbove{f})
	}

	l.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(level)).
		With().Timestamp().Logger()
	return l, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
}

// warnAndAbove forwards only WARN and higher events.
type warnAndAbove struct {
	w io.Writer
}

func (a warnAndAbove) Write(p []byte) (int, error) {
	return len(p), nil
}

func (a warnAndAbove) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel || level == zerolog.NoLevel {
		return len(p), nil
	}
	return a.w.Write(p)
}

// Audit records a security-relevant event in the audit file, regardless of
// the configured level.
func (l *Logger) Audit(event string, details map[string]interface{}) {
	l.trail.Log().Str("audit", event).Fields(details).Send()
}

// Close closes the log and audit files.
func (l *Logger) Close() error {
	var first error
	for _, f := range []*os.File{l.file, l.audit} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
