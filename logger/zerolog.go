package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger is a Logger backed by github.com/rs/zerolog.
type ZerologLogger struct {
	logger zerolog.Logger
	level  LogLevel
}

// NewZerolog creates a zerolog instance writing to w. A nil w writes a console
// rendering to stderr.
func NewZerolog(level LogLevel, w io.Writer) Logger {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(w).With().Timestamp().Logger().Level(toZerologLevel(level))

	return &ZerologLogger{logger: zl, level: level}
}

func (l *ZerologLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *ZerologLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l *ZerologLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

func (l *ZerologLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *ZerologLogger) Fatal(msg string, keysAndValues ...any) {
	l.logger.WithLevel(zerolog.FatalLevel).Fields(keysAndValues).Msg(msg)
	os.Exit(1)
}

func (l *ZerologLogger) With(keyValues ...any) Logger {
	return &ZerologLogger{
		logger: l.logger.With().Fields(keyValues).Logger(),
		level:  l.level,
	}
}

func (l *ZerologLogger) Level() LogLevel {
	return l.level
}

// SetLevel sets the minimum level of this logger. Children created by With before the
// call keep their previous level.
func (l *ZerologLogger) SetLevel(level LogLevel) {
	l.level = level
	l.logger = l.logger.Level(toZerologLevel(level))
}

func toZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.FatalLevel
	}
}
