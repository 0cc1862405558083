// Package log wraps zap behind a small structured logging interface so
// the rest of the agent never imports zap directly.
package log

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Log interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	With(fields ...Field) Log
	Level() Level
}

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

var _ Log = (*Logger)(nil)

type Logger struct {
	zl    *zap.Logger
	level Level
}

// New builds a JSON logger writing to stderr at the given level.
func New(level Level) *Logger {
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(toZapLevel(level)),
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}

	zl, err := cfg.Build()
	if err != nil {
		panic(err)
	}

	return &Logger{zl: zl, level: level}
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *Logger {
	return &Logger{zl: zap.NewNop(), level: LevelFatal}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.zl.Debug(msg, toZapFields(fields)...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.zl.Info(msg, toZapFields(fields)...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.zl.Warn(msg, toZapFields(fields)...) }
func (l *Logger) Error(msg string, fields ...Field) { l.zl.Error(msg, toZapFields(fields)...) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.zl.Fatal(msg, toZapFields(fields)...) }

func (l *Logger) With(fields ...Field) Log {
	return &Logger{zl: l.zl.With(toZapFields(fields)...), level: l.level}
}

func (l *Logger) Level() Level {
	return l.level
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zap.DebugLevel
	case LevelWarn:
		return zap.WarnLevel
	case LevelError:
		return zap.ErrorLevel
	case LevelFatal:
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}
