package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	level string
	sugar *zap.SugaredLogger
}

// New builds a zap backed logger. Production gets JSON output, everything
// else the colored console encoder.
func New(level string, production bool) *Logger {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		zl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(zl)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		base = zap.NewExample()
	}

	return &Logger{
		level: level,
		sugar: base.Sugar(),
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{level: "info", sugar: zap.NewNop().Sugar()}
}

func (l *Logger) Level() string {
	return l.level
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{level: l.level, sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.sugar.Infof(msg, args...)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.sugar.Debugf(msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.sugar.Warnf(msg, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.sugar.Errorf(msg, args...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.sugar.Errorf(msg, args...)
	l.Sync()
	os.Exit(1)
}

func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// KeyValue adapts the logger to clients that log a message plus key/value
// pairs, such as retryablehttp. Their info output is demoted to debug.
func (l *Logger) KeyValue() KeyValueLogger {
	return KeyValueLogger{l: l}
}

type KeyValueLogger struct {
	l *Logger
}

func (k KeyValueLogger) Error(msg string, keysAndValues ...interface{}) {
	k.l.With(keysAndValues...).Error("%s", msg)
}

func (k KeyValueLogger) Info(msg string, keysAndValues ...interface{}) {
	k.l.With(keysAndValues...).Debug("%s", msg)
}

func (k KeyValueLogger) Debug(msg string, keysAndValues ...interface{}) {
	k.l.With(keysAndValues...).Debug("%s", msg)
}

func (k KeyValueLogger) Warn(msg string, keysAndValues ...interface{}) {
	k.l.With(keysAndValues...).Warn("%s", msg)
}
