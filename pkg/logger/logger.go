package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string
	// ServiceName is attached to every log line
	ServiceName string
	// Development enables console encoding and debug level defaults
	Development bool
}

// Logger wraps zap with the small surface the services need
type Logger struct {
	zap *zap.Logger
}

var (
	global *Logger
	once   sync.Once
)

// Init initializes the global logger
func Init(cfg *Config) error {
	var err error
	once.Do(func() {
		err = initLogger(cfg)
	})
	return err
}

func initLogger(cfg *Config) error {
	if cfg == nil {
		cfg = &Config{Level: "info", ServiceName: "backend-booking"}
	}

	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "ts"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, parseErr := zapcore.ParseLevel(cfg.Level)
	if parseErr == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	z, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	if cfg.ServiceName != "" {
		z = z.With(zap.String("service", cfg.ServiceName))
	}

	global = &Logger{zap: z}
	return nil
}

// Get returns the global logger, initializing a default one if needed
func Get() *Logger {
	if global == nil {
		_ = Init(nil)
	}
	return global
}

// Sync flushes any buffered log entries
func Sync() {
	if global != nil {
		_ = global.zap.Sync()
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, fields...)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, fields...)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, fields ...zap.Field) {
	l.zap.Fatal(msg, fields...)
}
