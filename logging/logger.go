// logging/logger.go

package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redactedValue = "[REDACTED]"

// Log starts as a no-op logger so packages and tests can log before
// InitLogger runs.
var Log = zap.NewNop()

func InitLogger(logDirPath string, level string) {
	config := zap.NewProductionConfig()

	// LOG_LEVEL wins over the configured level
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = envLevel
	}
	if level != "" {
		if parsed, err := zapcore.ParseLevel(level); err == nil {
			config.Level.SetLevel(parsed)
		}
	}

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	if logDirPath != "" {
		if err := os.MkdirAll(logDirPath, 0o755); err != nil {
			panic(err)
		}
		config.OutputPaths = append(config.OutputPaths, filepath.Join(logDirPath, "pip.log"))
		config.ErrorOutputPaths = append(config.ErrorOutputPaths, filepath.Join(logDirPath, "pip_error.log"))
	}

	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.StacktraceKey = "stacktrace"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var err error
	Log, err = config.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}

	zap.ReplaceGlobals(Log)
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

// WithContext adds context fields to the logger
func WithContext(fields ...zap.Field) *zap.Logger {
	return Log.With(fields...)
}

// Redacted logs an attribute value unless it is flagged sensitive.
func Redacted(key string, value any, sensitive bool) zap.Field {
	if sensitive {
		return zap.String(key, redactedValue)
	}
	return zap.Any(key, value)
}

// RedactBag returns a copy of values that is safe to log.
func RedactBag(values map[string]any, sensitive map[string]bool) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if sensitive[k] {
			out[k] = redactedValue
			continue
		}
		out[k] = v
	}
	return out
}

func Sync() error {
	return Log.Sync()
}
