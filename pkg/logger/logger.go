package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger with human-readable timestamps.
// Unknown levels fall back to info.
func New(level string) (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.TimeKey = "time"
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logLevel := zap.InfoLevel
	if level != "" {
		if err := logLevel.UnmarshalText([]byte(level)); err != nil {
			logLevel = zap.InfoLevel
		}
	}
	logConfig.Level = zap.NewAtomicLevelAt(logLevel)

	return logConfig.Build()
}
