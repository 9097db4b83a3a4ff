package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes each throttle event as a structured log line. Nothing is persisted.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs through logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, event *ThrottleEvent) error {
	s.logger.Info("client throttled",
		zap.String("id", event.ID),
		zap.String("client", event.ClientKey),
		zap.String("strategy", event.Strategy),
		zap.String("method", event.Method),
		zap.String("path", event.Path),
		zap.String("request_id", event.RequestID),
		zap.Int64("limit", event.Limit),
		zap.Time("reset_at", event.ResetAt),
		zap.Time("occurred_at", event.OccurredAt),
	)

	return nil
}
