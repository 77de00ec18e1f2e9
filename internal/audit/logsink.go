package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogSink пишет события в структурный лог. Используется, когда БД не настроена.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

func (s *LogSink) WriteBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		s.logger.Info("audit",
			zap.String("id", e.ID),
			zap.String("trace_id", e.TraceID),
			zap.String("kind", e.Kind),
			zap.String("action", e.Action),
			zap.String("entity_id", e.EntityID),
			zap.String("actor_id", e.ActorID),
			zap.String("status", e.Status),
			zap.String("error", e.Error),
			zap.Int64("duration_ms", e.DurationMs),
			zap.Any("payload", e.Payload),
			zap.Time("timestamp", e.Timestamp),
		)
	}
	return nil
}
