package audit

import (
	"context"

	"go.uber.org/zap"

	"auth-session-engine/internal/audit/domain"
)

// ZapSink writes each event as one structured log line.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink returns a sink logging events at info level.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Write(_ context.Context, e domain.Event) error {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.Time("occurred_at", e.OccurredAt),
		zap.String("action", e.Action),
	}
	if e.UserID != "" {
		fields = append(fields, zap.String("user_id", e.UserID))
	}
	if e.SessionID != "" {
		fields = append(fields, zap.String("session_id", e.SessionID))
	}
	if e.Outcome != "" {
		fields = append(fields, zap.String("outcome", e.Outcome))
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	if e.IP != "" {
		fields = append(fields, zap.String("ip", e.IP))
	}
	s.logger.Info("audit event", fields...)
	return nil
}
