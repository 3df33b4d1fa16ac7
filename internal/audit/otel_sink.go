package audit

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"auth-session-engine/internal/audit/domain"
)

// OTelSink emits audit events as OpenTelemetry log records, so the same
// stream that lands in Postgres is queryable next to traces in the
// collector backend.
type OTelSink struct {
	logger otellog.Logger
}

// NewOTelSink returns a sink backed by the provider, or nil when the
// provider is nil, which disables the sink.
func NewOTelSink(provider *sdklog.LoggerProvider) *OTelSink {
	if provider == nil {
		return nil
	}
	return &OTelSink{logger: provider.Logger("auth-session-engine.audit")}
}

// Write converts the event into a log record and emits it. Emission is
// asynchronous inside the SDK's batch processor, so this never blocks on the
// collector.
func (s *OTelSink) Write(ctx context.Context, e domain.Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	rec := otellog.Record{}
	if e.OccurredAt.IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	} else {
		rec.SetTimestamp(e.OccurredAt)
	}
	rec.SetBody(otellog.StringValue(e.Action))
	if e.ID != "" {
		rec.AddAttributes(otellog.String("event_id", e.ID))
	}
	if e.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", e.UserID))
	}
	if e.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", e.SessionID))
	}
	if e.Outcome != "" {
		rec.AddAttributes(otellog.String("outcome", e.Outcome))
	}
	if e.Reason != "" {
		rec.AddAttributes(otellog.String("reason", e.Reason))
	}
	if e.IP != "" {
		rec.AddAttributes(otellog.String("ip", e.IP))
	}
	for k, v := range e.Metadata {
		rec.AddAttributes(otellog.String("meta."+k, v))
	}
	s.logger.Emit(ctx, rec)
	return nil
}
