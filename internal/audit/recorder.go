// Package audit fans engine audit events out to log, Kafka, Postgres, and
// OTLP sinks without ever blocking or failing the operation that emitted
// them.
package audit

import (
	"context"

	"auth-session-engine/internal/audit/domain"
)

// Recorder receives audit events from engine operations. Record is
// best-effort: it must not block beyond a buffered send and must not fail
// the caller.
type Recorder interface {
	Record(ctx context.Context, e domain.Event)
}

// NopRecorder discards every event. Default for tests and callers that do
// not wire an audit pipeline.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, domain.Event) {}
