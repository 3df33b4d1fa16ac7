package audit

import (
	"context"

	"auth-session-engine/internal/audit/domain"
)

// EventInserter is the slice of the audit repository the sink needs.
type EventInserter interface {
	Insert(ctx context.Context, e *domain.Event) error
}

// PostgresSink persists events straight to the audit_events table. Used when
// Kafka is not configured; with Kafka, persistence moves to the worker.
type PostgresSink struct {
	repo EventInserter
}

// NewPostgresSink returns a sink writing through the audit repository.
func NewPostgresSink(repo EventInserter) *PostgresSink {
	return &PostgresSink{repo: repo}
}

func (s *PostgresSink) Write(ctx context.Context, e domain.Event) error {
	return s.repo.Insert(ctx, &e)
}
