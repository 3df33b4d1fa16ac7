// Package telemetry carries the engine's domain metrics.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "auth-session-engine"

// Metrics bundles the engine's counters. All methods are safe on a nil
// receiver so callers can run without a meter provider.
type Metrics struct {
	logins          metric.Int64Counter
	lockouts        metric.Int64Counter
	rotations       metric.Int64Counter
	reuseDetections metric.Int64Counter
	evictions       metric.Int64Counter
	versionBumps    metric.Int64Counter
}

// NewMetrics registers the engine's counters on the given provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)
	var (
		m   Metrics
		err error
	)
	if m.logins, err = meter.Int64Counter("auth.logins",
		metric.WithDescription("Login attempts by outcome")); err != nil {
		return nil, err
	}
	if m.lockouts, err = meter.Int64Counter("auth.lockouts",
		metric.WithDescription("Login attempts rejected by an active lockout")); err != nil {
		return nil, err
	}
	if m.rotations, err = meter.Int64Counter("auth.refresh_rotations",
		metric.WithDescription("Successful refresh token rotations")); err != nil {
		return nil, err
	}
	if m.reuseDetections, err = meter.Int64Counter("auth.token_reuse_detections",
		metric.WithDescription("Replays of already-rotated refresh tokens")); err != nil {
		return nil, err
	}
	if m.evictions, err = meter.Int64Counter("auth.session_evictions",
		metric.WithDescription("Sessions evicted by the per-user cap")); err != nil {
		return nil, err
	}
	if m.versionBumps, err = meter.Int64Counter("auth.breach_version_bumps",
		metric.WithDescription("Breach version bumps by scope kind")); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordLogin counts a login attempt with its outcome (success or failure).
func (m *Metrics) RecordLogin(ctx context.Context, outcome string) {
	if m == nil || m.logins == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordLockout counts a login attempt rejected by an active lockout.
func (m *Metrics) RecordLockout(ctx context.Context) {
	if m == nil || m.lockouts == nil {
		return
	}
	m.lockouts.Add(ctx, 1)
}

// RecordRotation counts a successful refresh rotation.
func (m *Metrics) RecordRotation(ctx context.Context) {
	if m == nil || m.rotations == nil {
		return
	}
	m.rotations.Add(ctx, 1)
}

// RecordReuseDetection counts a theft signal.
func (m *Metrics) RecordReuseDetection(ctx context.Context) {
	if m == nil || m.reuseDetections == nil {
		return
	}
	m.reuseDetections.Add(ctx, 1)
}

// RecordEviction counts a session evicted at the cap.
func (m *Metrics) RecordEviction(ctx context.Context) {
	if m == nil || m.evictions == nil {
		return
	}
	m.evictions.Add(ctx, 1)
}

// RecordVersionBump counts a breach version bump. kind is "global" or "user".
func (m *Metrics) RecordVersionBump(ctx context.Context, kind string) {
	if m == nil || m.versionBumps == nil {
		return
	}
	m.versionBumps.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", kind)))
}
