package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetrics_RecordLogin(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(provider)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecordLogin(ctx, "success")
	m.RecordLogin(ctx, "success")
	m.RecordLogin(ctx, "failure")
	m.RecordLockout(ctx)
	m.RecordVersionBump(ctx, "global")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	counts := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, metrics := range scope.Metrics {
			sum, ok := metrics.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				counts[metrics.Name] += dp.Value
			}
		}
	}

	if counts["auth.logins"] != 3 {
		t.Errorf("auth.logins = %d, want 3", counts["auth.logins"])
	}
	if counts["auth.lockouts"] != 1 {
		t.Errorf("auth.lockouts = %d, want 1", counts["auth.lockouts"])
	}
	if counts["auth.breach_version_bumps"] != 1 {
		t.Errorf("auth.breach_version_bumps = %d, want 1", counts["auth.breach_version_bumps"])
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	ctx := context.Background()
	var m *Metrics

	// None of these may panic without a provider.
	m.RecordLogin(ctx, "success")
	m.RecordLockout(ctx)
	m.RecordRotation(ctx)
	m.RecordReuseDetection(ctx)
	m.RecordEviction(ctx)
	m.RecordVersionBump(ctx, "user")
}
