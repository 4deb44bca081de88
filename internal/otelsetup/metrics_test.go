package otelsetup

import (
	"context"
	"testing"
)

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: true, Exporter: "none"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.IngressDuration == nil || m.IngressRejects == nil {
		t.Fatal("expected non-nil ingress instruments")
	}
	if m.DispatchDuration == nil || m.DispatchTotal == nil || m.DiscussRoundsTotal == nil {
		t.Fatal("expected non-nil coordinator instruments")
	}
	if m.RuntimePoolSize == nil || m.RuntimeEvictions == nil {
		t.Fatal("expected non-nil runtime pool instruments")
	}
}

func TestMetricsRecordWithoutPanicking(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: true, Exporter: "none"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.IngressDuration.Record(ctx, 0.05)
	m.IngressRejects.Add(ctx, 1)
	m.DispatchDuration.Record(ctx, 0.2)
	m.DispatchTotal.Add(ctx, 1)
	m.DiscussRoundsTotal.Add(ctx, 3)
	m.RuntimePoolSize.Add(ctx, 1)
	m.RuntimeEvictions.Add(ctx, 1)
}
