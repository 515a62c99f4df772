package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("cache", "service_pricing"),
		attribute.String("service_id", "456"),
		attribute.String("result", "hit"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "cache" && attrs[1].Key != "cache" {
		t.Fatalf("expected cache to be retained")
	}
	if attrs[0].Key != "result" && attrs[1].Key != "result" {
		t.Fatalf("expected result to be retained")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordCacheLookup(context.Background(), "service", true)
	m.RecordNotification(context.Background(), "error")
	m.RecordScrapeFetch(context.Background(), "ok")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RecordCacheLookup(context.Background(), "service", false)
}
