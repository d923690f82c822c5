package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"member-service/internal/telemetry/domain"
)

// EventCounter counts events by type and source. It implements telemetry.EventEmitter so it can
// sit in a telemetry.Fanout next to the log and Kafka emitters.
type EventCounter struct {
	counter metric.Int64Counter
}

// NewEventCounter registers the member.events counter on mp.
func NewEventCounter(mp metric.MeterProvider) (*EventCounter, error) {
	c, err := mp.Meter(instrumentationName).Int64Counter(
		"member.events",
		metric.WithDescription("Authentication and RPC events by type"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: event counter: %w", err)
	}
	return &EventCounter{counter: c}, nil
}

// Emit increments the counter for the event.
func (c *EventCounter) Emit(ctx context.Context, event *domain.Event) error {
	if c == nil || event == nil {
		return nil
	}
	c.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", event.EventType),
		attribute.String("source", event.Source),
	))
	return nil
}
