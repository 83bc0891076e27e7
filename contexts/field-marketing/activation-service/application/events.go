package application

import (
	"context"
	"encoding/json"
	"time"

	"fieldops/contexts/field-marketing/activation-service/ports"

	"go.opentelemetry.io/otel/trace"
)

const SourceService = "activation-service"

// NewEnvelope wraps data in a schema v1 envelope. The trace id follows the
// active span when there is one.
func NewEnvelope(
	ctx context.Context,
	eventID string,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	traceID := eventID
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		traceID = sc.TraceID().String()
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    SourceService,
		TraceID:          traceID,
		SchemaVersion:    1,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		Data:             payload,
	}, nil
}
