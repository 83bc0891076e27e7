package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/ports"
)

// OutboxRelay publishes pending outbox rows in creation order. A failed row
// stops the cycle so ordering per partition key is preserved.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Metrics   ports.Metrics
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	_, err := r.Relay(ctx)
	return err
}

// Relay returns how many rows were published.
func (r OutboxRelay) Relay(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(r.Logger)
	metrics := application.ResolveMetrics(r.Metrics)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("activation outbox list failed",
			"event", "activation_outbox_list_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}

	published := 0
	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("activation outbox decode failed",
				"event", "activation_outbox_decode_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			metrics.OutboxRelayed(published, 1)
			return published, err
		}

		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("activation outbox publish failed",
				"event", "activation_outbox_publish_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", event.EventID,
				"topic", topic,
				"error", err.Error(),
			)
			metrics.OutboxRelayed(published, 1)
			return published, err
		}

		now := time.Now().UTC()
		if r.Clock != nil {
			now = r.Clock.Now().UTC()
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("activation outbox mark published failed",
				"event", "activation_outbox_mark_published_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			metrics.OutboxRelayed(published, 1)
			return published, err
		}
		published++
	}

	if published > 0 {
		metrics.OutboxRelayed(published, 0)
		logger.Info("activation outbox relay cycle completed",
			"event", "activation_outbox_relay_completed",
			"module", application.ModuleName,
			"layer", "worker",
			"published_count", published,
		)
	}
	return published, nil
}
