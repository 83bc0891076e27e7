package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	"fieldops/contexts/field-marketing/activation-service/ports"
)

const (
	FeedbackIssuedTopic          = "feedback.issued"
	defaultFeedbackConsumerGroup = "activation-service-feedback-issued-cg"
)

// FeedbackIssuedConsumer keeps the local feedback markers that guard campaign
// deletion in step with the feedback service.
type FeedbackIssuedConsumer struct {
	Subscriber    ports.EventSubscriber
	Feedback      ports.FeedbackRecorder
	Activations   ports.ActivationRepository
	Clock         ports.Clock
	ConsumerGroup string
	Disabled      bool
	Logger        *slog.Logger
}

func (c FeedbackIssuedConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("feedback.issued consumer disabled by feature flag",
			"event", "feedback_issued_consumer_disabled",
			"module", application.ModuleName,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultFeedbackConsumerGroup
	}
	return c.Subscriber.Subscribe(ctx, FeedbackIssuedTopic, group, c.Handle)
}

func (c FeedbackIssuedConsumer) Handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)

	var payload struct {
		FeedbackID   string `json:"feedback_id"`
		CampaignID   string `json:"campaign_id"`
		ActivationID string `json:"activation_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode feedback.issued payload: %w", err)
	}
	marker := entities.FeedbackMarker{
		FeedbackID:   strings.TrimSpace(payload.FeedbackID),
		CampaignID:   strings.TrimSpace(payload.CampaignID),
		ActivationID: strings.TrimSpace(payload.ActivationID),
		IssuedAt:     event.OccurredAt.UTC(),
	}
	if marker.FeedbackID == "" {
		marker.FeedbackID = event.EventID
	}
	if marker.CampaignID == "" && marker.ActivationID == "" {
		return fmt.Errorf("feedback.issued payload missing campaign_id and activation_id")
	}
	if marker.CampaignID == "" {
		activation, err := c.Activations.GetActivation(ctx, marker.ActivationID)
		if err != nil {
			return fmt.Errorf("resolve activation %s: %w", marker.ActivationID, err)
		}
		marker.CampaignID = activation.CampaignID
	}
	if marker.IssuedAt.IsZero() {
		marker.IssuedAt = time.Now().UTC()
		if c.Clock != nil {
			marker.IssuedAt = c.Clock.Now().UTC()
		}
	}

	recorded, err := c.Feedback.RecordFeedback(ctx, marker)
	if err != nil {
		logger.Error("feedback marker write failed",
			"event", "feedback_marker_write_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"campaign_id", marker.CampaignID,
			"error", err.Error(),
		)
		return err
	}
	if !recorded {
		logger.Debug("feedback.issued already processed",
			"event", "feedback_issued_replayed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}
	logger.Info("feedback marker recorded",
		"event", "feedback_marker_recorded",
		"module", application.ModuleName,
		"layer", "worker",
		"feedback_id", marker.FeedbackID,
		"campaign_id", marker.CampaignID,
		"activation_id", marker.ActivationID,
	)
	return nil
}
