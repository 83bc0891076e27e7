package commands

import (
	"context"
	"time"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	"fieldops/contexts/field-marketing/activation-service/ports"
)

// emit appends one outbox event inside the caller's transaction.
func emit(
	ctx context.Context,
	store ports.Store,
	idGen ports.IDGenerator,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) error {
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := application.NewEnvelope(ctx, eventID, eventType, partitionKeyPath, partitionKey, occurredAt, data)
	if err != nil {
		return err
	}
	return store.AppendOutbox(ctx, envelope)
}

func recordState(
	ctx context.Context,
	store ports.Store,
	idGen ports.IDGenerator,
	entityType entities.EntityType,
	entityID string,
	from string,
	to string,
	changedBy string,
	reason string,
	at time.Time,
) error {
	historyID, err := idGen.NewID(ctx)
	if err != nil {
		return err
	}
	return store.AppendState(ctx, entities.StateHistory{
		HistoryID:    historyID,
		EntityType:   entityType,
		EntityID:     entityID,
		FromState:    from,
		ToState:      to,
		ChangedBy:    changedBy,
		ChangeReason: reason,
		CreatedAt:    at,
	})
}

func activationEventData(activation entities.Activation) map[string]any {
	data := map[string]any{
		"activation_id": activation.ActivationID,
		"campaign_id":   activation.CampaignID,
		"status":        string(activation.Status),
		"date":          activation.Date.Format(entities.DateLayout),
		"agent_ids":     []string(activation.AgentIDs),
		"version":       activation.Version,
	}
	if activation.SuspensionReason != "" {
		data["suspension_reason"] = activation.SuspensionReason
	}
	return data
}
