package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
	"fieldops/contexts/field-marketing/activation-service/ports"
	eventsv1 "fieldops/contracts/gen/events/v1"
)

type ActivationFields struct {
	PlaceID            string
	Name               string
	Description        string
	Instructions       string
	Date               time.Time
	StartTime          entities.TimeOfDay
	EndTime            entities.TimeOfDay
	ResponsibleAgentID string
}

type CreateActivationCommand struct {
	ActorID    string
	CampaignID string
	Fields     ActivationFields
	AgentIDs   []string
}

type CreateActivationUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Policy     entities.ConflictPolicy
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

func (uc CreateActivationUseCase) Execute(ctx context.Context, cmd CreateActivationCommand) (activation entities.Activation, err error) {
	ctx, span := startSpan(ctx, "CreateActivation")
	defer func() { endSpan(span, err) }()

	now := uc.Clock.Now().UTC()
	today := uc.Clock.Today()
	activation = applyFields(entities.Activation{
		CampaignID: strings.TrimSpace(cmd.CampaignID),
		Status:     entities.ActivationStatusPlanned,
		Version:    1,
		CreatedAt:  now,
	}, cmd.Fields, cmd.AgentIDs, now)
	if !activation.ValidateBasics() {
		return entities.Activation{}, domainerrors.ErrInvalidActivationInput
	}
	// Scheduling into the past records the activation as already done.
	if activation.IsPast(today) {
		activation.Status = entities.ActivationStatusCompleted
		activation.CompletedAt = &now
	}
	activation.ActivationID, err = uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Activation{}, err
	}

	err = uc.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
		campaign, err := store.LockCampaign(ctx, activation.CampaignID)
		if err != nil {
			return err
		}
		if campaign.Status == entities.CampaignStatusCancelled {
			return domainerrors.ErrCampaignCancelled
		}
		if err := checkSchedule(ctx, store, resolvePolicy(uc.Policy), uc.Metrics, campaign, activation); err != nil {
			return err
		}
		if err := store.CreateActivation(ctx, activation); err != nil {
			return err
		}
		if err := recordState(ctx, store, uc.IDGen, entities.EntityTypeActivation, activation.ActivationID,
			"", string(activation.Status), actorOrSystem(cmd.ActorID), "created", now); err != nil {
			return err
		}
		if err := emit(ctx, store, uc.IDGen, eventsv1.EventActivationCreated, "activation_id", activation.ActivationID, now,
			activationEventData(activation)); err != nil {
			return err
		}
		aggregator := campaignAggregator{Store: store, IDGen: uc.IDGen, Now: now, Today: today, Metrics: uc.Metrics, Logger: uc.Logger}
		_, _, err = aggregator.Recompute(ctx, activation.CampaignID, cmd.ActorID)
		return err
	})
	if err != nil {
		return entities.Activation{}, err
	}

	application.ResolveLogger(uc.Logger).Info("activation created",
		"event", "activation_created",
		"module", application.ModuleName,
		"layer", "application",
		"activation_id", activation.ActivationID,
		"campaign_id", activation.CampaignID,
		"status", string(activation.Status),
		"agent_count", len(activation.AgentIDs),
	)
	return activation, nil
}

func applyFields(activation entities.Activation, fields ActivationFields, agentIDs []string, now time.Time) entities.Activation {
	activation.PlaceID = strings.TrimSpace(fields.PlaceID)
	activation.Name = strings.TrimSpace(fields.Name)
	activation.Description = strings.TrimSpace(fields.Description)
	activation.Instructions = strings.TrimSpace(fields.Instructions)
	activation.Date = entities.CivilDate(fields.Date)
	activation.StartTime = fields.StartTime
	activation.EndTime = fields.EndTime
	activation.ResponsibleAgentID = strings.TrimSpace(fields.ResponsibleAgentID)
	activation.AgentIDs = entities.NewAgentSet(agentIDs)
	activation.UpdatedAt = now
	return activation
}
