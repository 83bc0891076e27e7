package commands

import (
	"context"
	"log/slog"
	"strings"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
	"fieldops/contexts/field-marketing/activation-service/ports"
	eventsv1 "fieldops/contracts/gen/events/v1"
)

type EditActivationCommand struct {
	ActorID      string
	ActivationID string
	// CampaignID moves the activation when set; blank keeps the current one.
	CampaignID string
	Fields     ActivationFields
	// AgentIDs replaces the whole assigned set.
	AgentIDs []string
}

type EditActivationUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Policy     entities.ConflictPolicy
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

func (uc EditActivationUseCase) Execute(ctx context.Context, cmd EditActivationCommand) (activation entities.Activation, err error) {
	ctx, span := startSpan(ctx, "EditActivation")
	defer func() { endSpan(span, err) }()

	activationID := strings.TrimSpace(cmd.ActivationID)
	var previousCampaignID string
	err = withVersionRetry(ctx, func(ctx context.Context) error {
		return uc.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
			current, err := store.GetActivation(ctx, activationID)
			if err != nil {
				return err
			}
			if current.Status == entities.ActivationStatusCompleted {
				return domainerrors.ErrActivationNotEditable
			}

			now := uc.Clock.Now().UTC()
			today := uc.Clock.Today()
			previousCampaignID = current.CampaignID
			updated := applyFields(current, cmd.Fields, cmd.AgentIDs, now)
			if target := strings.TrimSpace(cmd.CampaignID); target != "" {
				updated.CampaignID = target
			}
			if !updated.ValidateBasics() {
				return domainerrors.ErrInvalidActivationInput
			}
			if updated.Status == entities.ActivationStatusInProgress && updated.AgentIDs.Empty() {
				return domainerrors.ErrMissingAgentsForStart
			}

			campaign, err := store.LockCampaign(ctx, updated.CampaignID)
			if err != nil {
				return err
			}
			if updated.CampaignID != previousCampaignID && campaign.Status == entities.CampaignStatusCancelled {
				return domainerrors.ErrCampaignCancelled
			}
			if err := checkSchedule(ctx, store, resolvePolicy(uc.Policy), uc.Metrics, campaign, updated); err != nil {
				return err
			}

			from := current.Status
			if updated.IsPast(today) {
				updated.Status = entities.ActivationStatusCompleted
				updated.CompletedAt = &now
			}
			if err := store.UpdateActivation(ctx, updated); err != nil {
				return err
			}
			updated.Version++

			if updated.Status != from {
				if err := recordState(ctx, store, uc.IDGen, entities.EntityTypeActivation, updated.ActivationID,
					string(from), string(updated.Status), actorOrSystem(cmd.ActorID), "rescheduled into the past", now); err != nil {
					return err
				}
			}
			if err := emit(ctx, store, uc.IDGen, eventsv1.EventActivationUpdated, "activation_id", updated.ActivationID, now,
				activationEventData(updated)); err != nil {
				return err
			}

			aggregator := campaignAggregator{Store: store, IDGen: uc.IDGen, Now: now, Today: today, Metrics: uc.Metrics, Logger: uc.Logger}
			if _, _, err := aggregator.Recompute(ctx, updated.CampaignID, cmd.ActorID); err != nil {
				return err
			}
			if previousCampaignID != updated.CampaignID {
				if _, _, err := aggregator.Recompute(ctx, previousCampaignID, cmd.ActorID); err != nil {
					return err
				}
			}
			activation = updated
			return nil
		})
	})
	if err != nil {
		return entities.Activation{}, err
	}

	application.ResolveLogger(uc.Logger).Info("activation edited",
		"event", "activation_edited",
		"module", application.ModuleName,
		"layer", "application",
		"activation_id", activation.ActivationID,
		"campaign_id", activation.CampaignID,
		"previous_campaign_id", previousCampaignID,
		"status", string(activation.Status),
		"agent_count", len(activation.AgentIDs),
	)
	return activation, nil
}
