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

type TransitionActivationCommand struct {
	ActivationID string
	Target       entities.ActivationStatus
	// ExpectedFrom pins the source status, so "resume" cannot start a
	// planned activation. Empty accepts any legal source.
	ExpectedFrom entities.ActivationStatus
	// Action is the caller's name for the request, used in error messages.
	Action       string
	Reason       string
	ActorID      string
	// ActorAgentID, when set, must be one of the activation's agents.
	ActorAgentID string
}

type TransitionActivationUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

func (uc TransitionActivationUseCase) Execute(
	ctx context.Context,
	cmd TransitionActivationCommand,
) (activation entities.Activation, err error) {
	ctx, span := startSpan(ctx, "TransitionActivation")
	defer func() { endSpan(span, err) }()

	activationID := strings.TrimSpace(cmd.ActivationID)
	if !entities.IsSupportedActivationStatus(cmd.Target) {
		return entities.Activation{}, &domainerrors.TransitionError{To: string(cmd.Target)}
	}

	var from entities.ActivationStatus
	err = withVersionRetry(ctx, func(ctx context.Context) error {
		return uc.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
			current, err := store.GetActivation(ctx, activationID)
			if err != nil {
				return err
			}
			from = current.Status
			if cmd.ExpectedFrom != "" && cmd.ExpectedFrom != from {
				return &domainerrors.TransitionError{
					From:     string(from),
					To:       string(cmd.Target),
					Action:   strings.TrimSpace(cmd.Action),
					Expected: string(cmd.ExpectedFrom),
				}
			}
			if !entities.CanTransition(from, cmd.Target) {
				return &domainerrors.TransitionError{From: string(from), To: string(cmd.Target)}
			}
			starting := cmd.Target == entities.ActivationStatusInProgress && from == entities.ActivationStatusPlanned
			if starting && current.AgentIDs.Empty() {
				return domainerrors.ErrMissingAgentsForStart
			}
			if actor := strings.TrimSpace(cmd.ActorAgentID); actor != "" && !current.AgentIDs.Contains(actor) {
				return domainerrors.ErrAgentNotAssigned
			}

			now := uc.Clock.Now().UTC()
			today := uc.Clock.Today()
			eventType := ""
			reason := ""
			switch cmd.Target {
			case entities.ActivationStatusInProgress:
				if starting {
					if !current.IsScheduledOn(today) {
						return domainerrors.ErrWrongDateForStart
					}
					current.StartedAt = &now
					eventType = eventsv1.EventActivationStarted
					reason = "started"
				} else {
					eventType = eventsv1.EventActivationResumed
					reason = "resumed"
				}
				campaign, err := store.GetCampaign(ctx, current.CampaignID)
				if err != nil {
					return err
				}
				if campaign.Status == entities.CampaignStatusCancelled {
					return domainerrors.ErrCampaignCancelled
				}
			case entities.ActivationStatusSuspended:
				reason = strings.TrimSpace(cmd.Reason)
				if reason == "" {
					return domainerrors.ErrMissingSuspensionReason
				}
				current.SuspensionReason = reason
				current.SuspendedAt = &now
				eventType = eventsv1.EventActivationSuspended
			case entities.ActivationStatusCompleted:
				current.CompletedAt = &now
				eventType = eventsv1.EventActivationCompleted
				reason = "finished"
			}

			current.Status = cmd.Target
			current.UpdatedAt = now
			if err := store.UpdateActivation(ctx, current); err != nil {
				return err
			}
			current.Version++

			changedBy := actorOrSystem(cmd.ActorID)
			if strings.TrimSpace(cmd.ActorAgentID) != "" {
				changedBy = strings.TrimSpace(cmd.ActorAgentID)
			}
			if err := recordState(ctx, store, uc.IDGen, entities.EntityTypeActivation, current.ActivationID,
				string(from), string(current.Status), changedBy, reason, now); err != nil {
				return err
			}
			if err := emit(ctx, store, uc.IDGen, eventType, "activation_id", current.ActivationID, now,
				activationEventData(current)); err != nil {
				return err
			}
			aggregator := campaignAggregator{Store: store, IDGen: uc.IDGen, Now: now, Today: today, Metrics: uc.Metrics, Logger: uc.Logger}
			if _, _, err := aggregator.Recompute(ctx, current.CampaignID, changedBy); err != nil {
				return err
			}
			activation = current
			return nil
		})
	})
	if err != nil {
		application.ResolveLogger(uc.Logger).Warn("activation transition rejected",
			"event", "activation_transition_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"activation_id", activationID,
			"from_status", string(from),
			"to_status", string(cmd.Target),
			"error", err.Error(),
		)
		return entities.Activation{}, err
	}

	application.ResolveMetrics(uc.Metrics).ActivationTransitioned(from, activation.Status)
	application.ResolveLogger(uc.Logger).Info("activation status changed",
		"event", "activation_status_changed",
		"module", application.ModuleName,
		"layer", "application",
		"activation_id", activation.ActivationID,
		"campaign_id", activation.CampaignID,
		"from_status", string(from),
		"to_status", string(activation.Status),
	)
	return activation, nil
}
