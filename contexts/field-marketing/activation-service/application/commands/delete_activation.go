package commands

import (
	"context"
	"log/slog"
	"strings"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/ports"
	eventsv1 "fieldops/contracts/gen/events/v1"
)

type DeleteActivationCommand struct {
	ActivationID string
	ActorID      string
}

type DeleteActivationUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

func (uc DeleteActivationUseCase) Execute(ctx context.Context, cmd DeleteActivationCommand) (err error) {
	ctx, span := startSpan(ctx, "DeleteActivation")
	defer func() { endSpan(span, err) }()

	activationID := strings.TrimSpace(cmd.ActivationID)
	var campaignID string
	err = withVersionRetry(ctx, func(ctx context.Context) error {
		return uc.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
			current, err := store.GetActivation(ctx, activationID)
			if err != nil {
				return err
			}
			campaignID = current.CampaignID
			if err := store.DeleteActivation(ctx, activationID); err != nil {
				return err
			}
			now := uc.Clock.Now().UTC()
			if err := emit(ctx, store, uc.IDGen, eventsv1.EventActivationDeleted, "activation_id", activationID, now, map[string]any{
				"activation_id": activationID,
				"campaign_id":   campaignID,
				"deleted_by":    actorOrSystem(cmd.ActorID),
			}); err != nil {
				return err
			}
			aggregator := campaignAggregator{Store: store, IDGen: uc.IDGen, Now: now, Today: uc.Clock.Today(), Metrics: uc.Metrics, Logger: uc.Logger}
			_, _, err = aggregator.Recompute(ctx, campaignID, cmd.ActorID)
			return err
		})
	})
	if err != nil {
		return err
	}

	application.ResolveLogger(uc.Logger).Info("activation deleted",
		"event", "activation_deleted",
		"module", application.ModuleName,
		"layer", "application",
		"activation_id", activationID,
		"campaign_id", campaignID,
	)
	return nil
}
