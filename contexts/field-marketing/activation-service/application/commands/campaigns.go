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

type CreateCampaignCommand struct {
	ActorID     string
	ClientID    string
	Name        string
	Description string
	Objectives  string
	StartDate   time.Time
	EndDate     time.Time
}

type CreateCampaignUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc CreateCampaignUseCase) Execute(ctx context.Context, cmd CreateCampaignCommand) (campaign entities.Campaign, err error) {
	ctx, span := startSpan(ctx, "CreateCampaign")
	defer func() { endSpan(span, err) }()

	now := uc.Clock.Now().UTC()
	campaign = entities.Campaign{
		ClientID:    strings.TrimSpace(cmd.ClientID),
		Name:        strings.TrimSpace(cmd.Name),
		Description: strings.TrimSpace(cmd.Description),
		Objectives:  strings.TrimSpace(cmd.Objectives),
		StartDate:   entities.CivilDate(cmd.StartDate),
		EndDate:     entities.CivilDate(cmd.EndDate),
		Status:      entities.CampaignStatusInPreparation,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !campaign.ValidateBasics() {
		return entities.Campaign{}, domainerrors.ErrInvalidCampaignInput
	}
	campaign.CampaignID, err = uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Campaign{}, err
	}

	err = uc.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
		if err := store.CreateCampaign(ctx, campaign); err != nil {
			return err
		}
		if err := recordState(ctx, store, uc.IDGen, entities.EntityTypeCampaign, campaign.CampaignID,
			"", string(campaign.Status), actorOrSystem(cmd.ActorID), "created", now); err != nil {
			return err
		}
		return emit(ctx, store, uc.IDGen, eventsv1.EventCampaignCreated, "campaign_id", campaign.CampaignID, now, map[string]any{
			"campaign_id": campaign.CampaignID,
			"client_id":   campaign.ClientID,
			"start_date":  campaign.StartDate.Format(entities.DateLayout),
			"end_date":    campaign.EndDate.Format(entities.DateLayout),
		})
	})
	if err != nil {
		return entities.Campaign{}, err
	}

	application.ResolveLogger(uc.Logger).Info("campaign created",
		"event", "campaign_created",
		"module", application.ModuleName,
		"layer", "application",
		"campaign_id", campaign.CampaignID,
		"client_id", campaign.ClientID,
	)
	return campaign, nil
}

type CancelCampaignCommand struct {
	CampaignID string
	ActorID    string
	Reason     string
}

type CancelCampaignUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

// Execute cancels any campaign that is not completed. Cancelling twice is a
// no-op.
func (uc CancelCampaignUseCase) Execute(ctx context.Context, cmd CancelCampaignCommand) (campaign entities.Campaign, err error) {
	ctx, span := startSpan(ctx, "CancelCampaign")
	defer func() { endSpan(span, err) }()

	campaignID := strings.TrimSpace(cmd.CampaignID)
	err = withVersionRetry(ctx, func(ctx context.Context) error {
		return uc.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
			current, err := store.LockCampaign(ctx, campaignID)
			if err != nil {
				return err
			}
			switch current.Status {
			case entities.CampaignStatusCancelled:
				campaign = current
				return nil
			case entities.CampaignStatusCompleted:
				return domainerrors.ErrCampaignNotCancellable
			}

			now := uc.Clock.Now().UTC()
			from := current.Status
			current.Status = entities.CampaignStatusCancelled
			current.CancelledAt = &now
			current.UpdatedAt = now
			if err := store.UpdateCampaign(ctx, current); err != nil {
				return err
			}
			current.Version++
			reason := strings.TrimSpace(cmd.Reason)
			if reason == "" {
				reason = "cancelled"
			}
			if err := recordState(ctx, store, uc.IDGen, entities.EntityTypeCampaign, current.CampaignID,
				string(from), string(current.Status), actorOrSystem(cmd.ActorID), reason, now); err != nil {
				return err
			}
			if err := emit(ctx, store, uc.IDGen, eventsv1.EventCampaignStatus, "campaign_id", current.CampaignID, now, map[string]any{
				"campaign_id": current.CampaignID,
				"from_status": string(from),
				"to_status":   string(current.Status),
				"reason":      reason,
			}); err != nil {
				return err
			}
			application.ResolveMetrics(uc.Metrics).CampaignStatusChanged(current.Status)
			campaign = current
			return nil
		})
	})
	if err != nil {
		return entities.Campaign{}, err
	}

	application.ResolveLogger(uc.Logger).Info("campaign cancelled",
		"event", "campaign_cancelled",
		"module", application.ModuleName,
		"layer", "application",
		"campaign_id", campaign.CampaignID,
	)
	return campaign, nil
}

type DeleteCampaignCommand struct {
	CampaignID string
	ActorID    string
}

type DeleteCampaignUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc DeleteCampaignUseCase) Execute(ctx context.Context, cmd DeleteCampaignCommand) (err error) {
	ctx, span := startSpan(ctx, "DeleteCampaign")
	defer func() { endSpan(span, err) }()

	campaignID := strings.TrimSpace(cmd.CampaignID)
	err = uc.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
		if _, err := store.LockCampaign(ctx, campaignID); err != nil {
			return err
		}
		hasFeedback, err := store.CampaignHasFeedback(ctx, campaignID)
		if err != nil {
			return err
		}
		if hasFeedback {
			return domainerrors.ErrCampaignHasFeedback
		}
		if err := store.DeleteCampaign(ctx, campaignID); err != nil {
			return err
		}
		now := uc.Clock.Now().UTC()
		return emit(ctx, store, uc.IDGen, eventsv1.EventCampaignDeleted, "campaign_id", campaignID, now, map[string]any{
			"campaign_id": campaignID,
			"deleted_by":  actorOrSystem(cmd.ActorID),
		})
	})
	if err != nil {
		return err
	}

	application.ResolveLogger(uc.Logger).Info("campaign deleted",
		"event", "campaign_deleted",
		"module", application.ModuleName,
		"layer", "application",
		"campaign_id", campaignID,
	)
	return nil
}
