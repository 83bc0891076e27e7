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

type RecomputeCampaignStatusCommand struct {
	CampaignID string
	ActorID    string
}

type RecomputeCampaignStatusResult struct {
	Status  entities.CampaignStatus
	Changed bool
}

type RecomputeCampaignStatusUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

func (uc RecomputeCampaignStatusUseCase) Execute(
	ctx context.Context,
	cmd RecomputeCampaignStatusCommand,
) (result RecomputeCampaignStatusResult, err error) {
	ctx, span := startSpan(ctx, "RecomputeCampaignStatus")
	defer func() { endSpan(span, err) }()

	campaignID := strings.TrimSpace(cmd.CampaignID)
	if campaignID == "" {
		return RecomputeCampaignStatusResult{}, domainerrors.ErrInvalidCampaignInput
	}

	err = withVersionRetry(ctx, func(ctx context.Context) error {
		return uc.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
			aggregator := campaignAggregator{
				Store:   store,
				IDGen:   uc.IDGen,
				Now:     uc.Clock.Now().UTC(),
				Today:   uc.Clock.Today(),
				Metrics: uc.Metrics,
				Logger:  uc.Logger,
			}
			status, changed, aggErr := aggregator.Recompute(ctx, campaignID, cmd.ActorID)
			if aggErr != nil {
				return aggErr
			}
			result = RecomputeCampaignStatusResult{Status: status, Changed: changed}
			return nil
		})
	})
	if err != nil {
		return RecomputeCampaignStatusResult{}, err
	}
	return result, nil
}

// campaignAggregator derives a campaign's status from its activations inside
// an already open transaction.
type campaignAggregator struct {
	Store   ports.Store
	IDGen   ports.IDGenerator
	Now     time.Time
	Today   time.Time
	Metrics ports.Metrics
	Logger  *slog.Logger
}

func (a campaignAggregator) Recompute(
	ctx context.Context,
	campaignID string,
	actorID string,
) (entities.CampaignStatus, bool, error) {
	// Lock before reading activations so concurrent finishers serialize here.
	campaign, err := a.Store.LockCampaign(ctx, campaignID)
	if err != nil {
		return "", false, err
	}
	activations, err := a.Store.ListActivationsByCampaign(ctx, campaignID)
	if err != nil {
		return "", false, err
	}
	statuses := make([]entities.ActivationStatus, 0, len(activations))
	for _, item := range activations {
		statuses = append(statuses, item.Status)
	}

	from := campaign.Status
	to := entities.DeriveCampaignStatus(campaign, statuses, a.Today)
	if to == from {
		return from, false, nil
	}

	reason := "aggregated"
	if campaign.IsExpired(a.Today) {
		reason = "expired"
	}
	campaign.Status = to
	campaign.UpdatedAt = a.Now
	if to == entities.CampaignStatusCompleted {
		completedAt := a.Now
		campaign.CompletedAt = &completedAt
	} else {
		campaign.CompletedAt = nil
	}
	if err := a.Store.UpdateCampaign(ctx, campaign); err != nil {
		return "", false, err
	}
	if err := recordState(ctx, a.Store, a.IDGen, entities.EntityTypeCampaign, campaign.CampaignID,
		string(from), string(to), actorOrSystem(actorID), reason, a.Now); err != nil {
		return "", false, err
	}
	if err := emit(ctx, a.Store, a.IDGen, eventsv1.EventCampaignStatus, "campaign_id", campaign.CampaignID, a.Now, map[string]any{
		"campaign_id": campaign.CampaignID,
		"from_status": string(from),
		"to_status":   string(to),
		"reason":      reason,
	}); err != nil {
		return "", false, err
	}

	application.ResolveMetrics(a.Metrics).CampaignStatusChanged(to)
	application.ResolveLogger(a.Logger).Info("campaign status recomputed",
		"event", "campaign_status_recomputed",
		"module", application.ModuleName,
		"layer", "application",
		"campaign_id", campaign.CampaignID,
		"from_status", string(from),
		"to_status", string(to),
		"reason", reason,
	)
	return to, true, nil
}
