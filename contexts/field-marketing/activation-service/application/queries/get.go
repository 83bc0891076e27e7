package queries

import (
	"context"
	"log/slog"
	"strings"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	"fieldops/contexts/field-marketing/activation-service/ports"
)

type GetCampaignUseCase struct {
	Campaigns ports.CampaignRepository
	Logger    *slog.Logger
}

func (uc GetCampaignUseCase) Execute(ctx context.Context, campaignID string) (entities.Campaign, error) {
	campaign, err := uc.Campaigns.GetCampaign(ctx, strings.TrimSpace(campaignID))
	if err != nil {
		return entities.Campaign{}, err
	}
	return campaign, nil
}

type GetActivationUseCase struct {
	Activations ports.ActivationRepository
	Logger      *slog.Logger
}

func (uc GetActivationUseCase) Execute(ctx context.Context, activationID string) (entities.Activation, error) {
	return uc.Activations.GetActivation(ctx, strings.TrimSpace(activationID))
}

type ListCampaignActivationsUseCase struct {
	Campaigns   ports.CampaignRepository
	Activations ports.ActivationRepository
	Logger      *slog.Logger
}

func (uc ListCampaignActivationsUseCase) Execute(ctx context.Context, campaignID string) ([]entities.Activation, error) {
	campaignID = strings.TrimSpace(campaignID)
	if _, err := uc.Campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	items, err := uc.Activations.ListActivationsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	application.ResolveLogger(uc.Logger).Debug("campaign activations listed",
		"event", "campaign_activations_listed",
		"module", application.ModuleName,
		"layer", "application",
		"campaign_id", campaignID,
		"count", len(items),
	)
	return items, nil
}

type ListAgentPositionsQuery struct {
	AgentID string
	Limit   int
}

type ListAgentPositionsUseCase struct {
	Agents    ports.AgentRepository
	Positions ports.PositionRepository
	Logger    *slog.Logger
}

// Execute returns the agent's most recent positions, oldest first.
func (uc ListAgentPositionsUseCase) Execute(ctx context.Context, query ListAgentPositionsQuery) ([]entities.Position, error) {
	agentID := strings.TrimSpace(query.AgentID)
	if _, err := uc.Agents.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}
	limit := query.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return uc.Positions.ListPositions(ctx, agentID, limit)
}
