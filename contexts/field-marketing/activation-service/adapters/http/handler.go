package httpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/application/commands"
	"fieldops/contexts/field-marketing/activation-service/application/queries"
	"fieldops/contexts/field-marketing/activation-service/application/workers"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
	"fieldops/contexts/field-marketing/activation-service/ports"
	httptransport "fieldops/contexts/field-marketing/activation-service/transport/http"
)

// Action names accepted on POST /v1/activations/{id}/{action}.
const (
	ActionStart   = "start"
	ActionSuspend = "suspend"
	ActionResume  = "resume"
	ActionFinish  = "finish"
)

type Handler struct {
	CreateCampaign          commands.CreateCampaignUseCase
	CancelCampaign          commands.CancelCampaignUseCase
	DeleteCampaign          commands.DeleteCampaignUseCase
	RecomputeCampaignStatus commands.RecomputeCampaignStatusUseCase
	CreateActivation        commands.CreateActivationUseCase
	EditActivation          commands.EditActivationUseCase
	TransitionActivation    commands.TransitionActivationUseCase
	DeleteActivation        commands.DeleteActivationUseCase
	ValidateProofs          commands.ValidateProofsUseCase
	ReportIncident          commands.ReportIncidentUseCase
	RegisterAgent           commands.RegisterAgentUseCase
	RecordPosition          commands.RecordPositionUseCase

	GetCampaign             queries.GetCampaignUseCase
	GetActivation           queries.GetActivationUseCase
	ListCampaignActivations queries.ListCampaignActivationsUseCase
	CheckAgentConflicts     queries.CheckAgentConflictsUseCase
	ListAvailableAgents     queries.ListAvailableAgentsUseCase
	ListAgentPositions      queries.ListAgentPositionsUseCase

	Sweeper workers.ExpirySweeper
	Clock   ports.Clock
	// SweepOnRequest runs the expiry sweep before campaign and activation
	// reads and before transition, edit and recompute, for deployments
	// without a worker process.
	SweepOnRequest bool
	Logger         *slog.Logger
}

func (h Handler) CreateCampaignHandler(
	ctx context.Context,
	userID string,
	req httptransport.CreateCampaignRequest,
) (httptransport.CampaignResponse, error) {
	startDate, err := entities.ParseDate(req.StartDate)
	if err != nil {
		return httptransport.CampaignResponse{}, fmt.Errorf("%w: start_date", domainerrors.ErrInvalidCampaignInput)
	}
	endDate, err := entities.ParseDate(req.EndDate)
	if err != nil {
		return httptransport.CampaignResponse{}, fmt.Errorf("%w: end_date", domainerrors.ErrInvalidCampaignInput)
	}
	campaign, err := h.CreateCampaign.Execute(ctx, commands.CreateCampaignCommand{
		ActorID:     userID,
		ClientID:    req.ClientID,
		Name:        req.Name,
		Description: req.Description,
		Objectives:  req.Objectives,
		StartDate:   startDate,
		EndDate:     endDate,
	})
	if err != nil {
		return httptransport.CampaignResponse{}, err
	}
	return httptransport.CampaignResponse{Campaign: mapCampaign(campaign)}, nil
}

func (h Handler) GetCampaignHandler(ctx context.Context, campaignID string) (httptransport.CampaignResponse, error) {
	h.sweepOnEntry(ctx)
	campaign, err := h.GetCampaign.Execute(ctx, campaignID)
	if err != nil {
		return httptransport.CampaignResponse{}, err
	}
	return httptransport.CampaignResponse{Campaign: mapCampaign(campaign)}, nil
}

func (h Handler) CancelCampaignHandler(
	ctx context.Context,
	userID string,
	campaignID string,
	req httptransport.CancelCampaignRequest,
) (httptransport.CampaignResponse, error) {
	campaign, err := h.CancelCampaign.Execute(ctx, commands.CancelCampaignCommand{
		CampaignID: campaignID,
		ActorID:    userID,
		Reason:     req.Reason,
	})
	if err != nil {
		return httptransport.CampaignResponse{}, err
	}
	return httptransport.CampaignResponse{Campaign: mapCampaign(campaign)}, nil
}

func (h Handler) DeleteCampaignHandler(ctx context.Context, userID string, campaignID string) error {
	return h.DeleteCampaign.Execute(ctx, commands.DeleteCampaignCommand{
		CampaignID: campaignID,
		ActorID:    userID,
	})
}

func (h Handler) RecomputeCampaignStatusHandler(
	ctx context.Context,
	userID string,
	campaignID string,
) (httptransport.RecomputeStatusResponse, error) {
	h.sweepOnEntry(ctx)
	result, err := h.RecomputeCampaignStatus.Execute(ctx, commands.RecomputeCampaignStatusCommand{
		CampaignID: campaignID,
		ActorID:    userID,
	})
	if err != nil {
		return httptransport.RecomputeStatusResponse{}, err
	}
	return httptransport.RecomputeStatusResponse{
		CampaignID: strings.TrimSpace(campaignID),
		Status:     string(result.Status),
		Changed:    result.Changed,
	}, nil
}

func (h Handler) ListCampaignActivationsHandler(ctx context.Context, campaignID string) (httptransport.ListActivationsResponse, error) {
	h.sweepOnEntry(ctx)
	items, err := h.ListCampaignActivations.Execute(ctx, campaignID)
	if err != nil {
		return httptransport.ListActivationsResponse{}, err
	}
	out := make([]httptransport.ActivationDTO, 0, len(items))
	for _, item := range items {
		out = append(out, mapActivation(item))
	}
	return httptransport.ListActivationsResponse{Items: out}, nil
}

func (h Handler) CreateActivationHandler(
	ctx context.Context,
	userID string,
	campaignID string,
	req httptransport.ActivationRequest,
) (httptransport.ActivationResponse, error) {
	fields, err := parseActivationFields(req)
	if err != nil {
		return httptransport.ActivationResponse{}, err
	}
	activation, err := h.CreateActivation.Execute(ctx, commands.CreateActivationCommand{
		ActorID:    userID,
		CampaignID: campaignID,
		Fields:     fields,
		AgentIDs:   append([]string(nil), req.AgentIDs...),
	})
	if err != nil {
		return httptransport.ActivationResponse{}, err
	}
	return httptransport.ActivationResponse{Activation: mapActivation(activation)}, nil
}

func (h Handler) GetActivationHandler(ctx context.Context, activationID string) (httptransport.ActivationResponse, error) {
	h.sweepOnEntry(ctx)
	activation, err := h.GetActivation.Execute(ctx, activationID)
	if err != nil {
		return httptransport.ActivationResponse{}, err
	}
	return httptransport.ActivationResponse{Activation: mapActivation(activation)}, nil
}

func (h Handler) EditActivationHandler(
	ctx context.Context,
	userID string,
	activationID string,
	req httptransport.ActivationRequest,
) (httptransport.ActivationResponse, error) {
	fields, err := parseActivationFields(req)
	if err != nil {
		return httptransport.ActivationResponse{}, err
	}
	h.sweepOnEntry(ctx)
	activation, err := h.EditActivation.Execute(ctx, commands.EditActivationCommand{
		ActorID:      userID,
		ActivationID: activationID,
		CampaignID:   req.CampaignID,
		Fields:       fields,
		AgentIDs:     append([]string(nil), req.AgentIDs...),
	})
	if err != nil {
		return httptransport.ActivationResponse{}, err
	}
	return httptransport.ActivationResponse{Activation: mapActivation(activation)}, nil
}

func (h Handler) DeleteActivationHandler(ctx context.Context, userID string, activationID string) error {
	return h.DeleteActivation.Execute(ctx, commands.DeleteActivationCommand{
		ActivationID: activationID,
		ActorID:      userID,
	})
}

// TransitionActivationHandler maps an action name onto a status move. Agents
// acting through X-Agent-Id are restricted to activations they are assigned to.
func (h Handler) TransitionActivationHandler(
	ctx context.Context,
	userID string,
	agentID string,
	activationID string,
	action string,
	req httptransport.StatusActionRequest,
) (httptransport.ActivationResponse, error) {
	cmd := commands.TransitionActivationCommand{
		ActivationID: activationID,
		Reason:       req.Reason,
		ActorID:      userID,
		ActorAgentID: agentID,
		Action:       action,
	}
	if cmd.ActorID == "" {
		cmd.ActorID = agentID
	}
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionStart:
		cmd.Target = entities.ActivationStatusInProgress
		cmd.ExpectedFrom = entities.ActivationStatusPlanned
	case ActionSuspend:
		cmd.Target = entities.ActivationStatusSuspended
		cmd.ExpectedFrom = entities.ActivationStatusInProgress
	case ActionResume:
		cmd.Target = entities.ActivationStatusInProgress
		cmd.ExpectedFrom = entities.ActivationStatusSuspended
	case ActionFinish:
		cmd.Target = entities.ActivationStatusCompleted
		cmd.ExpectedFrom = entities.ActivationStatusInProgress
	default:
		return httptransport.ActivationResponse{}, &domainerrors.TransitionError{To: action}
	}
	h.sweepOnEntry(ctx)
	activation, err := h.TransitionActivation.Execute(ctx, cmd)
	if err != nil {
		return httptransport.ActivationResponse{}, err
	}
	return httptransport.ActivationResponse{Activation: mapActivation(activation)}, nil
}

func (h Handler) ValidateProofsHandler(ctx context.Context, userID string, activationID string) (httptransport.ActivationResponse, error) {
	activation, err := h.ValidateProofs.Execute(ctx, commands.ValidateProofsCommand{
		ActivationID: activationID,
		ValidatorID:  userID,
	})
	if err != nil {
		return httptransport.ActivationResponse{}, err
	}
	return httptransport.ActivationResponse{Activation: mapActivation(activation)}, nil
}

func (h Handler) RegisterAgentHandler(ctx context.Context, req httptransport.RegisterAgentRequest) (httptransport.AgentResponse, error) {
	agent, err := h.RegisterAgent.Execute(ctx, commands.RegisterAgentCommand{
		UserID:   req.UserID,
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		return httptransport.AgentResponse{}, err
	}
	return httptransport.AgentResponse{Agent: mapAgent(agent)}, nil
}

func (h Handler) CheckAgentConflictsHandler(
	ctx context.Context,
	date string,
	agentIDs []string,
	excludeActivationID string,
	startTime string,
	endTime string,
) (httptransport.CheckConflictsResponse, error) {
	day, err := entities.ParseDate(date)
	if err != nil {
		return httptransport.CheckConflictsResponse{}, fmt.Errorf("%w: date", domainerrors.ErrInvalidActivationInput)
	}
	query := queries.CheckAgentConflictsQuery{
		Date:                day,
		AgentIDs:            agentIDs,
		ExcludeActivationID: excludeActivationID,
	}
	if query.StartTime, query.EndTime, err = parseSlot(startTime, endTime); err != nil {
		return httptransport.CheckConflictsResponse{}, err
	}
	conflicts, err := h.CheckAgentConflicts.Execute(ctx, query)
	if err != nil {
		return httptransport.CheckConflictsResponse{}, err
	}
	return httptransport.CheckConflictsResponse{
		Date:      day.Format(entities.DateLayout),
		Conflicts: MapConflicts(conflicts),
	}, nil
}

// parseSlot reads an optional start/end pair. Both empty means no slot.
func parseSlot(startTime string, endTime string) (entities.TimeOfDay, entities.TimeOfDay, error) {
	if strings.TrimSpace(startTime) == "" && strings.TrimSpace(endTime) == "" {
		return 0, 0, nil
	}
	start, err := entities.ParseTimeOfDay(startTime)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: start_time", domainerrors.ErrInvalidActivationInput)
	}
	end, err := entities.ParseTimeOfDay(endTime)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: end_time", domainerrors.ErrInvalidActivationInput)
	}
	return start, end, nil
}

func (h Handler) ListAvailableAgentsHandler(
	ctx context.Context,
	date string,
	activationID string,
	startTime string,
	endTime string,
) (httptransport.ListAgentsResponse, error) {
	day, err := entities.ParseDate(date)
	if err != nil {
		return httptransport.ListAgentsResponse{}, fmt.Errorf("%w: date", domainerrors.ErrInvalidActivationInput)
	}
	query := queries.ListAvailableAgentsQuery{
		Date:         day,
		ActivationID: activationID,
	}
	if query.StartTime, query.EndTime, err = parseSlot(startTime, endTime); err != nil {
		return httptransport.ListAgentsResponse{}, err
	}
	agents, err := h.ListAvailableAgents.Execute(ctx, query)
	if err != nil {
		return httptransport.ListAgentsResponse{}, err
	}
	out := make([]httptransport.AgentDTO, 0, len(agents))
	for _, agent := range agents {
		out = append(out, mapAgent(agent))
	}
	return httptransport.ListAgentsResponse{Items: out}, nil
}

func (h Handler) RecordPositionHandler(
	ctx context.Context,
	agentID string,
	req httptransport.RecordPositionRequest,
) (httptransport.PositionResponse, error) {
	var recordedAt time.Time
	if raw := strings.TrimSpace(req.RecordedAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return httptransport.PositionResponse{}, fmt.Errorf("%w: recorded_at", domainerrors.ErrInvalidPosition)
		}
		recordedAt = parsed
	}
	position, err := h.RecordPosition.Execute(ctx, commands.RecordPositionCommand{
		AgentID:        agentID,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		AccuracyMeters: req.AccuracyMeters,
		RecordedAt:     recordedAt,
	})
	if err != nil {
		return httptransport.PositionResponse{}, err
	}
	return httptransport.PositionResponse{Position: mapPosition(position)}, nil
}

func (h Handler) ListAgentPositionsHandler(ctx context.Context, agentID string, limit int) (httptransport.ListPositionsResponse, error) {
	items, err := h.ListAgentPositions.Execute(ctx, queries.ListAgentPositionsQuery{
		AgentID: agentID,
		Limit:   limit,
	})
	if err != nil {
		return httptransport.ListPositionsResponse{}, err
	}
	out := make([]httptransport.PositionDTO, 0, len(items))
	for _, item := range items {
		out = append(out, mapPosition(item))
	}
	return httptransport.ListPositionsResponse{Items: out}, nil
}

func (h Handler) ReportIncidentHandler(
	ctx context.Context,
	agentID string,
	req httptransport.ReportIncidentRequest,
) (httptransport.IncidentResponse, error) {
	incident, err := h.ReportIncident.Execute(ctx, commands.ReportIncidentCommand{
		AgentID:      agentID,
		ActivationID: req.ActivationID,
		Title:        req.Title,
		Description:  req.Description,
		Priority:     entities.IncidentPriority(strings.ToLower(strings.TrimSpace(req.Priority))),
	})
	if err != nil {
		return httptransport.IncidentResponse{}, err
	}
	return httptransport.IncidentResponse{Incident: mapIncident(incident)}, nil
}

// SweepExpiredHandler runs one expiry pass. An empty today uses the clock.
func (h Handler) SweepExpiredHandler(ctx context.Context, today string) (httptransport.SweepResponse, error) {
	day := h.Clock.Today()
	if strings.TrimSpace(today) != "" {
		parsed, err := entities.ParseDate(today)
		if err != nil {
			return httptransport.SweepResponse{}, fmt.Errorf("%w: today", domainerrors.ErrInvalidCampaignInput)
		}
		day = parsed
	}
	result, err := h.Sweeper.Sweep(ctx, day)
	if err != nil {
		return httptransport.SweepResponse{}, err
	}
	return httptransport.SweepResponse{
		Today:              entities.CivilDate(day).Format(entities.DateLayout),
		CampaignsUpdated:   result.CampaignsUpdated,
		ActivationsUpdated: result.ActivationsUpdated,
		Skipped:            result.Skipped,
	}, nil
}

func (h Handler) sweepOnEntry(ctx context.Context) {
	if !h.SweepOnRequest {
		return
	}
	if _, err := h.Sweeper.Sweep(ctx, h.Clock.Today()); err != nil {
		application.ResolveLogger(h.Logger).Warn("opportunistic expiry sweep failed",
			"event", "expiry_sweep_on_request_failed",
			"module", application.ModuleName,
			"layer", "transport",
			"error", err.Error(),
		)
	}
}

func parseActivationFields(req httptransport.ActivationRequest) (commands.ActivationFields, error) {
	date, err := entities.ParseDate(req.Date)
	if err != nil {
		return commands.ActivationFields{}, fmt.Errorf("%w: date", domainerrors.ErrInvalidActivationInput)
	}
	startTime, err := entities.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return commands.ActivationFields{}, fmt.Errorf("%w: start_time", domainerrors.ErrInvalidActivationInput)
	}
	endTime, err := entities.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return commands.ActivationFields{}, fmt.Errorf("%w: end_time", domainerrors.ErrInvalidActivationInput)
	}
	return commands.ActivationFields{
		PlaceID:            req.PlaceID,
		Name:               req.Name,
		Description:        req.Description,
		Instructions:       req.Instructions,
		Date:               date,
		StartTime:          startTime,
		EndTime:            endTime,
		ResponsibleAgentID: req.ResponsibleAgentID,
	}, nil
}

func mapCampaign(item entities.Campaign) httptransport.CampaignDTO {
	return httptransport.CampaignDTO{
		CampaignID:  item.CampaignID,
		ClientID:    item.ClientID,
		Name:        item.Name,
		Description: item.Description,
		Objectives:  item.Objectives,
		StartDate:   item.StartDate.Format(entities.DateLayout),
		EndDate:     item.EndDate.Format(entities.DateLayout),
		Status:      string(item.Status),
		Version:     item.Version,
		CreatedAt:   item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   item.UpdatedAt.UTC().Format(time.RFC3339),
		CompletedAt: formatOptional(item.CompletedAt),
		CancelledAt: formatOptional(item.CancelledAt),
	}
}

func mapActivation(item entities.Activation) httptransport.ActivationDTO {
	return httptransport.ActivationDTO{
		ActivationID:       item.ActivationID,
		CampaignID:         item.CampaignID,
		PlaceID:            item.PlaceID,
		Name:               item.Name,
		Description:        item.Description,
		Instructions:       item.Instructions,
		Date:               item.Date.Format(entities.DateLayout),
		StartTime:          item.StartTime.String(),
		EndTime:            item.EndTime.String(),
		Status:             string(item.Status),
		SuspensionReason:   item.SuspensionReason,
		SuspendedAt:        formatOptional(item.SuspendedAt),
		ProofsValidated:    item.ProofsValidated,
		ProofsValidatedAt:  formatOptional(item.ProofsValidatedAt),
		ProofsValidatedBy:  item.ProofsValidatedBy,
		ResponsibleAgentID: item.ResponsibleAgentID,
		AgentIDs:           append([]string{}, item.AgentIDs...),
		Version:            item.Version,
		StartedAt:          formatOptional(item.StartedAt),
		CompletedAt:        formatOptional(item.CompletedAt),
	}
}

func mapAgent(item entities.Agent) httptransport.AgentDTO {
	return httptransport.AgentDTO{
		AgentID:    item.AgentID,
		UserID:     item.UserID,
		FullName:   item.FullName,
		Email:      item.Email,
		Phone:      item.Phone,
		Online:     item.Online,
		LastSeenAt: formatOptional(item.LastSeenAt),
	}
}

func mapPosition(item entities.Position) httptransport.PositionDTO {
	return httptransport.PositionDTO{
		PositionID:     item.PositionID,
		AgentID:        item.AgentID,
		Latitude:       item.Latitude,
		Longitude:      item.Longitude,
		AccuracyMeters: item.AccuracyMeters,
		RecordedAt:     item.RecordedAt.UTC().Format(time.RFC3339),
	}
}

func mapIncident(item entities.Incident) httptransport.IncidentDTO {
	return httptransport.IncidentDTO{
		IncidentID:   item.IncidentID,
		AgentID:      item.AgentID,
		ActivationID: item.ActivationID,
		Title:        item.Title,
		Description:  item.Description,
		Priority:     string(item.Priority),
		Status:       string(item.Status),
		CreatedAt:    item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// MapConflicts is shared with the error writer so 409 bodies list the same
// details the conflict check returns.
func MapConflicts(items []entities.ConflictDetail) []httptransport.AgentConflictDTO {
	out := make([]httptransport.AgentConflictDTO, 0, len(items))
	for _, item := range items {
		activations := make([]httptransport.ConflictingActivationDTO, 0, len(item.Activations))
		for _, committed := range item.Activations {
			activations = append(activations, httptransport.ConflictingActivationDTO{
				ActivationID: committed.ActivationID,
				Name:         committed.Name,
			})
		}
		out = append(out, httptransport.AgentConflictDTO{
			AgentID:     item.AgentID,
			AgentName:   item.AgentName,
			Activations: activations,
		})
	}
	return out
}

func formatOptional(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
