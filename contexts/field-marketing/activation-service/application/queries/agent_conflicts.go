package queries

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
	"fieldops/contexts/field-marketing/activation-service/ports"
)

type CheckAgentConflictsQuery struct {
	Date                time.Time
	AgentIDs            []string
	ExcludeActivationID string
	// StartTime and EndTime only matter under the time_overlap policy. An
	// empty window means the whole day.
	StartTime entities.TimeOfDay
	EndTime   entities.TimeOfDay
}

type CheckAgentConflictsUseCase struct {
	Activations ports.ActivationRepository
	Agents      ports.AgentRepository
	Policy      entities.ConflictPolicy
	Logger      *slog.Logger
}

func (uc CheckAgentConflictsUseCase) Execute(ctx context.Context, query CheckAgentConflictsQuery) ([]entities.ConflictDetail, error) {
	if query.Date.IsZero() {
		return nil, domainerrors.ErrInvalidActivationInput
	}
	candidates := entities.NewAgentSet(query.AgentIDs)
	if candidates.Empty() {
		return []entities.ConflictDetail{}, nil
	}

	booked, err := uc.Activations.ListOpenActivationsOnDate(ctx, query.Date)
	if err != nil {
		return nil, err
	}
	agents, err := uc.Agents.GetAgentsByIDs(ctx, candidates)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(agents))
	for _, agent := range agents {
		names[agent.AgentID] = agent.FullName
	}

	window := conflictWindow(query.Date, query.StartTime, query.EndTime, query.ExcludeActivationID)
	conflicts := entities.FindConflicts(resolvePolicy(uc.Policy), window, candidates, booked, names)

	application.ResolveLogger(uc.Logger).Debug("agent conflicts checked",
		"event", "agent_conflicts_checked",
		"module", application.ModuleName,
		"layer", "application",
		"date", entities.CivilDate(query.Date).Format(entities.DateLayout),
		"candidates", len(candidates),
		"conflicts", len(conflicts),
	)
	return conflicts, nil
}

// conflictWindow widens an empty or inverted slot to the whole day.
func conflictWindow(date time.Time, start, end entities.TimeOfDay, exclude string) entities.ConflictWindow {
	window := entities.ConflictWindow{
		Date:              date,
		StartTime:         start,
		EndTime:           end,
		ExcludeActivation: strings.TrimSpace(exclude),
	}
	if window.EndTime <= window.StartTime {
		window.StartTime, window.EndTime = 0, entities.NewTimeOfDay(24, 0)
	}
	return window
}

func resolvePolicy(policy entities.ConflictPolicy) entities.ConflictPolicy {
	if policy == "" {
		return entities.ConflictPolicySameDay
	}
	return policy
}

type ListAvailableAgentsQuery struct {
	Date time.Time
	// ActivationID marks the activation being edited; its own agents count
	// as available.
	ActivationID string
	// StartTime and EndTime follow CheckAgentConflictsQuery.
	StartTime entities.TimeOfDay
	EndTime   entities.TimeOfDay
}

// ListAvailableAgentsUseCase returns the agents FindConflicts would accept for
// the slot, with Online derived from the clock.
type ListAvailableAgentsUseCase struct {
	Activations ports.ActivationRepository
	Agents      ports.AgentRepository
	Clock       ports.Clock
	Policy      entities.ConflictPolicy
	Logger      *slog.Logger
}

func (uc ListAvailableAgentsUseCase) Execute(ctx context.Context, query ListAvailableAgentsQuery) ([]entities.Agent, error) {
	if query.Date.IsZero() {
		return nil, domainerrors.ErrInvalidActivationInput
	}
	agents, err := uc.Agents.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	booked, err := uc.Activations.ListOpenActivationsOnDate(ctx, query.Date)
	if err != nil {
		return nil, err
	}

	candidates := make([]string, 0, len(agents))
	for _, agent := range agents {
		candidates = append(candidates, agent.AgentID)
	}
	window := conflictWindow(query.Date, query.StartTime, query.EndTime, query.ActivationID)
	busy := make(map[string]struct{})
	for _, conflict := range entities.FindConflicts(resolvePolicy(uc.Policy), window, entities.NewAgentSet(candidates), booked, nil) {
		busy[conflict.AgentID] = struct{}{}
	}

	var now time.Time
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	available := make([]entities.Agent, 0, len(agents))
	for _, agent := range agents {
		if _, taken := busy[agent.AgentID]; taken {
			continue
		}
		if !now.IsZero() {
			agent = agent.WithPresence(now)
		}
		available = append(available, agent)
	}

	application.ResolveLogger(uc.Logger).Debug("available agents listed",
		"event", "available_agents_listed",
		"module", application.ModuleName,
		"layer", "application",
		"date", entities.CivilDate(query.Date).Format(entities.DateLayout),
		"available", len(available),
	)
	return available, nil
}
