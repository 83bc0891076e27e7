package commands

import (
	"context"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
	"fieldops/contexts/field-marketing/activation-service/ports"
)

// checkSchedule validates everything an activation's date and agent set must
// satisfy before it is written: campaign window, existing agents, responsible
// membership and agent availability.
func checkSchedule(
	ctx context.Context,
	store ports.Store,
	policy entities.ConflictPolicy,
	metrics ports.Metrics,
	campaign entities.Campaign,
	activation entities.Activation,
) error {
	if !campaign.CoversDate(activation.Date) {
		return domainerrors.ErrDateOutsideCampaignWindow
	}

	names := make(map[string]string, len(activation.AgentIDs))
	if !activation.AgentIDs.Empty() {
		agents, err := store.GetAgentsByIDs(ctx, activation.AgentIDs)
		if err != nil {
			return err
		}
		for _, agent := range agents {
			names[agent.AgentID] = agent.FullName
		}
		for _, agentID := range activation.AgentIDs {
			if _, ok := names[agentID]; !ok {
				return domainerrors.ErrAgentNotFound
			}
		}
	}
	if !activation.ResponsibleIsAssigned() {
		return domainerrors.ErrResponsibleNotAssigned
	}
	if activation.AgentIDs.Empty() {
		return nil
	}

	booked, err := store.ListOpenActivationsOnDate(ctx, activation.Date)
	if err != nil {
		return err
	}
	conflicts := entities.FindConflicts(policy, entities.ConflictWindow{
		Date:              activation.Date,
		StartTime:         activation.StartTime,
		EndTime:           activation.EndTime,
		ExcludeActivation: activation.ActivationID,
	}, activation.AgentIDs, booked, names)
	if len(conflicts) > 0 {
		application.ResolveMetrics(metrics).SchedulingConflictDetected(len(conflicts))
		return &domainerrors.SchedulingConflictError{Conflicts: conflicts}
	}
	return nil
}

func resolvePolicy(policy entities.ConflictPolicy) entities.ConflictPolicy {
	if policy == "" {
		return entities.ConflictPolicySameDay
	}
	return policy
}
