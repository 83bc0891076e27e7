package entities

import (
	"fmt"
	"strings"
	"time"

	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
)

type ConflictPolicy string

const (
	// ConflictPolicySameDay treats any two open activations on the same date as
	// overlapping, whatever their hours.
	ConflictPolicySameDay ConflictPolicy = "same_day"
	// ConflictPolicyTimeOverlap only flags activations whose hours intersect.
	ConflictPolicyTimeOverlap ConflictPolicy = "time_overlap"
)

func ParseConflictPolicy(value string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", ConflictPolicySameDay:
		return ConflictPolicySameDay, nil
	case ConflictPolicyTimeOverlap:
		return ConflictPolicyTimeOverlap, nil
	default:
		return "", fmt.Errorf("unsupported conflict policy %q", value)
	}
}

type ConflictDetail = domainerrors.AgentConflict

// ConflictWindow describes the slot a set of agents is being booked on.
type ConflictWindow struct {
	Date              time.Time
	StartTime         TimeOfDay
	EndTime           TimeOfDay
	ExcludeActivation string
}

// FindConflicts returns, per candidate agent, the open activations on the same
// date that already hold that agent. Completed activations never conflict.
// Results follow the order of candidates; agentNames may be nil.
func FindConflicts(
	policy ConflictPolicy,
	window ConflictWindow,
	candidates AgentSet,
	booked []Activation,
	agentNames map[string]string,
) []ConflictDetail {
	if candidates.Empty() {
		return nil
	}
	day := CivilDate(window.Date)
	exclude := strings.TrimSpace(window.ExcludeActivation)

	conflicts := make([]ConflictDetail, 0)
	for _, agentID := range candidates {
		var committed []domainerrors.CommittedActivation
		for _, activation := range booked {
			if activation.ActivationID == exclude ||
				activation.Status == ActivationStatusCompleted ||
				!CivilDate(activation.Date).Equal(day) {
				continue
			}
			if policy == ConflictPolicyTimeOverlap && !activation.OverlapsWindow(window.StartTime, window.EndTime) {
				continue
			}
			if !activation.AgentIDs.Contains(agentID) {
				continue
			}
			committed = append(committed, domainerrors.CommittedActivation{
				ActivationID: activation.ActivationID,
				Name:         activation.Name,
			})
		}
		if len(committed) == 0 {
			continue
		}
		conflicts = append(conflicts, ConflictDetail{
			AgentID:     agentID,
			AgentName:   agentNames[agentID],
			Activations: committed,
		})
	}
	return conflicts
}
