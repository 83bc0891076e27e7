package entities

import (
	"slices"
	"strings"
	"time"
)

// AgentSet is the normalized set of agents assigned to one activation.
type AgentSet []string

// NewAgentSet trims, drops blanks, dedupes and sorts the given ids.
func NewAgentSet(ids []string) AgentSet {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return AgentSet(slices.Compact(out))
}

func (s AgentSet) Contains(agentID string) bool {
	_, found := slices.BinarySearch(s, strings.TrimSpace(agentID))
	return found
}

func (s AgentSet) Empty() bool {
	return len(s) == 0
}

type Activation struct {
	ActivationID       string
	CampaignID         string
	PlaceID            string
	Name               string
	Description        string
	Instructions       string
	Date               time.Time
	StartTime          TimeOfDay
	EndTime            TimeOfDay
	Status             ActivationStatus
	SuspensionReason   string
	SuspendedAt        *time.Time
	ProofsValidated    bool
	ProofsValidatedAt  *time.Time
	ProofsValidatedBy  string
	ResponsibleAgentID string
	AgentIDs           AgentSet
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
}

func (a Activation) ValidateBasics() bool {
	name := strings.TrimSpace(a.Name)
	return name != "" &&
		len(name) <= 200 &&
		strings.TrimSpace(a.CampaignID) != "" &&
		strings.TrimSpace(a.PlaceID) != "" &&
		!a.Date.IsZero() &&
		a.StartTime.Valid() &&
		a.EndTime.Valid() &&
		a.StartTime < a.EndTime
}

// ResponsibleIsAssigned is true when no responsible agent is set or when the
// responsible agent belongs to the assigned set.
func (a Activation) ResponsibleIsAssigned() bool {
	responsible := strings.TrimSpace(a.ResponsibleAgentID)
	return responsible == "" || a.AgentIDs.Contains(responsible)
}

func (a Activation) IsPast(today time.Time) bool {
	return CivilDate(a.Date).Before(CivilDate(today))
}

func (a Activation) IsScheduledOn(today time.Time) bool {
	return CivilDate(a.Date).Equal(CivilDate(today))
}

// OverlapsWindow reports whether [StartTime, EndTime) intersects [start, end).
func (a Activation) OverlapsWindow(start TimeOfDay, end TimeOfDay) bool {
	return a.StartTime < end && start < a.EndTime
}
