package entities

import (
	"net/mail"
	"strings"
	"time"
)

// OnlineWindow is how recent the last position must be for an agent to count
// as online.
const OnlineWindow = 10 * time.Minute

type Agent struct {
	AgentID    string
	UserID     string
	FullName   string
	Email      string
	Phone      string
	Online     bool
	LastSeenAt *time.Time
	CreatedAt  time.Time
}

func (a Agent) ValidateBasics() bool {
	if strings.TrimSpace(a.FullName) == "" || strings.TrimSpace(a.UserID) == "" {
		return false
	}
	if email := strings.TrimSpace(a.Email); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return false
		}
	}
	return true
}

// WithPresence derives Online from LastSeenAt as of now.
func (a Agent) WithPresence(now time.Time) Agent {
	a.Online = a.LastSeenAt != nil && now.Sub(*a.LastSeenAt) <= OnlineWindow
	return a
}

// LatestFixes returns the newest RecordedAt per agent.
func LatestFixes(positions []Position) map[string]time.Time {
	latest := make(map[string]time.Time, len(positions))
	for _, position := range positions {
		if seen, ok := latest[position.AgentID]; !ok || position.RecordedAt.After(seen) {
			latest[position.AgentID] = position.RecordedAt
		}
	}
	return latest
}

// Position is one GPS fix of a field agent. Positions are append-only.
type Position struct {
	PositionID     string
	AgentID        string
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	RecordedAt     time.Time
}

func (p Position) Valid() bool {
	return strings.TrimSpace(p.AgentID) != "" &&
		p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180 &&
		p.AccuracyMeters >= 0
}

type IncidentStatus string

const (
	IncidentStatusOpen     IncidentStatus = "open"
	IncidentStatusResolved IncidentStatus = "resolved"
)

type IncidentPriority string

const (
	IncidentPriorityLow    IncidentPriority = "low"
	IncidentPriorityMedium IncidentPriority = "medium"
	IncidentPriorityHigh   IncidentPriority = "high"
)

func IsSupportedIncidentPriority(value IncidentPriority) bool {
	switch value {
	case IncidentPriorityLow, IncidentPriorityMedium, IncidentPriorityHigh:
		return true
	default:
		return false
	}
}

type Incident struct {
	IncidentID   string
	AgentID      string
	ActivationID string
	Title        string
	Description  string
	Priority     IncidentPriority
	Status       IncidentStatus
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}
