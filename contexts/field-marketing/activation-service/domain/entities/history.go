package entities

import "time"

type EntityType string

const (
	EntityTypeActivation EntityType = "activation"
	EntityTypeCampaign   EntityType = "campaign"

	SystemActor = "system"
)

type StateHistory struct {
	HistoryID    string
	EntityType   EntityType
	EntityID     string
	FromState    string
	ToState      string
	ChangedBy    string
	ChangeReason string
	CreatedAt    time.Time
}
