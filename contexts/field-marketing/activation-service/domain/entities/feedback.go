package entities

import "time"

// FeedbackMarker records that feedback exists for a campaign or one of its
// activations. The feedback itself lives in another service.
type FeedbackMarker struct {
	FeedbackID   string
	CampaignID   string
	ActivationID string
	IssuedAt     time.Time
}
