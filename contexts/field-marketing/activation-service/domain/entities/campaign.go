package entities

import (
	"strings"
	"time"
)

type Campaign struct {
	CampaignID  string
	ClientID    string
	Name        string
	Description string
	Objectives  string
	StartDate   time.Time
	EndDate     time.Time
	Status      CampaignStatus
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

func (c Campaign) ValidateBasics() bool {
	name := strings.TrimSpace(c.Name)
	return name != "" &&
		len(name) <= 200 &&
		strings.TrimSpace(c.ClientID) != "" &&
		!c.StartDate.IsZero() &&
		!c.EndDate.IsZero() &&
		!CivilDate(c.EndDate).Before(CivilDate(c.StartDate))
}

// CoversDate reports whether date falls inside [StartDate, EndDate], bounds included.
func (c Campaign) CoversDate(date time.Time) bool {
	day := CivilDate(date)
	return !day.Before(CivilDate(c.StartDate)) && !day.After(CivilDate(c.EndDate))
}

// IsExpired reports whether the campaign window ended before today.
func (c Campaign) IsExpired(today time.Time) bool {
	return CivilDate(today).After(CivilDate(c.EndDate))
}

// DeriveCampaignStatus applies the aggregation rules in priority order. The
// first matching rule wins:
//  1. a cancelled campaign stays cancelled;
//  2. an expired window completes the campaign whatever its activations say;
//  3. no activations leaves the status untouched;
//  4. any activation in progress makes the campaign in progress;
//  5. all activations completed makes the campaign completed;
//  6. anything else is in preparation.
func DeriveCampaignStatus(campaign Campaign, activations []ActivationStatus, today time.Time) CampaignStatus {
	if campaign.Status == CampaignStatusCancelled {
		return CampaignStatusCancelled
	}
	if campaign.IsExpired(today) {
		return CampaignStatusCompleted
	}
	if len(activations) == 0 {
		return campaign.Status
	}

	allCompleted := true
	for _, status := range activations {
		if status == ActivationStatusInProgress {
			return CampaignStatusInProgress
		}
		if status != ActivationStatusCompleted {
			allCompleted = false
		}
	}
	if allCompleted {
		return CampaignStatusCompleted
	}
	return CampaignStatusInPreparation
}
