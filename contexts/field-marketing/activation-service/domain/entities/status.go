package entities

type ActivationStatus string
type CampaignStatus string

const (
	ActivationStatusPlanned    ActivationStatus = "planned"
	ActivationStatusInProgress ActivationStatus = "in_progress"
	ActivationStatusSuspended  ActivationStatus = "suspended"
	ActivationStatusCompleted  ActivationStatus = "completed"

	CampaignStatusInPreparation CampaignStatus = "in_preparation"
	CampaignStatusInProgress    CampaignStatus = "in_progress"
	CampaignStatusCompleted     CampaignStatus = "completed"
	CampaignStatusCancelled     CampaignStatus = "cancelled"
)

// activationTransitions is the fixed table of user-initiated moves. The expiry
// sweep bypasses it when it force-completes overdue activations.
var activationTransitions = map[ActivationStatus][]ActivationStatus{
	ActivationStatusPlanned:    {ActivationStatusInProgress},
	ActivationStatusInProgress: {ActivationStatusSuspended, ActivationStatusCompleted},
	ActivationStatusSuspended:  {ActivationStatusInProgress},
}

func CanTransition(from ActivationStatus, to ActivationStatus) bool {
	for _, candidate := range activationTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func IsSupportedActivationStatus(value ActivationStatus) bool {
	switch value {
	case ActivationStatusPlanned, ActivationStatusInProgress, ActivationStatusSuspended, ActivationStatusCompleted:
		return true
	default:
		return false
	}
}

func IsSupportedCampaignStatus(value CampaignStatus) bool {
	switch value {
	case CampaignStatusInPreparation, CampaignStatusInProgress, CampaignStatusCompleted, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a campaign no longer follows its activations.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusCancelled
}
