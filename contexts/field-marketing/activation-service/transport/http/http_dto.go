package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Conflicts is filled for agent scheduling conflicts.
	Conflicts []AgentConflictDTO `json:"conflicts,omitempty"`
}

type CampaignDTO struct {
	CampaignID  string `json:"campaign_id"`
	ClientID    string `json:"client_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Objectives  string `json:"objectives,omitempty"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Status      string `json:"status"`
	Version     int64  `json:"version"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	CancelledAt string `json:"cancelled_at,omitempty"`
}

type CreateCampaignRequest struct {
	ClientID    string `json:"client_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Objectives  string `json:"objectives"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

type CancelCampaignRequest struct {
	Reason string `json:"reason"`
}

type CampaignResponse struct {
	Campaign CampaignDTO `json:"campaign"`
}

type RecomputeStatusResponse struct {
	CampaignID string `json:"campaign_id"`
	Status     string `json:"status"`
	Changed    bool   `json:"changed"`
}

type ActivationDTO struct {
	ActivationID       string   `json:"activation_id"`
	CampaignID         string   `json:"campaign_id"`
	PlaceID            string   `json:"place_id"`
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	Instructions       string   `json:"instructions,omitempty"`
	Date               string   `json:"date"`
	StartTime          string   `json:"start_time"`
	EndTime            string   `json:"end_time"`
	Status             string   `json:"status"`
	SuspensionReason   string   `json:"suspension_reason,omitempty"`
	SuspendedAt        string   `json:"suspended_at,omitempty"`
	ProofsValidated    bool     `json:"proofs_validated"`
	ProofsValidatedAt  string   `json:"proofs_validated_at,omitempty"`
	ProofsValidatedBy  string   `json:"proofs_validated_by,omitempty"`
	ResponsibleAgentID string   `json:"responsible_agent_id,omitempty"`
	AgentIDs           []string `json:"agent_ids"`
	Version            int64    `json:"version"`
	StartedAt          string   `json:"started_at,omitempty"`
	CompletedAt        string   `json:"completed_at,omitempty"`
}

// ActivationRequest is shared by create and edit. Times are HH:MM and dates
// YYYY-MM-DD.
type ActivationRequest struct {
	CampaignID         string   `json:"campaign_id,omitempty"`
	PlaceID            string   `json:"place_id"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Instructions       string   `json:"instructions"`
	Date               string   `json:"date"`
	StartTime          string   `json:"start_time"`
	EndTime            string   `json:"end_time"`
	ResponsibleAgentID string   `json:"responsible_agent_id"`
	AgentIDs           []string `json:"agent_ids"`
}

type ActivationResponse struct {
	Activation ActivationDTO `json:"activation"`
}

type ListActivationsResponse struct {
	Items []ActivationDTO `json:"items"`
}

type StatusActionRequest struct {
	Reason string `json:"reason"`
}

type AgentDTO struct {
	AgentID    string `json:"agent_id"`
	UserID     string `json:"user_id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Online     bool   `json:"online"`
	LastSeenAt string `json:"last_seen_at,omitempty"`
}

type RegisterAgentRequest struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

type AgentResponse struct {
	Agent AgentDTO `json:"agent"`
}

type ListAgentsResponse struct {
	Items []AgentDTO `json:"items"`
}

type ConflictingActivationDTO struct {
	ActivationID string `json:"activation_id"`
	Name         string `json:"name"`
}

type AgentConflictDTO struct {
	AgentID     string                     `json:"agent_id"`
	AgentName   string                     `json:"agent_name,omitempty"`
	Activations []ConflictingActivationDTO `json:"activations"`
}

type CheckConflictsResponse struct {
	Date      string             `json:"date"`
	Conflicts []AgentConflictDTO `json:"conflicts"`
}

type PositionDTO struct {
	PositionID     string  `json:"position_id"`
	AgentID        string  `json:"agent_id"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters"`
	RecordedAt     string  `json:"recorded_at"`
}

type RecordPositionRequest struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters"`
	RecordedAt     string  `json:"recorded_at,omitempty"`
}

type PositionResponse struct {
	Position PositionDTO `json:"position"`
}

type ListPositionsResponse struct {
	Items []PositionDTO `json:"items"`
}

type ReportIncidentRequest struct {
	ActivationID string `json:"activation_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Priority     string `json:"priority"`
}

type IncidentDTO struct {
	IncidentID   string `json:"incident_id"`
	AgentID      string `json:"agent_id"`
	ActivationID string `json:"activation_id,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Priority     string `json:"priority"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

type IncidentResponse struct {
	Incident IncidentDTO `json:"incident"`
}

type SweepResponse struct {
	Today              string `json:"today"`
	CampaignsUpdated   int    `json:"campaigns_updated"`
	ActivationsUpdated int    `json:"activations_updated"`
	Skipped            bool   `json:"skipped"`
}
