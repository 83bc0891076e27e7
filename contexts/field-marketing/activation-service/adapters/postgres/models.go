package postgresadapter

import (
	"strings"
	"time"

	"fieldops/contexts/field-marketing/activation-service/domain/entities"
)

// Civil dates are stored as YYYY-MM-DD text so that range and equality
// filters compare the same way on every dialect.

type campaignModel struct {
	CampaignID  string     `gorm:"column:campaign_id;primaryKey"`
	ClientID    string     `gorm:"column:client_id;index"`
	Name        string     `gorm:"column:name"`
	Description string     `gorm:"column:description"`
	Objectives  string     `gorm:"column:objectives"`
	StartDate   string     `gorm:"column:start_date;type:varchar(10)"`
	EndDate     string     `gorm:"column:end_date;type:varchar(10);index"`
	Status      string     `gorm:"column:status;index"`
	Version     int64      `gorm:"column:version"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
}

func (campaignModel) TableName() string {
	return "campaigns"
}

func campaignModelFromEntity(item entities.Campaign) campaignModel {
	return campaignModel{
		CampaignID:  strings.TrimSpace(item.CampaignID),
		ClientID:    strings.TrimSpace(item.ClientID),
		Name:        item.Name,
		Description: item.Description,
		Objectives:  item.Objectives,
		StartDate:   formatDate(item.StartDate),
		EndDate:     formatDate(item.EndDate),
		Status:      string(item.Status),
		Version:     item.Version,
		CreatedAt:   item.CreatedAt.UTC(),
		UpdatedAt:   item.UpdatedAt.UTC(),
		CompletedAt: normalizeOptionalTime(item.CompletedAt),
		CancelledAt: normalizeOptionalTime(item.CancelledAt),
	}
}

func campaignUpdatesFromEntity(item entities.Campaign) map[string]any {
	return map[string]any{
		"client_id":    strings.TrimSpace(item.ClientID),
		"name":         item.Name,
		"description":  item.Description,
		"objectives":   item.Objectives,
		"start_date":   formatDate(item.StartDate),
		"end_date":     formatDate(item.EndDate),
		"status":       string(item.Status),
		"version":      item.Version + 1,
		"updated_at":   item.UpdatedAt.UTC(),
		"completed_at": normalizeOptionalTime(item.CompletedAt),
		"cancelled_at": normalizeOptionalTime(item.CancelledAt),
	}
}

func (m campaignModel) toEntity() entities.Campaign {
	return entities.Campaign{
		CampaignID:  m.CampaignID,
		ClientID:    m.ClientID,
		Name:        m.Name,
		Description: m.Description,
		Objectives:  m.Objectives,
		StartDate:   parseDate(m.StartDate),
		EndDate:     parseDate(m.EndDate),
		Status:      entities.CampaignStatus(m.Status),
		Version:     m.Version,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
		CompletedAt: normalizeOptionalTime(m.CompletedAt),
		CancelledAt: normalizeOptionalTime(m.CancelledAt),
	}
}

type activationModel struct {
	ActivationID       string     `gorm:"column:activation_id;primaryKey"`
	CampaignID         string     `gorm:"column:campaign_id;index"`
	PlaceID            string     `gorm:"column:place_id"`
	Name               string     `gorm:"column:name"`
	Description        string     `gorm:"column:description"`
	Instructions       string     `gorm:"column:instructions"`
	ActivationDate     string     `gorm:"column:activation_date;type:varchar(10);index"`
	StartMinute        int        `gorm:"column:start_minute"`
	EndMinute          int        `gorm:"column:end_minute"`
	Status             string     `gorm:"column:status;index"`
	SuspensionReason   string     `gorm:"column:suspension_reason"`
	SuspendedAt        *time.Time `gorm:"column:suspended_at"`
	ProofsValidated    bool       `gorm:"column:proofs_validated"`
	ProofsValidatedAt  *time.Time `gorm:"column:proofs_validated_at"`
	ProofsValidatedBy  string     `gorm:"column:proofs_validated_by"`
	ResponsibleAgentID string     `gorm:"column:responsible_agent_id"`
	Version            int64      `gorm:"column:version"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
	StartedAt          *time.Time `gorm:"column:started_at"`
	CompletedAt        *time.Time `gorm:"column:completed_at"`
}

func (activationModel) TableName() string {
	return "activations"
}

func activationModelFromEntity(item entities.Activation) activationModel {
	return activationModel{
		ActivationID:       strings.TrimSpace(item.ActivationID),
		CampaignID:         strings.TrimSpace(item.CampaignID),
		PlaceID:            strings.TrimSpace(item.PlaceID),
		Name:               item.Name,
		Description:        item.Description,
		Instructions:       item.Instructions,
		ActivationDate:     formatDate(item.Date),
		StartMinute:        int(item.StartTime),
		EndMinute:          int(item.EndTime),
		Status:             string(item.Status),
		SuspensionReason:   item.SuspensionReason,
		SuspendedAt:        normalizeOptionalTime(item.SuspendedAt),
		ProofsValidated:    item.ProofsValidated,
		ProofsValidatedAt:  normalizeOptionalTime(item.ProofsValidatedAt),
		ProofsValidatedBy:  item.ProofsValidatedBy,
		ResponsibleAgentID: strings.TrimSpace(item.ResponsibleAgentID),
		Version:            item.Version,
		CreatedAt:          item.CreatedAt.UTC(),
		UpdatedAt:          item.UpdatedAt.UTC(),
		StartedAt:          normalizeOptionalTime(item.StartedAt),
		CompletedAt:        normalizeOptionalTime(item.CompletedAt),
	}
}

func activationUpdatesFromEntity(item entities.Activation) map[string]any {
	return map[string]any{
		"campaign_id":          strings.TrimSpace(item.CampaignID),
		"place_id":             strings.TrimSpace(item.PlaceID),
		"name":                 item.Name,
		"description":          item.Description,
		"instructions":         item.Instructions,
		"activation_date":      formatDate(item.Date),
		"start_minute":         int(item.StartTime),
		"end_minute":           int(item.EndTime),
		"status":               string(item.Status),
		"suspension_reason":    item.SuspensionReason,
		"suspended_at":         normalizeOptionalTime(item.SuspendedAt),
		"proofs_validated":     item.ProofsValidated,
		"proofs_validated_at":  normalizeOptionalTime(item.ProofsValidatedAt),
		"proofs_validated_by":  item.ProofsValidatedBy,
		"responsible_agent_id": strings.TrimSpace(item.ResponsibleAgentID),
		"version":              item.Version + 1,
		"updated_at":           item.UpdatedAt.UTC(),
		"started_at":           normalizeOptionalTime(item.StartedAt),
		"completed_at":         normalizeOptionalTime(item.CompletedAt),
	}
}

func (m activationModel) toEntity(agentIDs []string) entities.Activation {
	return entities.Activation{
		ActivationID:       m.ActivationID,
		CampaignID:         m.CampaignID,
		PlaceID:            m.PlaceID,
		Name:               m.Name,
		Description:        m.Description,
		Instructions:       m.Instructions,
		Date:               parseDate(m.ActivationDate),
		StartTime:          entities.TimeOfDay(m.StartMinute),
		EndTime:            entities.TimeOfDay(m.EndMinute),
		Status:             entities.ActivationStatus(m.Status),
		SuspensionReason:   m.SuspensionReason,
		SuspendedAt:        normalizeOptionalTime(m.SuspendedAt),
		ProofsValidated:    m.ProofsValidated,
		ProofsValidatedAt:  normalizeOptionalTime(m.ProofsValidatedAt),
		ProofsValidatedBy:  m.ProofsValidatedBy,
		ResponsibleAgentID: m.ResponsibleAgentID,
		AgentIDs:           entities.NewAgentSet(agentIDs),
		Version:            m.Version,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
		StartedAt:          normalizeOptionalTime(m.StartedAt),
		CompletedAt:        normalizeOptionalTime(m.CompletedAt),
	}
}

type activationAgentModel struct {
	ActivationID string `gorm:"column:activation_id;primaryKey"`
	AgentID      string `gorm:"column:agent_id;primaryKey;index"`
}

func (activationAgentModel) TableName() string {
	return "activation_agents"
}

type agentModel struct {
	AgentID    string     `gorm:"column:agent_id;primaryKey"`
	UserID     string     `gorm:"column:user_id;uniqueIndex"`
	FullName   string     `gorm:"column:full_name"`
	Email      string     `gorm:"column:email"`
	Phone      string     `gorm:"column:phone"`
	Online     bool       `gorm:"column:online"`
	LastSeenAt *time.Time `gorm:"column:last_seen_at"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
}

func (agentModel) TableName() string {
	return "field_agents"
}

func agentModelFromEntity(item entities.Agent) agentModel {
	return agentModel{
		AgentID:    strings.TrimSpace(item.AgentID),
		UserID:     strings.TrimSpace(item.UserID),
		FullName:   item.FullName,
		Email:      item.Email,
		Phone:      item.Phone,
		Online:     item.Online,
		LastSeenAt: normalizeOptionalTime(item.LastSeenAt),
		CreatedAt:  item.CreatedAt.UTC(),
	}
}

func (m agentModel) toEntity() entities.Agent {
	return entities.Agent{
		AgentID:    m.AgentID,
		UserID:     m.UserID,
		FullName:   m.FullName,
		Email:      m.Email,
		Phone:      m.Phone,
		Online:     m.Online,
		LastSeenAt: normalizeOptionalTime(m.LastSeenAt),
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

type positionModel struct {
	PositionID     string    `gorm:"column:position_id;primaryKey"`
	AgentID        string    `gorm:"column:agent_id;index:idx_positions_agent_recorded,priority:1"`
	Latitude       float64   `gorm:"column:latitude"`
	Longitude      float64   `gorm:"column:longitude"`
	AccuracyMeters float64   `gorm:"column:accuracy_meters"`
	RecordedAt     time.Time `gorm:"column:recorded_at;index:idx_positions_agent_recorded,priority:2"`
}

func (positionModel) TableName() string {
	return "agent_positions"
}

func (m positionModel) toEntity() entities.Position {
	return entities.Position{
		PositionID:     m.PositionID,
		AgentID:        m.AgentID,
		Latitude:       m.Latitude,
		Longitude:      m.Longitude,
		AccuracyMeters: m.AccuracyMeters,
		RecordedAt:     m.RecordedAt.UTC(),
	}
}

type incidentModel struct {
	IncidentID   string     `gorm:"column:incident_id;primaryKey"`
	AgentID      string     `gorm:"column:agent_id;index"`
	ActivationID string     `gorm:"column:activation_id;index"`
	Title        string     `gorm:"column:title"`
	Description  string     `gorm:"column:description"`
	Priority     string     `gorm:"column:priority"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	ResolvedAt   *time.Time `gorm:"column:resolved_at"`
}

func (incidentModel) TableName() string {
	return "incidents"
}

type stateHistoryModel struct {
	HistoryID    string    `gorm:"column:history_id;primaryKey"`
	EntityType   string    `gorm:"column:entity_type;index:idx_state_history_entity,priority:1"`
	EntityID     string    `gorm:"column:entity_id;index:idx_state_history_entity,priority:2"`
	FromState    string    `gorm:"column:from_state"`
	ToState      string    `gorm:"column:to_state"`
	ChangedBy    string    `gorm:"column:changed_by"`
	ChangeReason string    `gorm:"column:change_reason"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (stateHistoryModel) TableName() string {
	return "activation_state_history"
}

type feedbackMarkerModel struct {
	FeedbackID   string    `gorm:"column:feedback_id;primaryKey"`
	CampaignID   string    `gorm:"column:campaign_id;index"`
	ActivationID string    `gorm:"column:activation_id;index"`
	IssuedAt     time.Time `gorm:"column:issued_at"`
}

func (feedbackMarkerModel) TableName() string {
	return "campaign_feedback_markers"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "activation_outbox"
}

func formatDate(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return entities.CivilDate(value).Format(entities.DateLayout)
}

func parseDate(value string) time.Time {
	parsed, err := entities.ParseDate(value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
