package v1

import (
	"encoding/json"
	"time"
)

// Event types emitted by the activation service.
const (
	EventActivationCreated   = "activation.created"
	EventActivationUpdated   = "activation.updated"
	EventActivationDeleted   = "activation.deleted"
	EventActivationStarted   = "activation.started"
	EventActivationSuspended = "activation.suspended"
	EventActivationResumed   = "activation.resumed"
	EventActivationCompleted = "activation.completed"
	EventProofsValidated     = "activation.proofs_validated"
	EventCampaignCreated     = "campaign.created"
	EventCampaignStatus      = "campaign.status_changed"
	EventCampaignDeleted     = "campaign.deleted"
	EventIncidentReported    = "incident.reported"
)

// Envelope is the versioned event wrapper written to the outbox and relayed
// to the broker. Fields may be added but never renamed.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}
