package ports

import (
	"context"
	"time"

	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	eventsv1 "fieldops/contracts/gen/events/v1"
)

// Clock supplies wall time and the civil "today" used by every date rule.
type Clock interface {
	Now() time.Time
	Today() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// CampaignRepository updates are optimistic: the row is written only while its
// stored version still equals campaign.Version, and the stored version becomes
// campaign.Version+1. A stale version fails with ErrVersionConflict.
type CampaignRepository interface {
	CreateCampaign(ctx context.Context, campaign entities.Campaign) error
	GetCampaign(ctx context.Context, campaignID string) (entities.Campaign, error)
	// LockCampaign reads the campaign and holds a row lock until the
	// surrounding transaction ends.
	LockCampaign(ctx context.Context, campaignID string) (entities.Campaign, error)
	UpdateCampaign(ctx context.Context, campaign entities.Campaign) error
	// DeleteCampaign cascades the campaign's activations and their assignments.
	DeleteCampaign(ctx context.Context, campaignID string) error
}

// ActivationRepository persists activations together with their agent set.
// UpdateActivation replaces the stored agent set wholesale.
type ActivationRepository interface {
	CreateActivation(ctx context.Context, activation entities.Activation) error
	GetActivation(ctx context.Context, activationID string) (entities.Activation, error)
	UpdateActivation(ctx context.Context, activation entities.Activation) error
	DeleteActivation(ctx context.Context, activationID string) error
	ListActivationsByCampaign(ctx context.Context, campaignID string) ([]entities.Activation, error)
	// ListOpenActivationsOnDate returns every non-completed activation on date.
	ListOpenActivationsOnDate(ctx context.Context, date time.Time) ([]entities.Activation, error)
}

type AgentRepository interface {
	CreateAgent(ctx context.Context, agent entities.Agent) error
	GetAgent(ctx context.Context, agentID string) (entities.Agent, error)
	ListAgents(ctx context.Context) ([]entities.Agent, error)
	// GetAgentsByIDs returns the agents that exist; callers compare lengths.
	GetAgentsByIDs(ctx context.Context, agentIDs []string) ([]entities.Agent, error)
	// MarkAgentsSeen moves each agent's LastSeenAt forward to the given time.
	// Older times are ignored.
	MarkAgentsSeen(ctx context.Context, seenAt map[string]time.Time) error
}

type PositionRepository interface {
	AppendPositions(ctx context.Context, positions []entities.Position) error
	ListPositions(ctx context.Context, agentID string, limit int) ([]entities.Position, error)
}

type IncidentRepository interface {
	CreateIncident(ctx context.Context, incident entities.Incident) error
}

type HistoryRepository interface {
	AppendState(ctx context.Context, item entities.StateHistory) error
}

// FeedbackReader answers whether feedback was issued against a campaign or any
// of its activations. Feedback itself is owned elsewhere.
type FeedbackReader interface {
	CampaignHasFeedback(ctx context.Context, campaignID string) (bool, error)
}

// FeedbackRecorder stores markers learned from feedback.issued events.
// recorded is false when the marker was already known.
type FeedbackRecorder interface {
	RecordFeedback(ctx context.Context, marker entities.FeedbackMarker) (recorded bool, err error)
}

// ExpiredRecord is one row completed by an expiry pass.
type ExpiredRecord struct {
	EntityID   string
	CampaignID string
	FromStatus string
}

type ExpiryRepository interface {
	// CompleteExpiredCampaigns completes, in one statement, every campaign whose
	// EndDate is before today and whose status is neither completed nor cancelled.
	CompleteExpiredCampaigns(ctx context.Context, today time.Time, now time.Time) ([]ExpiredRecord, error)
	// CompleteExpiredActivations completes, in one statement, every
	// non-completed activation dated before today.
	CompleteExpiredActivations(ctx context.Context, today time.Time, now time.Time) ([]ExpiredRecord, error)
}

type EventEnvelope = eventsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// Store is everything a use case may touch inside one transaction.
type Store interface {
	CampaignRepository
	ActivationRepository
	AgentRepository
	PositionRepository
	IncidentRepository
	HistoryRepository
	FeedbackReader
	ExpiryRepository
	OutboxWriter
}

// UnitOfWork runs fn against a Store bound to a single transaction. Returning
// an error from fn rolls every write back.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// Locker hands out named, expiring locks so overlapping sweeps can be skipped.
// acquired is false when somebody else holds the lock.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// PositionSource reports where an agent currently is.
type PositionSource interface {
	Locate(ctx context.Context, agent entities.Agent, at time.Time) (entities.Position, error)
}

type Metrics interface {
	ActivationTransitioned(from entities.ActivationStatus, to entities.ActivationStatus)
	CampaignStatusChanged(to entities.CampaignStatus)
	SchedulingConflictDetected(agents int)
	ExpirySwept(campaigns int, activations int, elapsed time.Duration)
	PositionsSampled(count int)
	OutboxRelayed(published int, failed int)
}
