package memory

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
	"fieldops/contexts/field-marketing/activation-service/ports"

	"github.com/google/uuid"
)

type outboxRow struct {
	message     ports.OutboxMessage
	publishedAt *time.Time
}

type snapshot struct {
	campaigns   map[string]entities.Campaign
	activations map[string]entities.Activation
	agents      map[string]entities.Agent
	positions   []entities.Position
	incidents   map[string]entities.Incident
	stateLog    []entities.StateHistory
	outbox      []outboxRow
	feedback    map[string]entities.FeedbackMarker
}

// Store keeps every aggregate in process memory. Transactions are serialized
// and roll back by restoring a snapshot taken when they began.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	campaigns   map[string]entities.Campaign
	activations map[string]entities.Activation
	agents      map[string]entities.Agent
	positions   []entities.Position
	incidents   map[string]entities.Incident
	stateLog    []entities.StateHistory
	outbox      []outboxRow
	feedback    map[string]entities.FeedbackMarker
}

func NewStore() *Store {
	return &Store{
		campaigns:   make(map[string]entities.Campaign),
		activations: make(map[string]entities.Activation),
		agents:      make(map[string]entities.Agent),
		positions:   make([]entities.Position, 0),
		incidents:   make(map[string]entities.Incident),
		stateLog:    make([]entities.StateHistory, 0),
		outbox:      make([]outboxRow, 0),
		feedback:    make(map[string]entities.FeedbackMarker),
	}
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, store ports.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	saved := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.restore(saved)
		return err
	}
	return nil
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		campaigns:   maps.Clone(s.campaigns),
		activations: maps.Clone(s.activations),
		agents:      maps.Clone(s.agents),
		positions:   slices.Clone(s.positions),
		incidents:   maps.Clone(s.incidents),
		stateLog:    slices.Clone(s.stateLog),
		outbox:      slices.Clone(s.outbox),
		feedback:    maps.Clone(s.feedback),
	}
}

func (s *Store) restore(saved snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns = saved.campaigns
	s.activations = saved.activations
	s.agents = saved.agents
	s.positions = saved.positions
	s.incidents = saved.incidents
	s.stateLog = saved.stateLog
	s.outbox = saved.outbox
	s.feedback = saved.feedback
}

func (s *Store) CreateCampaign(_ context.Context, campaign entities.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[campaign.CampaignID]; exists {
		return domainerrors.ErrDuplicateRecord
	}
	s.campaigns[campaign.CampaignID] = campaign
	return nil
}

func (s *Store) GetCampaign(_ context.Context, campaignID string) (entities.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.campaigns[strings.TrimSpace(campaignID)]
	if !exists {
		return entities.Campaign{}, domainerrors.ErrCampaignNotFound
	}
	return item, nil
}

// LockCampaign is a plain read: transactions are already serialized.
func (s *Store) LockCampaign(ctx context.Context, campaignID string) (entities.Campaign, error) {
	return s.GetCampaign(ctx, campaignID)
}

func (s *Store) UpdateCampaign(_ context.Context, campaign entities.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.campaigns[campaign.CampaignID]
	if !exists {
		return domainerrors.ErrCampaignNotFound
	}
	if stored.Version != campaign.Version {
		return domainerrors.ErrVersionConflict
	}
	campaign.Version++
	s.campaigns[campaign.CampaignID] = campaign
	return nil
}

func (s *Store) DeleteCampaign(_ context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaignID = strings.TrimSpace(campaignID)
	if _, exists := s.campaigns[campaignID]; !exists {
		return domainerrors.ErrCampaignNotFound
	}
	delete(s.campaigns, campaignID)
	for id, activation := range s.activations {
		if activation.CampaignID == campaignID {
			delete(s.activations, id)
		}
	}
	return nil
}

func (s *Store) CreateActivation(_ context.Context, activation entities.Activation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.activations[activation.ActivationID]; exists {
		return domainerrors.ErrDuplicateRecord
	}
	if _, exists := s.campaigns[activation.CampaignID]; !exists {
		return domainerrors.ErrCampaignNotFound
	}
	s.activations[activation.ActivationID] = cloneActivation(activation)
	return nil
}

func (s *Store) GetActivation(_ context.Context, activationID string) (entities.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.activations[strings.TrimSpace(activationID)]
	if !exists {
		return entities.Activation{}, domainerrors.ErrActivationNotFound
	}
	return cloneActivation(item), nil
}

func (s *Store) UpdateActivation(_ context.Context, activation entities.Activation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.activations[activation.ActivationID]
	if !exists {
		return domainerrors.ErrActivationNotFound
	}
	if stored.Version != activation.Version {
		return domainerrors.ErrVersionConflict
	}
	activation.Version++
	s.activations[activation.ActivationID] = cloneActivation(activation)
	return nil
}

func (s *Store) DeleteActivation(_ context.Context, activationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	activationID = strings.TrimSpace(activationID)
	if _, exists := s.activations[activationID]; !exists {
		return domainerrors.ErrActivationNotFound
	}
	delete(s.activations, activationID)
	return nil
}

func (s *Store) ListActivationsByCampaign(_ context.Context, campaignID string) ([]entities.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Activation, 0)
	for _, item := range s.activations {
		if item.CampaignID == strings.TrimSpace(campaignID) {
			items = append(items, cloneActivation(item))
		}
	}
	sortActivations(items)
	return items, nil
}

func (s *Store) ListOpenActivationsOnDate(_ context.Context, date time.Time) ([]entities.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := entities.CivilDate(date)
	items := make([]entities.Activation, 0)
	for _, item := range s.activations {
		if item.Status == entities.ActivationStatusCompleted || !entities.CivilDate(item.Date).Equal(day) {
			continue
		}
		items = append(items, cloneActivation(item))
	}
	sortActivations(items)
	return items, nil
}

func (s *Store) CreateAgent(_ context.Context, agent entities.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[agent.AgentID]; exists {
		return domainerrors.ErrDuplicateRecord
	}
	for _, existing := range s.agents {
		if existing.UserID == agent.UserID {
			return domainerrors.ErrDuplicateRecord
		}
	}
	s.agents[agent.AgentID] = agent
	return nil
}

func (s *Store) GetAgent(_ context.Context, agentID string) (entities.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.agents[strings.TrimSpace(agentID)]
	if !exists {
		return entities.Agent{}, domainerrors.ErrAgentNotFound
	}
	return item, nil
}

func (s *Store) ListAgents(_ context.Context) ([]entities.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := slices.Collect(maps.Values(s.agents))
	sort.Slice(items, func(i, j int) bool {
		if items[i].FullName == items[j].FullName {
			return items[i].AgentID < items[j].AgentID
		}
		return items[i].FullName < items[j].FullName
	})
	return items, nil
}

func (s *Store) GetAgentsByIDs(_ context.Context, agentIDs []string) ([]entities.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Agent, 0, len(agentIDs))
	for _, id := range entities.NewAgentSet(agentIDs) {
		if item, exists := s.agents[id]; exists {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *Store) MarkAgentsSeen(_ context.Context, seenAt map[string]time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for agentID, at := range seenAt {
		agent, exists := s.agents[agentID]
		if !exists {
			return domainerrors.ErrAgentNotFound
		}
		if agent.LastSeenAt != nil && !at.After(*agent.LastSeenAt) {
			continue
		}
		at = at.UTC()
		agent.LastSeenAt = &at
		agent.Online = true
		s.agents[agentID] = agent
	}
	return nil
}

func (s *Store) AppendPositions(_ context.Context, positions []entities.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, position := range positions {
		if _, exists := s.agents[position.AgentID]; !exists {
			return domainerrors.ErrAgentNotFound
		}
	}
	s.positions = append(s.positions, positions...)
	return nil
}

func (s *Store) ListPositions(_ context.Context, agentID string, limit int) ([]entities.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Position, 0)
	for _, item := range s.positions {
		if item.AgentID == strings.TrimSpace(agentID) {
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].RecordedAt.Before(items[j].RecordedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

func (s *Store) CreateIncident(_ context.Context, incident entities.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.incidents[incident.IncidentID]; exists {
		return domainerrors.ErrDuplicateRecord
	}
	s.incidents[incident.IncidentID] = incident
	return nil
}

func (s *Store) AppendState(_ context.Context, item entities.StateHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateLog = append(s.stateLog, item)
	return nil
}

func (s *Store) CampaignHasFeedback(_ context.Context, campaignID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	campaignID = strings.TrimSpace(campaignID)
	for _, marker := range s.feedback {
		if marker.CampaignID == campaignID {
			return true, nil
		}
		if activation, exists := s.activations[marker.ActivationID]; exists && activation.CampaignID == campaignID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RecordFeedback(_ context.Context, marker entities.FeedbackMarker) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.feedback[marker.FeedbackID]; exists {
		return false, nil
	}
	s.feedback[marker.FeedbackID] = marker
	return true, nil
}

func (s *Store) CompleteExpiredCampaigns(_ context.Context, today time.Time, now time.Time) ([]ports.ExpiredRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today = entities.CivilDate(today)
	records := make([]ports.ExpiredRecord, 0)
	for id, campaign := range s.campaigns {
		if campaign.Status.IsTerminal() || !entities.CivilDate(campaign.EndDate).Before(today) {
			continue
		}
		records = append(records, ports.ExpiredRecord{EntityID: id, CampaignID: id, FromStatus: string(campaign.Status)})
		completedAt := now
		campaign.Status = entities.CampaignStatusCompleted
		campaign.CompletedAt = &completedAt
		campaign.UpdatedAt = now
		campaign.Version++
		s.campaigns[id] = campaign
	}
	sortRecords(records)
	return records, nil
}

func (s *Store) CompleteExpiredActivations(_ context.Context, today time.Time, now time.Time) ([]ports.ExpiredRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today = entities.CivilDate(today)
	records := make([]ports.ExpiredRecord, 0)
	for id, activation := range s.activations {
		if activation.Status == entities.ActivationStatusCompleted || !entities.CivilDate(activation.Date).Before(today) {
			continue
		}
		records = append(records, ports.ExpiredRecord{EntityID: id, CampaignID: activation.CampaignID, FromStatus: string(activation.Status)})
		completedAt := now
		activation.Status = entities.ActivationStatusCompleted
		activation.CompletedAt = &completedAt
		activation.UpdatedAt = now
		activation.Version++
		s.activations[id] = activation
	}
	sortRecords(records)
	return records, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.outbox = append(s.outbox, outboxRow{message: ports.OutboxMessage{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		CreatedAt:    envelope.OccurredAt,
	}})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.publishedAt != nil {
			continue
		}
		items = append(items, row.message)
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].message.OutboxID == outboxID {
			at := publishedAt
			s.outbox[i].publishedAt = &at
			return nil
		}
	}
	return domainerrors.ErrNotFound
}

// StateHistory returns a copy of every recorded status change.
func (s *Store) StateHistory() []entities.StateHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.stateLog)
}

// OutboxEvents returns every outbox row, published or not, in append order.
func (s *Store) OutboxEvents() []ports.OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		items = append(items, row.message)
	}
	return items
}

func (s *Store) Incidents() []entities.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Collect(maps.Values(s.incidents))
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) Today() time.Time {
	return entities.CivilDate(time.Now().UTC())
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func cloneActivation(item entities.Activation) entities.Activation {
	item.AgentIDs = slices.Clone(item.AgentIDs)
	return item
}

func sortActivations(items []entities.Activation) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Date.Equal(items[j].Date) {
			if items[i].StartTime == items[j].StartTime {
				return items[i].ActivationID < items[j].ActivationID
			}
			return items[i].StartTime < items[j].StartTime
		}
		return items[i].Date.Before(items[j].Date)
	})
}

func sortRecords(items []ports.ExpiredRecord) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].EntityID < items[j].EntityID
	})
}
