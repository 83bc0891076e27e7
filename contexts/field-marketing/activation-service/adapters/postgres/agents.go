package postgresadapter

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"

	"gorm.io/gorm"
)

func (r *Repository) CreateAgent(ctx context.Context, agent entities.Agent) error {
	row := agentModelFromEntity(agent)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *Repository) GetAgent(ctx context.Context, agentID string) (entities.Agent, error) {
	var row agentModel
	err := r.db.WithContext(ctx).
		Where("agent_id = ?", strings.TrimSpace(agentID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Agent{}, domainerrors.ErrAgentNotFound
		}
		return entities.Agent{}, translateError(err)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListAgents(ctx context.Context) ([]entities.Agent, error) {
	var rows []agentModel
	if err := r.db.WithContext(ctx).
		Order("full_name ASC, agent_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, translateError(err)
	}
	items := make([]entities.Agent, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetAgentsByIDs(ctx context.Context, agentIDs []string) ([]entities.Agent, error) {
	ids := entities.NewAgentSet(agentIDs)
	if len(ids) == 0 {
		return []entities.Agent{}, nil
	}
	var rows []agentModel
	if err := r.db.WithContext(ctx).
		Where("agent_id IN ?", []string(ids)).
		Order("agent_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, translateError(err)
	}
	items := make([]entities.Agent, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// MarkAgentsSeen only moves last_seen_at forward, so late fixes never rewind it.
func (r *Repository) MarkAgentsSeen(ctx context.Context, seenAt map[string]time.Time) error {
	db := r.db.WithContext(ctx)
	for _, agentID := range slices.Sorted(maps.Keys(seenAt)) {
		at := seenAt[agentID].UTC()
		result := db.Model(&agentModel{}).
			Where("agent_id = ? AND (last_seen_at IS NULL OR last_seen_at < ?)", agentID, at).
			Updates(map[string]any{"last_seen_at": at, "online": true})
		if result.Error != nil {
			return translateError(result.Error)
		}
		if result.RowsAffected == 0 {
			if _, err := r.GetAgent(ctx, agentID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Repository) AppendPositions(ctx context.Context, positions []entities.Position) error {
	if len(positions) == 0 {
		return nil
	}
	rows := make([]positionModel, 0, len(positions))
	for _, position := range positions {
		rows = append(rows, positionModel{
			PositionID:     strings.TrimSpace(position.PositionID),
			AgentID:        strings.TrimSpace(position.AgentID),
			Latitude:       position.Latitude,
			Longitude:      position.Longitude,
			AccuracyMeters: position.AccuracyMeters,
			RecordedAt:     position.RecordedAt.UTC(),
		})
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&rows, 200).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *Repository) ListPositions(ctx context.Context, agentID string, limit int) ([]entities.Position, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []positionModel
	if err := r.db.WithContext(ctx).
		Where("agent_id = ?", strings.TrimSpace(agentID)).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, translateError(err)
	}
	slices.Reverse(rows)
	items := make([]entities.Position, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CreateIncident(ctx context.Context, incident entities.Incident) error {
	row := incidentModel{
		IncidentID:   strings.TrimSpace(incident.IncidentID),
		AgentID:      strings.TrimSpace(incident.AgentID),
		ActivationID: strings.TrimSpace(incident.ActivationID),
		Title:        incident.Title,
		Description:  incident.Description,
		Priority:     string(incident.Priority),
		Status:       string(incident.Status),
		CreatedAt:    incident.CreatedAt.UTC(),
		ResolvedAt:   normalizeOptionalTime(incident.ResolvedAt),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translateError(err)
	}
	return nil
}
