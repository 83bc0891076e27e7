package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
	"fieldops/contexts/field-marketing/activation-service/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// AutoMigrate creates or updates every table the repository uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&campaignModel{},
		&activationModel{},
		&activationAgentModel{},
		&agentModel{},
		&positionModel{},
		&incidentModel{},
		&stateHistoryModel{},
		&feedbackMarkerModel{},
		&outboxModel{},
	)
}

func (r *Repository) WithinTransaction(ctx context.Context, fn func(ctx context.Context, store ports.Store) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Repository{db: tx, logger: r.logger})
	})
	return translateError(err)
}

// lockingSupported is false on sqlite, which serializes writers on its own.
func (r *Repository) lockingSupported() bool {
	return r.db.Dialector != nil && r.db.Dialector.Name() == "postgres"
}

func (r *Repository) CreateCampaign(ctx context.Context, campaign entities.Campaign) error {
	row := campaignModelFromEntity(campaign)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *Repository) GetCampaign(ctx context.Context, campaignID string) (entities.Campaign, error) {
	return r.findCampaign(r.db.WithContext(ctx), campaignID)
}

func (r *Repository) LockCampaign(ctx context.Context, campaignID string) (entities.Campaign, error) {
	tx := r.db.WithContext(ctx)
	if r.lockingSupported() {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.findCampaign(tx, campaignID)
}

func (r *Repository) findCampaign(tx *gorm.DB, campaignID string) (entities.Campaign, error) {
	var row campaignModel
	err := tx.Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Campaign{}, domainerrors.ErrCampaignNotFound
		}
		return entities.Campaign{}, translateError(err)
	}
	return row.toEntity(), nil
}

func (r *Repository) UpdateCampaign(ctx context.Context, campaign entities.Campaign) error {
	result := r.db.WithContext(ctx).
		Model(&campaignModel{}).
		Where("campaign_id = ? AND version = ?", strings.TrimSpace(campaign.CampaignID), campaign.Version).
		Updates(campaignUpdatesFromEntity(campaign))
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetCampaign(ctx, campaign.CampaignID); err != nil {
			return err
		}
		return domainerrors.ErrVersionConflict
	}
	return nil
}

func (r *Repository) DeleteCampaign(ctx context.Context, campaignID string) error {
	campaignID = strings.TrimSpace(campaignID)
	db := r.db.WithContext(ctx)
	activationIDs := db.Model(&activationModel{}).Select("activation_id").Where("campaign_id = ?", campaignID)
	if err := db.Where("activation_id IN (?)", activationIDs).Delete(&activationAgentModel{}).Error; err != nil {
		return translateError(err)
	}
	if err := db.Where("campaign_id = ?", campaignID).Delete(&activationModel{}).Error; err != nil {
		return translateError(err)
	}
	result := db.Where("campaign_id = ?", campaignID).Delete(&campaignModel{})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrCampaignNotFound
	}
	return nil
}

func (r *Repository) CreateActivation(ctx context.Context, activation entities.Activation) error {
	row := activationModelFromEntity(activation)
	db := r.db.WithContext(ctx)
	if err := db.Create(&row).Error; err != nil {
		return translateError(err)
	}
	return r.writeAssignments(db, row.ActivationID, activation.AgentIDs)
}

func (r *Repository) GetActivation(ctx context.Context, activationID string) (entities.Activation, error) {
	var row activationModel
	err := r.db.WithContext(ctx).
		Where("activation_id = ?", strings.TrimSpace(activationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Activation{}, domainerrors.ErrActivationNotFound
		}
		return entities.Activation{}, translateError(err)
	}
	items, err := r.attachAgents(ctx, []activationModel{row})
	if err != nil {
		return entities.Activation{}, err
	}
	return items[0], nil
}

func (r *Repository) UpdateActivation(ctx context.Context, activation entities.Activation) error {
	db := r.db.WithContext(ctx)
	activationID := strings.TrimSpace(activation.ActivationID)
	result := db.Model(&activationModel{}).
		Where("activation_id = ? AND version = ?", activationID, activation.Version).
		Updates(activationUpdatesFromEntity(activation))
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetActivation(ctx, activationID); err != nil {
			return err
		}
		return domainerrors.ErrVersionConflict
	}

	if err := db.Where("activation_id = ?", activationID).Delete(&activationAgentModel{}).Error; err != nil {
		return translateError(err)
	}
	return r.writeAssignments(db, activationID, activation.AgentIDs)
}

func (r *Repository) DeleteActivation(ctx context.Context, activationID string) error {
	activationID = strings.TrimSpace(activationID)
	db := r.db.WithContext(ctx)
	if err := db.Where("activation_id = ?", activationID).Delete(&activationAgentModel{}).Error; err != nil {
		return translateError(err)
	}
	result := db.Where("activation_id = ?", activationID).Delete(&activationModel{})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrActivationNotFound
	}
	return nil
}

func (r *Repository) ListActivationsByCampaign(ctx context.Context, campaignID string) ([]entities.Activation, error) {
	var rows []activationModel
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		Order("activation_date ASC, start_minute ASC, activation_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, translateError(err)
	}
	return r.attachAgents(ctx, rows)
}

func (r *Repository) ListOpenActivationsOnDate(ctx context.Context, date time.Time) ([]entities.Activation, error) {
	var rows []activationModel
	if err := r.db.WithContext(ctx).
		Where("activation_date = ? AND status <> ?", formatDate(date), string(entities.ActivationStatusCompleted)).
		Order("start_minute ASC, activation_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, translateError(err)
	}
	return r.attachAgents(ctx, rows)
}

func (r *Repository) writeAssignments(db *gorm.DB, activationID string, agentIDs entities.AgentSet) error {
	if len(agentIDs) == 0 {
		return nil
	}
	rows := make([]activationAgentModel, 0, len(agentIDs))
	for _, agentID := range agentIDs {
		rows = append(rows, activationAgentModel{ActivationID: activationID, AgentID: agentID})
	}
	if err := db.Create(&rows).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *Repository) attachAgents(ctx context.Context, rows []activationModel) ([]entities.Activation, error) {
	if len(rows) == 0 {
		return []entities.Activation{}, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ActivationID)
	}
	var assignments []activationAgentModel
	if err := r.db.WithContext(ctx).
		Where("activation_id IN ?", ids).
		Find(&assignments).
		Error; err != nil {
		return nil, translateError(err)
	}
	byActivation := make(map[string][]string, len(rows))
	for _, assignment := range assignments {
		byActivation[assignment.ActivationID] = append(byActivation[assignment.ActivationID], assignment.AgentID)
	}

	items := make([]entities.Activation, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity(byActivation[row.ActivationID]))
	}
	return items, nil
}

func (r *Repository) CampaignHasFeedback(ctx context.Context, campaignID string) (bool, error) {
	campaignID = strings.TrimSpace(campaignID)
	db := r.db.WithContext(ctx)
	activationIDs := db.Model(&activationModel{}).Select("activation_id").Where("campaign_id = ?", campaignID)

	var count int64
	if err := db.Model(&feedbackMarkerModel{}).
		Where("campaign_id = ? OR activation_id IN (?)", campaignID, activationIDs).
		Count(&count).
		Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

func (r *Repository) RecordFeedback(ctx context.Context, marker entities.FeedbackMarker) (bool, error) {
	row := feedbackMarkerModel{
		FeedbackID:   strings.TrimSpace(marker.FeedbackID),
		CampaignID:   strings.TrimSpace(marker.CampaignID),
		ActivationID: strings.TrimSpace(marker.ActivationID),
		IssuedAt:     marker.IssuedAt.UTC(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "feedback_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) AppendState(ctx context.Context, item entities.StateHistory) error {
	row := stateHistoryModel{
		HistoryID:    strings.TrimSpace(item.HistoryID),
		EntityType:   string(item.EntityType),
		EntityID:     strings.TrimSpace(item.EntityID),
		FromState:    item.FromState,
		ToState:      item.ToState,
		ChangedBy:    strings.TrimSpace(item.ChangedBy),
		ChangeReason: strings.TrimSpace(item.ChangeReason),
		CreatedAt:    item.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// ListStateHistory returns the recorded changes of one entity, oldest first.
func (r *Repository) ListStateHistory(ctx context.Context, entityType entities.EntityType, entityID string) ([]entities.StateHistory, error) {
	var rows []stateHistoryModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", string(entityType), strings.TrimSpace(entityID)).
		Order("created_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, translateError(err)
	}
	items := make([]entities.StateHistory, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.StateHistory{
			HistoryID:    row.HistoryID,
			EntityType:   entities.EntityType(row.EntityType),
			EntityID:     row.EntityID,
			FromState:    row.FromState,
			ToState:      row.ToState,
			ChangedBy:    row.ChangedBy,
			ChangeReason: row.ChangeReason,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}
