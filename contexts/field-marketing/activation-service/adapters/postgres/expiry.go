package postgresadapter

import (
	"context"
	"time"

	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	"fieldops/contexts/field-marketing/activation-service/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var terminalCampaignStatuses = []string{
	string(entities.CampaignStatusCompleted),
	string(entities.CampaignStatusCancelled),
}

func (r *Repository) CompleteExpiredCampaigns(ctx context.Context, today time.Time, now time.Time) ([]ports.ExpiredRecord, error) {
	db := r.db.WithContext(ctx)
	cutoff := formatDate(today)

	var rows []campaignModel
	query := db.Select("campaign_id", "status").
		Where("end_date < ? AND status NOT IN ?", cutoff, terminalCampaignStatuses).
		Order("campaign_id ASC")
	if r.lockingSupported() {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	if len(rows) == 0 {
		return []ports.ExpiredRecord{}, nil
	}

	ids := make([]string, 0, len(rows))
	records := make([]ports.ExpiredRecord, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.CampaignID)
		records = append(records, ports.ExpiredRecord{
			EntityID:   row.CampaignID,
			CampaignID: row.CampaignID,
			FromStatus: row.Status,
		})
	}

	timestamp := now.UTC()
	if err := db.Model(&campaignModel{}).
		Where("campaign_id IN ?", ids).
		Updates(map[string]any{
			"status":       string(entities.CampaignStatusCompleted),
			"completed_at": timestamp,
			"updated_at":   timestamp,
			"version":      gorm.Expr("version + 1"),
		}).
		Error; err != nil {
		return nil, translateError(err)
	}
	return records, nil
}

func (r *Repository) CompleteExpiredActivations(ctx context.Context, today time.Time, now time.Time) ([]ports.ExpiredRecord, error) {
	db := r.db.WithContext(ctx)
	cutoff := formatDate(today)

	var rows []activationModel
	query := db.Select("activation_id", "campaign_id", "status").
		Where("activation_date < ? AND status <> ?", cutoff, string(entities.ActivationStatusCompleted)).
		Order("activation_id ASC")
	if r.lockingSupported() {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	if len(rows) == 0 {
		return []ports.ExpiredRecord{}, nil
	}

	ids := make([]string, 0, len(rows))
	records := make([]ports.ExpiredRecord, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ActivationID)
		records = append(records, ports.ExpiredRecord{
			EntityID:   row.ActivationID,
			CampaignID: row.CampaignID,
			FromStatus: row.Status,
		})
	}

	timestamp := now.UTC()
	if err := db.Model(&activationModel{}).
		Where("activation_id IN ?", ids).
		Updates(map[string]any{
			"status":       string(entities.ActivationStatusCompleted),
			"completed_at": timestamp,
			"updated_at":   timestamp,
			"version":      gorm.Expr("version + 1"),
		}).
		Error; err != nil {
		return nil, translateError(err)
	}
	return records, nil
}
