package postgresadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
	"fieldops/contexts/field-marketing/activation-service/ports"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return NewRepository(db, nil)
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := entities.ParseDate(value)
	require.NoError(t, err)
	return parsed
}

func seedCampaign(t *testing.T, repo *Repository, id string, start string, end string) entities.Campaign {
	t.Helper()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	campaign := entities.Campaign{
		CampaignID: id,
		ClientID:   "client-1",
		Name:       "Spring launch",
		StartDate:  mustDate(t, start),
		EndDate:    mustDate(t, end),
		Status:     entities.CampaignStatusInPreparation,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, repo.CreateCampaign(context.Background(), campaign))
	return campaign
}

func seedAgent(t *testing.T, repo *Repository, id string, name string) {
	t.Helper()
	require.NoError(t, repo.CreateAgent(context.Background(), entities.Agent{
		AgentID:   id,
		UserID:    "user-" + id,
		FullName:  name,
		CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}))
}

func seedActivation(t *testing.T, repo *Repository, id string, campaignID string, date string, status entities.ActivationStatus, agents ...string) entities.Activation {
	t.Helper()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	activation := entities.Activation{
		ActivationID: id,
		CampaignID:   campaignID,
		PlaceID:      "place-1",
		Name:         "Activation " + id,
		Date:         mustDate(t, date),
		StartTime:    entities.NewTimeOfDay(9, 0),
		EndTime:      entities.NewTimeOfDay(17, 0),
		Status:       status,
		AgentIDs:     entities.NewAgentSet(agents),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repo.CreateActivation(context.Background(), activation))
	return activation
}

func TestCampaignRoundTripAndVersionCheck(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	campaign := seedCampaign(t, repo, "cmp-1", "2026-03-01", "2026-03-31")

	loaded, err := repo.LockCampaign(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, campaign.StartDate, loaded.StartDate)
	assert.Equal(t, campaign.EndDate, loaded.EndDate)
	assert.Equal(t, int64(1), loaded.Version)

	loaded.Status = entities.CampaignStatusInProgress
	require.NoError(t, repo.UpdateCampaign(ctx, loaded))

	stale := loaded
	stale.Status = entities.CampaignStatusCompleted
	err = repo.UpdateCampaign(ctx, stale)
	assert.True(t, errors.Is(err, domainerrors.ErrVersionConflict))

	reloaded, err := repo.GetCampaign(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, entities.CampaignStatusInProgress, reloaded.Status)
	assert.Equal(t, int64(2), reloaded.Version)

	_, err = repo.GetCampaign(ctx, "missing")
	assert.True(t, errors.Is(err, domainerrors.ErrCampaignNotFound))
}

func TestActivationAssignmentsReplacedWholesale(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedCampaign(t, repo, "cmp-1", "2026-03-01", "2026-03-31")
	seedAgent(t, repo, "ag-1", "Ada")
	seedAgent(t, repo, "ag-2", "Bo")
	seedAgent(t, repo, "ag-3", "Cy")
	activation := seedActivation(t, repo, "act-1", "cmp-1", "2026-03-10", entities.ActivationStatusPlanned, "ag-1", "ag-2")

	loaded, err := repo.GetActivation(ctx, "act-1")
	require.NoError(t, err)
	assert.Equal(t, entities.AgentSet{"ag-1", "ag-2"}, loaded.AgentIDs)
	assert.Equal(t, activation.Date, loaded.Date)
	assert.Equal(t, entities.NewTimeOfDay(9, 0), loaded.StartTime)

	loaded.AgentIDs = entities.NewAgentSet([]string{"ag-3"})
	require.NoError(t, repo.UpdateActivation(ctx, loaded))

	reloaded, err := repo.GetActivation(ctx, "act-1")
	require.NoError(t, err)
	assert.Equal(t, entities.AgentSet{"ag-3"}, reloaded.AgentIDs)
	assert.Equal(t, int64(2), reloaded.Version)

	err = repo.UpdateActivation(ctx, loaded)
	assert.True(t, errors.Is(err, domainerrors.ErrVersionConflict))
}

func TestListOpenActivationsOnDateSkipsCompleted(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedCampaign(t, repo, "cmp-1", "2026-03-01", "2026-03-31")
	seedAgent(t, repo, "ag-1", "Ada")
	seedActivation(t, repo, "act-1", "cmp-1", "2026-03-10", entities.ActivationStatusPlanned, "ag-1")
	seedActivation(t, repo, "act-2", "cmp-1", "2026-03-10", entities.ActivationStatusCompleted, "ag-1")
	seedActivation(t, repo, "act-3", "cmp-1", "2026-03-11", entities.ActivationStatusPlanned, "ag-1")

	items, err := repo.ListOpenActivationsOnDate(ctx, mustDate(t, "2026-03-10"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "act-1", items[0].ActivationID)
	assert.True(t, items[0].AgentIDs.Contains("ag-1"))
}

func TestCompleteExpiredIsBulkAndReportsPriorStatus(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedCampaign(t, repo, "cmp-old", "2026-02-01", "2026-03-09")
	seedCampaign(t, repo, "cmp-live", "2026-03-01", "2026-03-31")
	seedActivation(t, repo, "act-old", "cmp-old", "2026-03-09", entities.ActivationStatusSuspended)
	seedActivation(t, repo, "act-today", "cmp-live", "2026-03-10", entities.ActivationStatusPlanned)

	today := mustDate(t, "2026-03-10")
	now := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	var campaigns, activations []ports.ExpiredRecord
	err := repo.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
		var err error
		campaigns, err = store.CompleteExpiredCampaigns(ctx, today, now)
		if err != nil {
			return err
		}
		activations, err = store.CompleteExpiredActivations(ctx, today, now)
		return err
	})
	require.NoError(t, err)

	require.Len(t, campaigns, 1)
	assert.Equal(t, "cmp-old", campaigns[0].EntityID)
	assert.Equal(t, string(entities.CampaignStatusInPreparation), campaigns[0].FromStatus)
	require.Len(t, activations, 1)
	assert.Equal(t, "act-old", activations[0].EntityID)
	assert.Equal(t, "cmp-old", activations[0].CampaignID)
	assert.Equal(t, string(entities.ActivationStatusSuspended), activations[0].FromStatus)

	old, err := repo.GetActivation(ctx, "act-old")
	require.NoError(t, err)
	assert.Equal(t, entities.ActivationStatusCompleted, old.Status)
	assert.Equal(t, int64(2), old.Version)
	live, err := repo.GetActivation(ctx, "act-today")
	require.NoError(t, err)
	assert.Equal(t, entities.ActivationStatusPlanned, live.Status)
}

func TestWithinTransactionRollsBack(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedCampaign(t, repo, "cmp-1", "2026-03-01", "2026-03-31")

	boom := errors.New("boom")
	err := repo.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
		campaign, err := store.LockCampaign(ctx, "cmp-1")
		if err != nil {
			return err
		}
		campaign.Status = entities.CampaignStatusCancelled
		if err := store.UpdateCampaign(ctx, campaign); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	campaign, err := repo.GetCampaign(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, entities.CampaignStatusInPreparation, campaign.Status)
}

func TestDeleteCampaignCascadesAndFeedbackLookup(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedCampaign(t, repo, "cmp-1", "2026-03-01", "2026-03-31")
	seedAgent(t, repo, "ag-1", "Ada")
	seedActivation(t, repo, "act-1", "cmp-1", "2026-03-10", entities.ActivationStatusPlanned, "ag-1")

	hasFeedback, err := repo.CampaignHasFeedback(ctx, "cmp-1")
	require.NoError(t, err)
	assert.False(t, hasFeedback)

	recorded, err := repo.RecordFeedback(ctx, entities.FeedbackMarker{FeedbackID: "fb-1", ActivationID: "act-1", IssuedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, recorded)
	recorded, err = repo.RecordFeedback(ctx, entities.FeedbackMarker{FeedbackID: "fb-1", ActivationID: "act-1", IssuedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, recorded)

	hasFeedback, err = repo.CampaignHasFeedback(ctx, "cmp-1")
	require.NoError(t, err)
	assert.True(t, hasFeedback)

	require.NoError(t, repo.DeleteCampaign(ctx, "cmp-1"))
	_, err = repo.GetActivation(ctx, "act-1")
	assert.True(t, errors.Is(err, domainerrors.ErrActivationNotFound))
	assert.True(t, errors.Is(repo.DeleteCampaign(ctx, "cmp-1"), domainerrors.ErrCampaignNotFound))
}

func TestAgentsPositionsAndDuplicates(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedAgent(t, repo, "ag-1", "Ada")

	err := repo.CreateAgent(ctx, entities.Agent{AgentID: "ag-2", UserID: "user-ag-1", FullName: "Clone"})
	assert.True(t, errors.Is(err, domainerrors.ErrDuplicateRecord))

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	positions := []entities.Position{
		{PositionID: "p-1", AgentID: "ag-1", Latitude: 48.85, Longitude: 2.35, AccuracyMeters: 10, RecordedAt: base},
		{PositionID: "p-2", AgentID: "ag-1", Latitude: 48.86, Longitude: 2.36, AccuracyMeters: 12, RecordedAt: base.Add(5 * time.Minute)},
		{PositionID: "p-3", AgentID: "ag-1", Latitude: 48.87, Longitude: 2.37, AccuracyMeters: 8, RecordedAt: base.Add(10 * time.Minute)},
	}
	require.NoError(t, repo.AppendPositions(ctx, positions))

	latest, err := repo.ListPositions(ctx, "ag-1", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "p-2", latest[0].PositionID)
	assert.Equal(t, "p-3", latest[1].PositionID)

	agents, err := repo.GetAgentsByIDs(ctx, []string{"ag-1", "ghost"})
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "Ada", agents[0].FullName)
}

func TestMarkAgentsSeenOnlyMovesForward(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedAgent(t, repo, "ag-1", "Ada")

	seen := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.MarkAgentsSeen(ctx, map[string]time.Time{"ag-1": seen}))
	require.NoError(t, repo.MarkAgentsSeen(ctx, map[string]time.Time{"ag-1": seen.Add(-time.Hour)}))

	agent, err := repo.GetAgent(ctx, "ag-1")
	require.NoError(t, err)
	require.NotNil(t, agent.LastSeenAt)
	assert.True(t, seen.Equal(*agent.LastSeenAt))
	assert.True(t, agent.WithPresence(seen.Add(5*time.Minute)).Online)
	assert.False(t, agent.WithPresence(seen.Add(11*time.Minute)).Online)

	err = repo.MarkAgentsSeen(ctx, map[string]time.Time{"ghost": seen})
	assert.True(t, errors.Is(err, domainerrors.ErrAgentNotFound))
}

func TestOutboxPendingAndPublished(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	occurred := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	envelope := ports.EventEnvelope{EventID: "evt-1", EventType: "activation.started", PartitionKey: "act-1", OccurredAt: occurred, SchemaVersion: 1}
	require.NoError(t, repo.AppendOutbox(ctx, envelope))
	require.NoError(t, repo.AppendOutbox(ctx, envelope))

	pending, err := repo.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "activation.started", pending[0].EventType)

	require.NoError(t, repo.MarkOutboxPublished(ctx, "evt-1", occurred.Add(time.Second)))
	pending, err = repo.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
