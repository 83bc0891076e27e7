package httpadapter

import (
	"context"
	"testing"
	"time"

	"fieldops/contexts/field-marketing/activation-service/adapters/memory"
	"fieldops/contexts/field-marketing/activation-service/application/commands"
	"fieldops/contexts/field-marketing/activation-service/application/workers"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
	httptransport "fieldops/contexts/field-marketing/activation-service/transport/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var handlerNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

// newStaleHandler seeds an activation left in progress on the previous day,
// which the expiry sweep would complete.
func newStaleHandler(t *testing.T, sweepOnRequest bool) (Handler, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	clock := memory.NewFixedClock(handlerNow)

	require.NoError(t, store.CreateCampaign(ctx, entities.Campaign{
		CampaignID: "campaign-1",
		ClientID:   "client-1",
		Name:       "Spring",
		StartDate:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:     entities.CampaignStatusInProgress,
		Version:    1,
	}))
	require.NoError(t, store.CreateAgent(ctx, entities.Agent{AgentID: "agent-a", UserID: "user-a", FullName: "Alice"}))
	require.NoError(t, store.CreateActivation(ctx, entities.Activation{
		ActivationID: "act-stale",
		CampaignID:   "campaign-1",
		PlaceID:      "place-1",
		Name:         "Yesterday's tasting",
		Date:         time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		StartTime:    entities.NewTimeOfDay(9, 0),
		EndTime:      entities.NewTimeOfDay(17, 0),
		Status:       entities.ActivationStatusInProgress,
		AgentIDs:     entities.NewAgentSet([]string{"agent-a"}),
		Version:      1,
	}))

	return Handler{
		TransitionActivation:    commands.TransitionActivationUseCase{UnitOfWork: store, Clock: clock, IDGen: store},
		RecomputeCampaignStatus: commands.RecomputeCampaignStatusUseCase{UnitOfWork: store, Clock: clock, IDGen: store},
		Sweeper:                 workers.ExpirySweeper{UnitOfWork: store, Clock: clock, IDGen: store},
		Clock:                   clock,
		SweepOnRequest:          sweepOnRequest,
	}, store
}

func TestTransitionSweepsStaleActivationFirst(t *testing.T) {
	h, store := newStaleHandler(t, true)

	_, err := h.TransitionActivationHandler(context.Background(), "manager-1", "", "act-stale", ActionSuspend,
		httptransport.StatusActionRequest{Reason: "rain"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidTransition)

	stored, err := store.GetActivation(context.Background(), "act-stale")
	require.NoError(t, err)
	assert.Equal(t, entities.ActivationStatusCompleted, stored.Status)
}

func TestTransitionWithoutSweepSeesStaleStatus(t *testing.T) {
	h, _ := newStaleHandler(t, false)

	resp, err := h.TransitionActivationHandler(context.Background(), "manager-1", "", "act-stale", ActionSuspend,
		httptransport.StatusActionRequest{Reason: "rain"})
	require.NoError(t, err)
	assert.Equal(t, string(entities.ActivationStatusSuspended), resp.Activation.Status)
}

func TestRecomputeSweepsBeforeAggregating(t *testing.T) {
	h, store := newStaleHandler(t, true)

	resp, err := h.RecomputeCampaignStatusHandler(context.Background(), "manager-1", "campaign-1")
	require.NoError(t, err)
	// The only activation was completed by the sweep, so the campaign follows.
	assert.Equal(t, string(entities.CampaignStatusCompleted), resp.Status)
	assert.True(t, resp.Changed)

	stored, err := store.GetActivation(context.Background(), "act-stale")
	require.NoError(t, err)
	assert.Equal(t, entities.ActivationStatusCompleted, stored.Status)
}
