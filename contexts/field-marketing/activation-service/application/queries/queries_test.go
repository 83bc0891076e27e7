package queries_test

import (
	"context"
	"testing"
	"time"

	"fieldops/contexts/field-marketing/activation-service/adapters/memory"
	"fieldops/contexts/field-marketing/activation-service/application/queries"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	march12 = time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	march13 = time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
)

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.CreateCampaign(ctx, entities.Campaign{
		CampaignID: "campaign-1",
		ClientID:   "client-1",
		Name:       "Spring",
		StartDate:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:     entities.CampaignStatusInPreparation,
		Version:    1,
	}))
	for _, agent := range []entities.Agent{
		{AgentID: "agent-a", UserID: "user-a", FullName: "Alice"},
		{AgentID: "agent-b", UserID: "user-b", FullName: "Bob"},
		{AgentID: "agent-c", UserID: "user-c", FullName: "Carol"},
	} {
		require.NoError(t, store.CreateAgent(ctx, agent))
	}
	for _, activation := range []entities.Activation{
		{
			ActivationID: "act-morning",
			CampaignID:   "campaign-1",
			PlaceID:      "place-1",
			Name:         "Morning tasting",
			Date:         march12,
			StartTime:    entities.NewTimeOfDay(9, 0),
			EndTime:      entities.NewTimeOfDay(12, 0),
			Status:       entities.ActivationStatusPlanned,
			AgentIDs:     entities.NewAgentSet([]string{"agent-a"}),
			Version:      1,
		},
		{
			ActivationID: "act-done",
			CampaignID:   "campaign-1",
			PlaceID:      "place-2",
			Name:         "Finished early",
			Date:         march12,
			StartTime:    entities.NewTimeOfDay(8, 0),
			EndTime:      entities.NewTimeOfDay(9, 0),
			Status:       entities.ActivationStatusCompleted,
			AgentIDs:     entities.NewAgentSet([]string{"agent-b"}),
			Version:      1,
		},
	} {
		require.NoError(t, store.CreateActivation(ctx, activation))
	}
	return store
}

func TestCheckAgentConflictsSameDay(t *testing.T) {
	store := seedStore(t)
	uc := queries.CheckAgentConflictsUseCase{Activations: store, Agents: store}

	conflicts, err := uc.Execute(context.Background(), queries.CheckAgentConflictsQuery{
		Date:     march12,
		AgentIDs: []string{"agent-a", "agent-b", "agent-c"},
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "agent-a", conflicts[0].AgentID)
	assert.Equal(t, "Alice", conflicts[0].AgentName)
	require.Len(t, conflicts[0].Activations, 1)
	assert.Equal(t, "act-morning", conflicts[0].Activations[0].ActivationID)
	assert.Equal(t, "Morning tasting", conflicts[0].Activations[0].Name)

	conflicts, err = uc.Execute(context.Background(), queries.CheckAgentConflictsQuery{
		Date:                march12,
		AgentIDs:            []string{"agent-a"},
		ExcludeActivationID: "act-morning",
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	conflicts, err = uc.Execute(context.Background(), queries.CheckAgentConflictsQuery{
		Date:     march13,
		AgentIDs: []string{"agent-a"},
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestCheckAgentConflictsTimeOverlap(t *testing.T) {
	store := seedStore(t)
	uc := queries.CheckAgentConflictsUseCase{Activations: store, Agents: store, Policy: entities.ConflictPolicyTimeOverlap}

	conflicts, err := uc.Execute(context.Background(), queries.CheckAgentConflictsQuery{
		Date:      march12,
		AgentIDs:  []string{"agent-a"},
		StartTime: entities.NewTimeOfDay(13, 0),
		EndTime:   entities.NewTimeOfDay(15, 0),
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	// No window means the whole day.
	conflicts, err = uc.Execute(context.Background(), queries.CheckAgentConflictsQuery{
		Date:     march12,
		AgentIDs: []string{"agent-a"},
	})
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
}

func TestCheckAgentConflictsRequiresDate(t *testing.T) {
	store := seedStore(t)
	_, err := queries.CheckAgentConflictsUseCase{Activations: store, Agents: store}.
		Execute(context.Background(), queries.CheckAgentConflictsQuery{AgentIDs: []string{"agent-a"}})
	require.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestListAvailableAgents(t *testing.T) {
	store := seedStore(t)
	uc := queries.ListAvailableAgentsUseCase{Activations: store, Agents: store}

	agents, err := uc.Execute(context.Background(), queries.ListAvailableAgentsQuery{Date: march12})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"agent-b", "agent-c"}, agentIDs(agents))

	agents, err = uc.Execute(context.Background(), queries.ListAvailableAgentsQuery{Date: march12, ActivationID: "act-morning"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"agent-a", "agent-b", "agent-c"}, agentIDs(agents))
}

func TestListAvailableAgentsFollowsTimeOverlapPolicy(t *testing.T) {
	store := seedStore(t)
	uc := queries.ListAvailableAgentsUseCase{Activations: store, Agents: store, Policy: entities.ConflictPolicyTimeOverlap}
	conflicts := queries.CheckAgentConflictsUseCase{Activations: store, Agents: store, Policy: entities.ConflictPolicyTimeOverlap}

	afternoon := queries.ListAvailableAgentsQuery{
		Date:      march12,
		StartTime: entities.NewTimeOfDay(13, 0),
		EndTime:   entities.NewTimeOfDay(15, 0),
	}
	agents, err := uc.Execute(context.Background(), afternoon)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"agent-a", "agent-b", "agent-c"}, agentIDs(agents))

	found, err := conflicts.Execute(context.Background(), queries.CheckAgentConflictsQuery{
		Date:      afternoon.Date,
		AgentIDs:  []string{"agent-a"},
		StartTime: afternoon.StartTime,
		EndTime:   afternoon.EndTime,
	})
	require.NoError(t, err)
	assert.Empty(t, found)

	agents, err = uc.Execute(context.Background(), queries.ListAvailableAgentsQuery{
		Date:      march12,
		StartTime: entities.NewTimeOfDay(11, 0),
		EndTime:   entities.NewTimeOfDay(13, 0),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"agent-b", "agent-c"}, agentIDs(agents))
}

func TestListAvailableAgentsDerivesOnline(t *testing.T) {
	store := seedStore(t)
	now := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkAgentsSeen(context.Background(), map[string]time.Time{
		"agent-b": now.Add(-3 * time.Minute),
		"agent-c": now.Add(-time.Hour),
	}))

	uc := queries.ListAvailableAgentsUseCase{Activations: store, Agents: store, Clock: memory.NewFixedClock(now)}
	agents, err := uc.Execute(context.Background(), queries.ListAvailableAgentsQuery{Date: march13})
	require.NoError(t, err)

	online := make(map[string]bool, len(agents))
	for _, agent := range agents {
		online[agent.AgentID] = agent.Online
	}
	assert.Equal(t, map[string]bool{"agent-a": false, "agent-b": true, "agent-c": false}, online)
}

func TestListCampaignActivationsAndGetters(t *testing.T) {
	store := seedStore(t)

	items, err := queries.ListCampaignActivationsUseCase{Campaigns: store, Activations: store}.
		Execute(context.Background(), "campaign-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = queries.ListCampaignActivationsUseCase{Campaigns: store, Activations: store}.
		Execute(context.Background(), "missing")
	require.ErrorIs(t, err, domainerrors.ErrCampaignNotFound)

	activation, err := queries.GetActivationUseCase{Activations: store}.Execute(context.Background(), " act-morning ")
	require.NoError(t, err)
	assert.Equal(t, "Morning tasting", activation.Name)

	campaign, err := queries.GetCampaignUseCase{Campaigns: store}.Execute(context.Background(), "campaign-1")
	require.NoError(t, err)
	assert.Equal(t, "Spring", campaign.Name)
}

func TestListAgentPositionsReturnsLatest(t *testing.T) {
	store := seedStore(t)
	base := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	positions := make([]entities.Position, 0, 5)
	for i := range 5 {
		positions = append(positions, entities.Position{
			PositionID: "pos-" + string(rune('a'+i)),
			AgentID:    "agent-a",
			Latitude:   48.85,
			Longitude:  2.35,
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, store.AppendPositions(context.Background(), positions))

	uc := queries.ListAgentPositionsUseCase{Agents: store, Positions: store}
	items, err := uc.Execute(context.Background(), queries.ListAgentPositionsQuery{AgentID: "agent-a", Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "pos-d", items[0].PositionID)
	assert.Equal(t, "pos-e", items[1].PositionID)

	_, err = uc.Execute(context.Background(), queries.ListAgentPositionsQuery{AgentID: "ghost"})
	require.ErrorIs(t, err, domainerrors.ErrAgentNotFound)
}

func agentIDs(agents []entities.Agent) []string {
	out := make([]string, 0, len(agents))
	for _, agent := range agents {
		out = append(out, agent.AgentID)
	}
	return out
}
