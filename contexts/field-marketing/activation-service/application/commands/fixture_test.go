package commands_test

import (
	"context"
	"testing"
	"time"

	"fieldops/contexts/field-marketing/activation-service/adapters/memory"
	"fieldops/contexts/field-marketing/activation-service/application/commands"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	"fieldops/contexts/field-marketing/activation-service/ports"

	"github.com/stretchr/testify/require"
)

// 2026-03-10 is "today" for every test in this package.
var fixtureNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memory.Store
	clock  *memory.FixedClock
	uow    ports.UnitOfWork
	policy entities.ConflictPolicy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	return &fixture{
		store: store,
		clock: memory.NewFixedClock(fixtureNow),
		uow:   store,
	}
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := entities.ParseDate(value)
	require.NoError(t, err)
	return parsed
}

func (f *fixture) createCampaign(t *testing.T, start string, end string) entities.Campaign {
	t.Helper()
	campaign, err := commands.CreateCampaignUseCase{
		UnitOfWork: f.uow,
		Clock:      f.clock,
		IDGen:      f.store,
	}.Execute(context.Background(), commands.CreateCampaignCommand{
		ActorID:   "manager-1",
		ClientID:  "client-1",
		Name:      "Spring tasting tour",
		StartDate: day(t, start),
		EndDate:   day(t, end),
	})
	require.NoError(t, err)
	return campaign
}

func (f *fixture) registerAgent(t *testing.T, name string) entities.Agent {
	t.Helper()
	agent, err := commands.RegisterAgentUseCase{
		Agents: f.store,
		Clock:  f.clock,
		IDGen:  f.store,
	}.Execute(context.Background(), commands.RegisterAgentCommand{
		UserID:   "user-" + name,
		FullName: name,
	})
	require.NoError(t, err)
	return agent
}

type activationInput struct {
	name      string
	date      string
	startTime entities.TimeOfDay
	endTime   entities.TimeOfDay
	agentIDs  []string
}

func (f *fixture) createActivation(t *testing.T, campaignID string, input activationInput) (entities.Activation, error) {
	t.Helper()
	if input.name == "" {
		input.name = "Store demo"
	}
	if input.startTime == 0 && input.endTime == 0 {
		input.startTime = entities.NewTimeOfDay(9, 0)
		input.endTime = entities.NewTimeOfDay(17, 0)
	}
	return f.createUseCase().Execute(context.Background(), commands.CreateActivationCommand{
		ActorID:    "manager-1",
		CampaignID: campaignID,
		Fields: commands.ActivationFields{
			PlaceID:   "place-1",
			Name:      input.name,
			Date:      day(t, input.date),
			StartTime: input.startTime,
			EndTime:   input.endTime,
		},
		AgentIDs: input.agentIDs,
	})
}

func (f *fixture) mustCreateActivation(t *testing.T, campaignID string, input activationInput) entities.Activation {
	t.Helper()
	activation, err := f.createActivation(t, campaignID, input)
	require.NoError(t, err)
	return activation
}

func (f *fixture) createUseCase() commands.CreateActivationUseCase {
	return commands.CreateActivationUseCase{
		UnitOfWork: f.uow,
		Clock:      f.clock,
		IDGen:      f.store,
		Policy:     f.policy,
	}
}

func (f *fixture) editUseCase() commands.EditActivationUseCase {
	return commands.EditActivationUseCase{
		UnitOfWork: f.uow,
		Clock:      f.clock,
		IDGen:      f.store,
		Policy:     f.policy,
	}
}

func (f *fixture) transitionUseCase() commands.TransitionActivationUseCase {
	return commands.TransitionActivationUseCase{
		UnitOfWork: f.uow,
		Clock:      f.clock,
		IDGen:      f.store,
	}
}

func (f *fixture) transition(activationID string, target entities.ActivationStatus, reason string) (entities.Activation, error) {
	return f.transitionUseCase().Execute(context.Background(), commands.TransitionActivationCommand{
		ActivationID: activationID,
		Target:       target,
		Reason:       reason,
		ActorID:      "manager-1",
	})
}

func (f *fixture) campaignStatus(t *testing.T, campaignID string) entities.CampaignStatus {
	t.Helper()
	campaign, err := f.store.GetCampaign(context.Background(), campaignID)
	require.NoError(t, err)
	return campaign.Status
}

func (f *fixture) outboxTypes() []string {
	items := f.store.OutboxEvents()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.EventType)
	}
	return out
}
