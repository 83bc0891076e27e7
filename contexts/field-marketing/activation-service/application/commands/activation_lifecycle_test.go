package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fieldops/contexts/field-marketing/activation-service/application/commands"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
	eventsv1 "fieldops/contracts/gen/events/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateActivationRecordsHistoryAndEvent(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	agent := f.registerAgent(t, "Alice")

	activation := f.mustCreateActivation(t, campaign.CampaignID, activationInput{
		date:     "2026-03-12",
		agentIDs: []string{agent.AgentID, " " + agent.AgentID + " "},
	})

	assert.Equal(t, entities.ActivationStatusPlanned, activation.Status)
	assert.Equal(t, entities.AgentSet{agent.AgentID}, activation.AgentIDs)
	assert.Contains(t, f.outboxTypes(), eventsv1.EventActivationCreated)
	assert.Equal(t, entities.CampaignStatusInPreparation, f.campaignStatus(t, campaign.CampaignID))
}

func TestCreateActivationInThePastIsCompleted(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")

	activation := f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: "2026-03-05"})

	assert.Equal(t, entities.ActivationStatusCompleted, activation.Status)
	require.NotNil(t, activation.CompletedAt)
	// The only activation is completed, so the campaign follows.
	assert.Equal(t, entities.CampaignStatusCompleted, f.campaignStatus(t, campaign.CampaignID))
}

func TestActivationOutsideCampaignWindowIsRejected(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")

	_, err := f.createActivation(t, campaign.CampaignID, activationInput{date: "2026-04-02"})
	require.ErrorIs(t, err, domainerrors.ErrDateOutsideCampaignWindow)
	require.ErrorIs(t, err, domainerrors.ErrValidation)

	items, err := f.store.ListActivationsByCampaign(context.Background(), campaign.CampaignID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCampaignWindowBoundsAreInclusive(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-10", "2026-03-31")

	_, err := f.createActivation(t, campaign.CampaignID, activationInput{date: "2026-03-10"})
	require.NoError(t, err)
	_, err = f.createActivation(t, campaign.CampaignID, activationInput{date: "2026-03-31"})
	require.NoError(t, err)
}

func TestCreateActivationRejectsUnknownAgentAndForeignResponsible(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	alice := f.registerAgent(t, "Alice")
	bob := f.registerAgent(t, "Bob")

	_, err := f.createActivation(t, campaign.CampaignID, activationInput{date: "2026-03-12", agentIDs: []string{"ghost"}})
	require.ErrorIs(t, err, domainerrors.ErrAgentNotFound)

	_, err = f.createUseCase().Execute(context.Background(), commands.CreateActivationCommand{
		CampaignID: campaign.CampaignID,
		Fields: commands.ActivationFields{
			PlaceID:            "place-1",
			Name:               "Store demo",
			Date:               day(t, "2026-03-12"),
			StartTime:          entities.NewTimeOfDay(9, 0),
			EndTime:            entities.NewTimeOfDay(12, 0),
			ResponsibleAgentID: bob.AgentID,
		},
		AgentIDs: []string{alice.AgentID},
	})
	require.ErrorIs(t, err, domainerrors.ErrResponsibleNotAssigned)
}

func TestSameDateConflictNamesCommittedActivation(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	alice := f.registerAgent(t, "Alice")

	booked := f.mustCreateActivation(t, campaign.CampaignID, activationInput{
		name:      "Morning tasting",
		date:      "2026-03-12",
		startTime: entities.NewTimeOfDay(9, 0),
		endTime:   entities.NewTimeOfDay(11, 0),
		agentIDs:  []string{alice.AgentID},
	})

	_, err := f.createActivation(t, campaign.CampaignID, activationInput{
		name:      "Evening tasting",
		date:      "2026-03-12",
		startTime: entities.NewTimeOfDay(18, 0),
		endTime:   entities.NewTimeOfDay(20, 0),
		agentIDs:  []string{alice.AgentID},
	})
	require.ErrorIs(t, err, domainerrors.ErrAgentSchedulingConflict)
	require.ErrorIs(t, err, domainerrors.ErrConflict)

	var conflictErr *domainerrors.SchedulingConflictError
	require.True(t, errors.As(err, &conflictErr))
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, alice.AgentID, conflictErr.Conflicts[0].AgentID)
	assert.Equal(t, "Alice", conflictErr.Conflicts[0].AgentName)
	require.Len(t, conflictErr.Conflicts[0].Activations, 1)
	assert.Equal(t, booked.ActivationID, conflictErr.Conflicts[0].Activations[0].ActivationID)
	assert.Contains(t, err.Error(), "Morning tasting")

	// Another day is free.
	_, err = f.createActivation(t, campaign.CampaignID, activationInput{date: "2026-03-13", agentIDs: []string{alice.AgentID}})
	require.NoError(t, err)
}

func TestTimeOverlapPolicyAllowsDisjointWindows(t *testing.T) {
	f := newFixture(t)
	f.policy = entities.ConflictPolicyTimeOverlap
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	alice := f.registerAgent(t, "Alice")

	f.mustCreateActivation(t, campaign.CampaignID, activationInput{
		date:      "2026-03-12",
		startTime: entities.NewTimeOfDay(9, 0),
		endTime:   entities.NewTimeOfDay(12, 0),
		agentIDs:  []string{alice.AgentID},
	})

	_, err := f.createActivation(t, campaign.CampaignID, activationInput{
		date:      "2026-03-12",
		startTime: entities.NewTimeOfDay(13, 0),
		endTime:   entities.NewTimeOfDay(15, 0),
		agentIDs:  []string{alice.AgentID},
	})
	require.NoError(t, err)

	_, err = f.createActivation(t, campaign.CampaignID, activationInput{
		date:      "2026-03-12",
		startTime: entities.NewTimeOfDay(11, 0),
		endTime:   entities.NewTimeOfDay(14, 0),
		agentIDs:  []string{alice.AgentID},
	})
	require.ErrorIs(t, err, domainerrors.ErrAgentSchedulingConflict)
}

func TestCreateActivationInCancelledCampaignFails(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	_, err := commands.CancelCampaignUseCase{UnitOfWork: f.uow, Clock: f.clock, IDGen: f.store}.
		Execute(context.Background(), commands.CancelCampaignCommand{CampaignID: campaign.CampaignID, ActorID: "manager-1"})
	require.NoError(t, err)

	_, err = f.createActivation(t, campaign.CampaignID, activationInput{date: "2026-03-12"})
	require.ErrorIs(t, err, domainerrors.ErrCampaignCancelled)
}

func TestStartWithoutAgentsFailsRegardlessOfDate(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")

	for _, date := range []string{"2026-03-10", "2026-03-12"} {
		activation := f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: date})
		_, err := f.transition(activation.ActivationID, entities.ActivationStatusInProgress, "")
		require.ErrorIs(t, err, domainerrors.ErrMissingAgentsForStart, date)
	}
}

func TestStartWithoutAgentsReportedBeforeActorCheck(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	alice := f.registerAgent(t, "Alice")
	activation := f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: "2026-03-10"})

	_, err := f.transitionUseCase().Execute(context.Background(), commands.TransitionActivationCommand{
		ActivationID: activation.ActivationID,
		Target:       entities.ActivationStatusInProgress,
		ExpectedFrom: entities.ActivationStatusPlanned,
		ActorAgentID: alice.AgentID,
	})
	require.ErrorIs(t, err, domainerrors.ErrMissingAgentsForStart)
	assert.False(t, errors.Is(err, domainerrors.ErrAgentNotAssigned))
}

func TestStartOnlyOnScheduledDate(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	alice := f.registerAgent(t, "Alice")

	activation := f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: "2026-03-12", agentIDs: []string{alice.AgentID}})
	_, err := f.transition(activation.ActivationID, entities.ActivationStatusInProgress, "")
	require.ErrorIs(t, err, domainerrors.ErrWrongDateForStart)

	f.clock.Set(day(t, "2026-03-12").Add(8 * time.Hour))
	started, err := f.transition(activation.ActivationID, entities.ActivationStatusInProgress, "")
	require.NoError(t, err)
	assert.Equal(t, entities.ActivationStatusInProgress, started.Status)
	require.NotNil(t, started.StartedAt)
	assert.Equal(t, entities.CampaignStatusInProgress, f.campaignStatus(t, campaign.CampaignID))
}

func TestIllegalTransitionLeavesStatusUnchanged(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	alice := f.registerAgent(t, "Alice")
	activation := f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: "2026-03-10", agentIDs: []string{alice.AgentID}})
	historyBefore := len(f.store.StateHistory())

	cases := []entities.ActivationStatus{
		entities.ActivationStatusCompleted,
		entities.ActivationStatusSuspended,
		entities.ActivationStatusPlanned,
	}
	for _, target := range cases {
		_, err := f.transition(activation.ActivationID, target, "weather")
		var transitionErr *domainerrors.TransitionError
		require.True(t, errors.As(err, &transitionErr), string(target))
		assert.Equal(t, string(entities.ActivationStatusPlanned), transitionErr.From)
		require.ErrorIs(t, err, domainerrors.ErrInvalidTransition)
	}

	stored, err := f.store.GetActivation(context.Background(), activation.ActivationID)
	require.NoError(t, err)
	assert.Equal(t, entities.ActivationStatusPlanned, stored.Status)
	assert.Equal(t, activation.Version, stored.Version)
	assert.Len(t, f.store.StateHistory(), historyBefore)
}

func TestSuspendRequiresReasonAndResumeRequiresSuspended(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	alice := f.registerAgent(t, "Alice")
	activation := f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: "2026-03-10", agentIDs: []string{alice.AgentID}})

	// Resume pins the source status, so it cannot start a planned activation.
	_, err := f.transitionUseCase().Execute(context.Background(), commands.TransitionActivationCommand{
		ActivationID: activation.ActivationID,
		Target:       entities.ActivationStatusInProgress,
		ExpectedFrom: entities.ActivationStatusSuspended,
	})
	require.ErrorIs(t, err, domainerrors.ErrInvalidTransition)

	_, err = f.transition(activation.ActivationID, entities.ActivationStatusInProgress, "")
	require.NoError(t, err)

	_, err = f.transition(activation.ActivationID, entities.ActivationStatusSuspended, "   ")
	require.ErrorIs(t, err, domainerrors.ErrMissingSuspensionReason)

	suspended, err := f.transition(activation.ActivationID, entities.ActivationStatusSuspended, "rain")
	require.NoError(t, err)
	assert.Equal(t, "rain", suspended.SuspensionReason)
	require.NotNil(t, suspended.SuspendedAt)
	// Suspended activations no longer count as in progress.
	assert.Equal(t, entities.CampaignStatusInPreparation, f.campaignStatus(t, campaign.CampaignID))

	_, err = f.transition(activation.ActivationID, entities.ActivationStatusCompleted, "")
	require.ErrorIs(t, err, domainerrors.ErrInvalidTransition)

	resumed, err := f.transitionUseCase().Execute(context.Background(), commands.TransitionActivationCommand{
		ActivationID: activation.ActivationID,
		Target:       entities.ActivationStatusInProgress,
		ExpectedFrom: entities.ActivationStatusSuspended,
	})
	require.NoError(t, err)
	assert.Equal(t, entities.ActivationStatusInProgress, resumed.Status)
	assert.Contains(t, f.outboxTypes(), eventsv1.EventActivationResumed)
}

func TestPinnedSourceMismatchNamesActionAndExpectedStatus(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	alice := f.registerAgent(t, "Alice")
	activation := f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: "2026-03-10", agentIDs: []string{alice.AgentID}})
	_, err := f.transition(activation.ActivationID, entities.ActivationStatusInProgress, "")
	require.NoError(t, err)
	_, err = f.transition(activation.ActivationID, entities.ActivationStatusSuspended, "rain")
	require.NoError(t, err)

	_, err = f.transitionUseCase().Execute(context.Background(), commands.TransitionActivationCommand{
		ActivationID: activation.ActivationID,
		Target:       entities.ActivationStatusInProgress,
		ExpectedFrom: entities.ActivationStatusPlanned,
		Action:       "start",
	})
	var transitionErr *domainerrors.TransitionError
	require.True(t, errors.As(err, &transitionErr))
	require.ErrorIs(t, err, domainerrors.ErrInvalidTransition)
	assert.Equal(t, string(entities.ActivationStatusSuspended), transitionErr.From)
	assert.Equal(t, string(entities.ActivationStatusPlanned), transitionErr.Expected)
	assert.Contains(t, err.Error(), "start")
	assert.Contains(t, err.Error(), "must be planned")
	assert.NotContains(t, err.Error(), "suspended -> in_progress")
}

func TestAgentActorMustBeAssigned(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	alice := f.registerAgent(t, "Alice")
	bob := f.registerAgent(t, "Bob")
	activation := f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: "2026-03-10", agentIDs: []string{alice.AgentID}})

	_, err := f.transitionUseCase().Execute(context.Background(), commands.TransitionActivationCommand{
		ActivationID: activation.ActivationID,
		Target:       entities.ActivationStatusInProgress,
		ActorAgentID: bob.AgentID,
	})
	require.ErrorIs(t, err, domainerrors.ErrAgentNotAssigned)

	started, err := f.transitionUseCase().Execute(context.Background(), commands.TransitionActivationCommand{
		ActivationID: activation.ActivationID,
		Target:       entities.ActivationStatusInProgress,
		ActorAgentID: alice.AgentID,
	})
	require.NoError(t, err)

	history := f.store.StateHistory()
	var changedBy string
	for _, item := range history {
		if item.EntityID == started.ActivationID && item.ToState == string(entities.ActivationStatusInProgress) {
			changedBy = item.ChangedBy
		}
	}
	assert.Equal(t, alice.AgentID, changedBy)
}

func TestFinishingLastActivationCompletesCampaign(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	alice := f.registerAgent(t, "Alice")

	today := f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: "2026-03-10", agentIDs: []string{alice.AgentID}})
	f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: "2026-03-05"})
	assert.Equal(t, entities.CampaignStatusInPreparation, f.campaignStatus(t, campaign.CampaignID))

	_, err := f.transition(today.ActivationID, entities.ActivationStatusInProgress, "")
	require.NoError(t, err)
	assert.Equal(t, entities.CampaignStatusInProgress, f.campaignStatus(t, campaign.CampaignID))

	finished, err := f.transition(today.ActivationID, entities.ActivationStatusCompleted, "")
	require.NoError(t, err)
	require.NotNil(t, finished.CompletedAt)

	stored, err := f.store.GetCampaign(context.Background(), campaign.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, entities.CampaignStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	var aggregated bool
	for _, item := range f.store.StateHistory() {
		if item.EntityType == entities.EntityTypeCampaign &&
			item.FromState == string(entities.CampaignStatusInProgress) &&
			item.ToState == string(entities.CampaignStatusCompleted) {
			aggregated = item.ChangeReason == "aggregated"
		}
	}
	assert.True(t, aggregated)
	assert.Contains(t, f.outboxTypes(), eventsv1.EventCampaignStatus)
}

func TestEditActivation(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	alice := f.registerAgent(t, "Alice")
	bob := f.registerAgent(t, "Bob")
	activation := f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: "2026-03-12", agentIDs: []string{alice.AgentID}})

	fields := commands.ActivationFields{
		PlaceID:            "place-2",
		Name:               "Store demo (moved)",
		Date:               day(t, "2026-03-12"),
		StartTime:          entities.NewTimeOfDay(10, 0),
		EndTime:            entities.NewTimeOfDay(12, 0),
		ResponsibleAgentID: bob.AgentID,
	}

	// Keeping its own agents on the same day does not conflict with itself.
	edited, err := f.editUseCase().Execute(context.Background(), commands.EditActivationCommand{
		ActorID:      "manager-1",
		ActivationID: activation.ActivationID,
		Fields:       fields,
		AgentIDs:     []string{bob.AgentID, alice.AgentID},
	})
	require.NoError(t, err)
	assert.Equal(t, "place-2", edited.PlaceID)
	assert.Equal(t, entities.NewAgentSet([]string{alice.AgentID, bob.AgentID}), edited.AgentIDs)
	assert.Equal(t, activation.Version+1, edited.Version)

	// Rescheduling into the past completes it.
	fields.Date = day(t, "2026-03-02")
	past, err := f.editUseCase().Execute(context.Background(), commands.EditActivationCommand{
		ActivationID: activation.ActivationID,
		Fields:       fields,
		AgentIDs:     []string{bob.AgentID},
	})
	require.NoError(t, err)
	assert.Equal(t, entities.ActivationStatusCompleted, past.Status)

	_, err = f.editUseCase().Execute(context.Background(), commands.EditActivationCommand{
		ActivationID: activation.ActivationID,
		Fields:       fields,
		AgentIDs:     []string{bob.AgentID},
	})
	require.ErrorIs(t, err, domainerrors.ErrActivationNotEditable)
}

func TestEditInProgressActivationCannotDropAllAgents(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	alice := f.registerAgent(t, "Alice")
	activation := f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: "2026-03-10", agentIDs: []string{alice.AgentID}})
	_, err := f.transition(activation.ActivationID, entities.ActivationStatusInProgress, "")
	require.NoError(t, err)

	_, err = f.editUseCase().Execute(context.Background(), commands.EditActivationCommand{
		ActivationID: activation.ActivationID,
		Fields: commands.ActivationFields{
			PlaceID:   "place-1",
			Name:      "Store demo",
			Date:      day(t, "2026-03-10"),
			StartTime: entities.NewTimeOfDay(9, 0),
			EndTime:   entities.NewTimeOfDay(17, 0),
		},
	})
	require.ErrorIs(t, err, domainerrors.ErrMissingAgentsForStart)
}

func TestMovingActivationRecomputesBothCampaigns(t *testing.T) {
	f := newFixture(t)
	source := f.createCampaign(t, "2026-03-01", "2026-03-31")
	target := f.createCampaign(t, "2026-03-01", "2026-03-31")
	done := f.mustCreateActivation(t, source.CampaignID, activationInput{date: "2026-03-02"})
	moving := f.mustCreateActivation(t, source.CampaignID, activationInput{date: "2026-03-12"})
	require.Equal(t, entities.ActivationStatusCompleted, done.Status)
	require.Equal(t, entities.CampaignStatusInPreparation, f.campaignStatus(t, source.CampaignID))

	_, err := f.editUseCase().Execute(context.Background(), commands.EditActivationCommand{
		ActivationID: moving.ActivationID,
		CampaignID:   target.CampaignID,
		Fields: commands.ActivationFields{
			PlaceID:   "place-1",
			Name:      "Store demo",
			Date:      day(t, "2026-03-12"),
			StartTime: entities.NewTimeOfDay(9, 0),
			EndTime:   entities.NewTimeOfDay(17, 0),
		},
	})
	require.NoError(t, err)

	// Only the completed activation is left behind.
	assert.Equal(t, entities.CampaignStatusCompleted, f.campaignStatus(t, source.CampaignID))
	assert.Equal(t, entities.CampaignStatusInPreparation, f.campaignStatus(t, target.CampaignID))
}

func TestDeleteActivationRecomputesCampaign(t *testing.T) {
	f := newFixture(t)
	campaign := f.createCampaign(t, "2026-03-01", "2026-03-31")
	f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: "2026-03-02"})
	pending := f.mustCreateActivation(t, campaign.CampaignID, activationInput{date: "2026-03-20"})
	require.Equal(t, entities.CampaignStatusInPreparation, f.campaignStatus(t, campaign.CampaignID))

	err := commands.DeleteActivationUseCase{UnitOfWork: f.uow, Clock: f.clock, IDGen: f.store}.
		Execute(context.Background(), commands.DeleteActivationCommand{ActivationID: pending.ActivationID})
	require.NoError(t, err)

	_, err = f.store.GetActivation(context.Background(), pending.ActivationID)
	require.ErrorIs(t, err, domainerrors.ErrActivationNotFound)
	assert.Equal(t, entities.CampaignStatusCompleted, f.campaignStatus(t, campaign.CampaignID))
	assert.Contains(t, f.outboxTypes(), eventsv1.EventActivationDeleted)
}
