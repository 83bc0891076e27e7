package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
	"fieldops/contexts/field-marketing/activation-service/ports"
)

type RegisterAgentCommand struct {
	UserID   string
	FullName string
	Email    string
	Phone    string
}

type RegisterAgentUseCase struct {
	Agents ports.AgentRepository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc RegisterAgentUseCase) Execute(ctx context.Context, cmd RegisterAgentCommand) (agent entities.Agent, err error) {
	ctx, span := startSpan(ctx, "RegisterAgent")
	defer func() { endSpan(span, err) }()

	agent = entities.Agent{
		UserID:    strings.TrimSpace(cmd.UserID),
		FullName:  strings.TrimSpace(cmd.FullName),
		Email:     strings.ToLower(strings.TrimSpace(cmd.Email)),
		Phone:     strings.TrimSpace(cmd.Phone),
		CreatedAt: uc.Clock.Now().UTC(),
	}
	if !agent.ValidateBasics() {
		return entities.Agent{}, domainerrors.ErrInvalidAgentInput
	}
	agent.AgentID, err = uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Agent{}, err
	}
	if err := uc.Agents.CreateAgent(ctx, agent); err != nil {
		return entities.Agent{}, err
	}

	application.ResolveLogger(uc.Logger).Info("agent registered",
		"event", "agent_registered",
		"module", application.ModuleName,
		"layer", "application",
		"agent_id", agent.AgentID,
		"user_id", agent.UserID,
	)
	return agent, nil
}

type RecordPositionCommand struct {
	AgentID        string
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	// RecordedAt defaults to the current time.
	RecordedAt time.Time
}

// RecordPositionUseCase stores a fix and moves the agent's LastSeenAt in the
// same transaction.
type RecordPositionUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc RecordPositionUseCase) Execute(ctx context.Context, cmd RecordPositionCommand) (position entities.Position, err error) {
	ctx, span := startSpan(ctx, "RecordPosition")
	defer func() { endSpan(span, err) }()

	recordedAt := cmd.RecordedAt.UTC()
	if cmd.RecordedAt.IsZero() {
		recordedAt = uc.Clock.Now().UTC()
	}
	position = entities.Position{
		AgentID:        strings.TrimSpace(cmd.AgentID),
		Latitude:       cmd.Latitude,
		Longitude:      cmd.Longitude,
		AccuracyMeters: cmd.AccuracyMeters,
		RecordedAt:     recordedAt,
	}
	if !position.Valid() {
		return entities.Position{}, domainerrors.ErrInvalidPosition
	}
	position.PositionID, err = uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Position{}, err
	}
	err = uc.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
		if _, err := store.GetAgent(ctx, position.AgentID); err != nil {
			return err
		}
		positions := []entities.Position{position}
		if err := store.AppendPositions(ctx, positions); err != nil {
			return err
		}
		return store.MarkAgentsSeen(ctx, entities.LatestFixes(positions))
	})
	if err != nil {
		return entities.Position{}, err
	}

	application.ResolveLogger(uc.Logger).Debug("agent position recorded",
		"event", "agent_position_recorded",
		"module", application.ModuleName,
		"layer", "application",
		"agent_id", position.AgentID,
	)
	return position, nil
}
