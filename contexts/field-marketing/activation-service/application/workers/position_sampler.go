package workers

import (
	"context"
	"log/slog"
	"time"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	"fieldops/contexts/field-marketing/activation-service/ports"
)

const PositionSampleLockName = "fieldops:activation-service:position-sample"

// PositionSampler asks the position source for every known agent and appends
// the fixes in a single transaction, moving each agent's LastSeenAt with them.
type PositionSampler struct {
	Agents     ports.AgentRepository
	UnitOfWork ports.UnitOfWork
	Source     ports.PositionSource
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Locker     ports.Locker
	LockTTL    time.Duration
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

func (p PositionSampler) RunOnce(ctx context.Context) error {
	_, err := p.Sample(ctx)
	return err
}

// Sample returns how many positions were stored.
func (p PositionSampler) Sample(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(p.Logger)

	if p.Locker != nil {
		ttl := p.LockTTL
		if ttl <= 0 {
			ttl = time.Minute
		}
		release, acquired, err := p.Locker.TryLock(ctx, PositionSampleLockName, ttl)
		if err != nil {
			return 0, err
		}
		if !acquired {
			logger.Debug("position sample already running",
				"event", "position_sample_skipped",
				"module", application.ModuleName,
				"layer", "worker",
			)
			return 0, nil
		}
		defer func() { _ = release(context.WithoutCancel(ctx)) }()
	}

	// Agents registered after this snapshot wait for the next sweep.
	agents, err := p.Agents.ListAgents(ctx)
	if err != nil {
		logger.Error("position sample agent list failed",
			"event", "position_sample_list_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}
	if len(agents) == 0 {
		return 0, nil
	}

	now := p.Clock.Now().UTC()
	positions := make([]entities.Position, 0, len(agents))
	for _, agent := range agents {
		position, err := p.Source.Locate(ctx, agent, now)
		if err != nil {
			logger.Warn("agent position unavailable",
				"event", "position_sample_agent_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"agent_id", agent.AgentID,
				"error", err.Error(),
			)
			continue
		}
		position.AgentID = agent.AgentID
		if position.RecordedAt.IsZero() {
			position.RecordedAt = now
		}
		if !position.Valid() {
			continue
		}
		position.PositionID, err = p.IDGen.NewID(ctx)
		if err != nil {
			return 0, err
		}
		positions = append(positions, position)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	err = p.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
		if err := store.AppendPositions(ctx, positions); err != nil {
			return err
		}
		return store.MarkAgentsSeen(ctx, entities.LatestFixes(positions))
	})
	if err != nil {
		logger.Error("position sample write failed",
			"event", "position_sample_write_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}

	application.ResolveMetrics(p.Metrics).PositionsSampled(len(positions))
	logger.Info("position sample completed",
		"event", "position_sample_completed",
		"module", application.ModuleName,
		"layer", "worker",
		"agents", len(agents),
		"positions", len(positions),
	)
	return len(positions), nil
}
