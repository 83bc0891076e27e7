package workers

import (
	"context"
	"log/slog"
	"time"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	"fieldops/contexts/field-marketing/activation-service/ports"
	eventsv1 "fieldops/contracts/gen/events/v1"
)

const ExpirySweepLockName = "fieldops:activation-service:expiry-sweep"

type SweepResult struct {
	CampaignsUpdated   int
	ActivationsUpdated int
	// Skipped is set when another sweep held the lock.
	Skipped bool
}

// ExpirySweeper completes campaigns whose window ended and activations whose
// date passed. It does not re-run the campaign aggregator.
type ExpirySweeper struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Locker     ports.Locker
	LockTTL    time.Duration
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

func (s ExpirySweeper) RunOnce(ctx context.Context) error {
	_, err := s.Sweep(ctx, s.Clock.Today())
	return err
}

func (s ExpirySweeper) Sweep(ctx context.Context, today time.Time) (SweepResult, error) {
	logger := application.ResolveLogger(s.Logger)
	started := time.Now()

	if s.Locker != nil {
		release, acquired, err := s.Locker.TryLock(ctx, ExpirySweepLockName, s.lockTTL())
		if err != nil {
			logger.Error("expiry sweep lock failed",
				"event", "expiry_sweep_lock_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"error", err.Error(),
			)
			return SweepResult{}, err
		}
		if !acquired {
			logger.Debug("expiry sweep already running",
				"event", "expiry_sweep_skipped",
				"module", application.ModuleName,
				"layer", "worker",
			)
			return SweepResult{Skipped: true}, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("expiry sweep lock release failed",
					"event", "expiry_sweep_lock_release_failed",
					"module", application.ModuleName,
					"layer", "worker",
					"error", err.Error(),
				)
			}
		}()
	}

	today = entities.CivilDate(today)
	now := s.Clock.Now().UTC()
	var result SweepResult
	err := s.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
		campaigns, err := store.CompleteExpiredCampaigns(ctx, today, now)
		if err != nil {
			return err
		}
		activations, err := store.CompleteExpiredActivations(ctx, today, now)
		if err != nil {
			return err
		}
		for _, record := range campaigns {
			if err := s.record(ctx, store, entities.EntityTypeCampaign, eventsv1.EventCampaignStatus, string(entities.CampaignStatusCompleted), record, now); err != nil {
				return err
			}
		}
		for _, record := range activations {
			if err := s.record(ctx, store, entities.EntityTypeActivation, eventsv1.EventActivationCompleted, string(entities.ActivationStatusCompleted), record, now); err != nil {
				return err
			}
		}
		result = SweepResult{CampaignsUpdated: len(campaigns), ActivationsUpdated: len(activations)}
		return nil
	})
	if err != nil {
		logger.Error("expiry sweep failed",
			"event", "expiry_sweep_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return SweepResult{}, err
	}

	application.ResolveMetrics(s.Metrics).ExpirySwept(result.CampaignsUpdated, result.ActivationsUpdated, time.Since(started))
	if result.CampaignsUpdated > 0 || result.ActivationsUpdated > 0 {
		logger.Info("expiry sweep completed",
			"event", "expiry_sweep_completed",
			"module", application.ModuleName,
			"layer", "worker",
			"today", today.Format(entities.DateLayout),
			"campaigns_completed", result.CampaignsUpdated,
			"activations_completed", result.ActivationsUpdated,
		)
	}
	return result, nil
}

func (s ExpirySweeper) record(
	ctx context.Context,
	store ports.Store,
	entityType entities.EntityType,
	eventType string,
	toState string,
	record ports.ExpiredRecord,
	now time.Time,
) error {
	historyID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	if err := store.AppendState(ctx, entities.StateHistory{
		HistoryID:    historyID,
		EntityType:   entityType,
		EntityID:     record.EntityID,
		FromState:    record.FromStatus,
		ToState:      toState,
		ChangedBy:    entities.SystemActor,
		ChangeReason: "expired",
		CreatedAt:    now,
	}); err != nil {
		return err
	}

	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"campaign_id": record.CampaignID,
		"from_status": record.FromStatus,
		"to_status":   toState,
		"reason":      "expired",
	}
	keyPath := "campaign_id"
	if entityType == entities.EntityTypeActivation {
		data["activation_id"] = record.EntityID
		keyPath = "activation_id"
	}
	envelope, err := application.NewEnvelope(ctx, eventID, eventType, keyPath, record.EntityID, now, data)
	if err != nil {
		return err
	}
	return store.AppendOutbox(ctx, envelope)
}

func (s ExpirySweeper) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return time.Minute
	}
	return s.LockTTL
}
