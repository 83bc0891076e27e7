package activationservice

import (
	"log/slog"
	"time"

	httpadapter "fieldops/contexts/field-marketing/activation-service/adapters/http"
	"fieldops/contexts/field-marketing/activation-service/adapters/memory"
	"fieldops/contexts/field-marketing/activation-service/adapters/simulated"
	"fieldops/contexts/field-marketing/activation-service/application/commands"
	"fieldops/contexts/field-marketing/activation-service/application/queries"
	"fieldops/contexts/field-marketing/activation-service/application/workers"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	"fieldops/contexts/field-marketing/activation-service/ports"
)

type Module struct {
	Handler          httpadapter.Handler
	ExpirySweeper    workers.ExpirySweeper
	PositionSampler  workers.PositionSampler
	OutboxRelay      workers.OutboxRelay
	FeedbackConsumer workers.FeedbackIssuedConsumer
	Store            *memory.Store
}

type Dependencies struct {
	UnitOfWork ports.UnitOfWork
	// Store serves reads outside a transaction.
	Store       ports.Store
	Outbox      ports.OutboxRepository
	Feedback    ports.FeedbackRecorder
	Publisher   ports.EventPublisher
	Subscriber  ports.EventSubscriber
	Positions   ports.PositionSource
	Locker      ports.Locker
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Metrics     ports.Metrics

	ConflictPolicy          entities.ConflictPolicy
	SweepOnRequest          bool
	LockTTL                 time.Duration
	OutboxBatchSize         int
	FeedbackConsumerGroup   string
	DisableFeedbackConsumer bool
	Logger                  *slog.Logger
}

func NewModule(deps Dependencies) Module {
	sweeper := workers.ExpirySweeper{
		UnitOfWork: deps.UnitOfWork,
		Clock:      deps.Clock,
		IDGen:      deps.IDGenerator,
		Locker:     deps.Locker,
		LockTTL:    deps.LockTTL,
		Metrics:    deps.Metrics,
		Logger:     deps.Logger,
	}

	handler := httpadapter.Handler{
		CreateCampaign: commands.CreateCampaignUseCase{
			UnitOfWork: deps.UnitOfWork,
			Clock:      deps.Clock,
			IDGen:      deps.IDGenerator,
			Logger:     deps.Logger,
		},
		CancelCampaign: commands.CancelCampaignUseCase{
			UnitOfWork: deps.UnitOfWork,
			Clock:      deps.Clock,
			IDGen:      deps.IDGenerator,
			Metrics:    deps.Metrics,
			Logger:     deps.Logger,
		},
		DeleteCampaign: commands.DeleteCampaignUseCase{
			UnitOfWork: deps.UnitOfWork,
			Clock:      deps.Clock,
			IDGen:      deps.IDGenerator,
			Logger:     deps.Logger,
		},
		RecomputeCampaignStatus: commands.RecomputeCampaignStatusUseCase{
			UnitOfWork: deps.UnitOfWork,
			Clock:      deps.Clock,
			IDGen:      deps.IDGenerator,
			Metrics:    deps.Metrics,
			Logger:     deps.Logger,
		},
		CreateActivation: commands.CreateActivationUseCase{
			UnitOfWork: deps.UnitOfWork,
			Clock:      deps.Clock,
			IDGen:      deps.IDGenerator,
			Policy:     deps.ConflictPolicy,
			Metrics:    deps.Metrics,
			Logger:     deps.Logger,
		},
		EditActivation: commands.EditActivationUseCase{
			UnitOfWork: deps.UnitOfWork,
			Clock:      deps.Clock,
			IDGen:      deps.IDGenerator,
			Policy:     deps.ConflictPolicy,
			Metrics:    deps.Metrics,
			Logger:     deps.Logger,
		},
		TransitionActivation: commands.TransitionActivationUseCase{
			UnitOfWork: deps.UnitOfWork,
			Clock:      deps.Clock,
			IDGen:      deps.IDGenerator,
			Metrics:    deps.Metrics,
			Logger:     deps.Logger,
		},
		DeleteActivation: commands.DeleteActivationUseCase{
			UnitOfWork: deps.UnitOfWork,
			Clock:      deps.Clock,
			IDGen:      deps.IDGenerator,
			Metrics:    deps.Metrics,
			Logger:     deps.Logger,
		},
		ValidateProofs: commands.ValidateProofsUseCase{
			UnitOfWork: deps.UnitOfWork,
			Clock:      deps.Clock,
			IDGen:      deps.IDGenerator,
			Logger:     deps.Logger,
		},
		ReportIncident: commands.ReportIncidentUseCase{
			UnitOfWork: deps.UnitOfWork,
			Clock:      deps.Clock,
			IDGen:      deps.IDGenerator,
			Logger:     deps.Logger,
		},
		RegisterAgent: commands.RegisterAgentUseCase{
			Agents: deps.Store,
			Clock:  deps.Clock,
			IDGen:  deps.IDGenerator,
			Logger: deps.Logger,
		},
		RecordPosition: commands.RecordPositionUseCase{
			UnitOfWork: deps.UnitOfWork,
			Clock:      deps.Clock,
			IDGen:      deps.IDGenerator,
			Logger:     deps.Logger,
		},

		GetCampaign: queries.GetCampaignUseCase{
			Campaigns: deps.Store,
			Logger:    deps.Logger,
		},
		GetActivation: queries.GetActivationUseCase{
			Activations: deps.Store,
			Logger:      deps.Logger,
		},
		ListCampaignActivations: queries.ListCampaignActivationsUseCase{
			Campaigns:   deps.Store,
			Activations: deps.Store,
			Logger:      deps.Logger,
		},
		CheckAgentConflicts: queries.CheckAgentConflictsUseCase{
			Activations: deps.Store,
			Agents:      deps.Store,
			Policy:      deps.ConflictPolicy,
			Logger:      deps.Logger,
		},
		ListAvailableAgents: queries.ListAvailableAgentsUseCase{
			Activations: deps.Store,
			Agents:      deps.Store,
			Clock:       deps.Clock,
			Policy:      deps.ConflictPolicy,
			Logger:      deps.Logger,
		},
		ListAgentPositions: queries.ListAgentPositionsUseCase{
			Agents:    deps.Store,
			Positions: deps.Store,
			Logger:    deps.Logger,
		},

		Sweeper:        sweeper,
		Clock:          deps.Clock,
		SweepOnRequest: deps.SweepOnRequest,
		Logger:         deps.Logger,
	}

	return Module{
		Handler:       handler,
		ExpirySweeper: sweeper,
		PositionSampler: workers.PositionSampler{
			Agents:     deps.Store,
			UnitOfWork: deps.UnitOfWork,
			Source:     deps.Positions,
			Clock:      deps.Clock,
			IDGen:      deps.IDGenerator,
			Locker:     deps.Locker,
			LockTTL:    deps.LockTTL,
			Metrics:    deps.Metrics,
			Logger:     deps.Logger,
		},
		OutboxRelay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.OutboxBatchSize,
			Metrics:   deps.Metrics,
			Logger:    deps.Logger,
		},
		FeedbackConsumer: workers.FeedbackIssuedConsumer{
			Subscriber:    deps.Subscriber,
			Feedback:      deps.Feedback,
			Activations:   deps.Store,
			Clock:         deps.Clock,
			ConsumerGroup: deps.FeedbackConsumerGroup,
			Disabled:      deps.DisableFeedbackConsumer || deps.Subscriber == nil,
			Logger:        deps.Logger,
		},
	}
}

// NewInMemoryModule wires every use case to a fresh memory store. The store
// doubles as clock and id generator; no publisher is attached.
func NewInMemoryModule(policy entities.ConflictPolicy, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		UnitOfWork:     store,
		Store:          store,
		Outbox:         store,
		Feedback:       store,
		Positions:      simulated.NewPositionSource(),
		Clock:          store,
		IDGenerator:    store,
		ConflictPolicy: policy,
		Logger:         logger,
	})
	module.Store = store
	return module
}
