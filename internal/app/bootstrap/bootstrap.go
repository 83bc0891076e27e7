package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	activationservice "fieldops/contexts/field-marketing/activation-service"
	"fieldops/contexts/field-marketing/activation-service/adapters/memory"
	postgresadapter "fieldops/contexts/field-marketing/activation-service/adapters/postgres"
	prometheusadapter "fieldops/contexts/field-marketing/activation-service/adapters/prometheus"
	"fieldops/contexts/field-marketing/activation-service/adapters/simulated"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	"fieldops/contexts/field-marketing/activation-service/ports"
	"fieldops/internal/platform/config"
	"fieldops/internal/platform/db"
	"fieldops/internal/platform/httpserver"
	"fieldops/internal/platform/lock"
	"fieldops/internal/platform/logging"
	"fieldops/internal/platform/messaging"
	"fieldops/internal/platform/otel"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const lockPrefix = "fieldops:lock:"

type APIApp struct {
	server  *httpserver.Server
	runtime *runtime
	logger  *slog.Logger
}

type WorkerApp struct {
	module  activationservice.Module
	cfg     config.Config
	runtime *runtime
	logger  *slog.Logger
}

// runtime owns the infrastructure shared by both processes.
type runtime struct {
	module   activationservice.Module
	registry *prometheus.Registry
	metrics  *prometheusadapter.Metrics
	closers  []func(context.Context) error
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, "api")

	rt, err := build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	server := httpserver.New(rt.module, httpserver.Options{
		Addr:     cfg.HTTPAddr,
		Registry: rt.registry,
		Metrics:  rt.metrics,
		Logger:   logger,
	})
	return &APIApp{
		server:  server,
		runtime: rt,
		logger:  logger,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, "worker")

	rt, err := build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &WorkerApp{
		module:  rt.module,
		cfg:     cfg,
		runtime: rt,
		logger:  logger,
	}, nil
}

func newLogger(cfg config.Config, process string) *slog.Logger {
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).
		With("service", cfg.ServiceName, "process", process)
	slog.SetDefault(logger)
	return logger
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (rt *runtime, err error) {
	policy, err := entities.ParseConflictPolicy(cfg.ConflictPolicy)
	if err != nil {
		return nil, err
	}

	rt = &runtime{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = rt.close(context.WithoutCancel(ctx))
		}
	}()

	shutdownTracing, err := otel.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, shutdownTracing)

	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.metrics = prometheusadapter.NewMetrics(rt.registry)

	deps := activationservice.Dependencies{
		Positions:             simulated.NewPositionSource(),
		Clock:                 postgresadapter.SystemClock{Location: cfg.Location()},
		IDGenerator:           postgresadapter.UUIDGenerator{},
		Metrics:               rt.metrics,
		ConflictPolicy:        policy,
		SweepOnRequest:        cfg.SweepOnRequest,
		LockTTL:               cfg.WorkerLockTTL,
		OutboxBatchSize:       cfg.OutboxBatchSize,
		FeedbackConsumerGroup: cfg.FeedbackConsumerGroup,
		Logger:                logger,
	}

	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		logger.Warn("DATABASE_DSN not set, using in-memory store",
			"event", "bootstrap_memory_store",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		store := memory.NewStore()
		deps.UnitOfWork = store
		deps.Store = store
		deps.Outbox = store
		deps.Feedback = store
	} else {
		database, err := db.Connect(cfg.DatabaseDSN, cfg.DatabaseDebug)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return database.Close() })
		if cfg.AutoMigrate {
			if err := postgresadapter.AutoMigrate(database.DB); err != nil {
				return nil, err
			}
		}
		repo := postgresadapter.NewRepository(database.DB, logger)
		deps.UnitOfWork = repo
		deps.Store = repo
		deps.Outbox = repo
		deps.Feedback = repo
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })
		deps.Locker = lock.NewRedisLocker(client, lockPrefix)
	} else {
		deps.Locker = lock.NewLocalLocker()
	}

	var publisher interface {
		ports.EventPublisher
		ports.EventSubscriber
	}
	if strings.TrimSpace(cfg.AMQPURL) != "" {
		rabbit, err := messaging.NewRabbit(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return rabbit.Close() })
		publisher = rabbit
	} else {
		publisher = messaging.NewBus(logger)
	}
	deps.Publisher = publisher
	deps.Subscriber = publisher
	deps.DisableFeedbackConsumer = !cfg.EnableFeedbackConsumer

	rt.module = activationservice.NewModule(deps)
	return rt, nil
}

// close runs closers in reverse construction order.
func (rt *runtime) close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	}
}

func (a *APIApp) Close() error {
	return a.runtime.close(context.Background())
}

// Run starts the feedback consumer and one ticker loop per enabled job. It
// returns when ctx is cancelled.
func (w *WorkerApp) Run(ctx context.Context) error {
	if w.cfg.EnableFeedbackConsumer {
		if err := w.module.FeedbackConsumer.Start(ctx); err != nil {
			return err
		}
	}

	jobs := []struct {
		name     string
		enabled  bool
		interval time.Duration
		run      func(context.Context) error
	}{
		{"expiry_sweep", w.cfg.EnableExpirySweep, w.cfg.SweepInterval, w.module.ExpirySweeper.RunOnce},
		{"position_sampler", w.cfg.EnablePositionSampler, w.cfg.PositionSampleInterval, w.module.PositionSampler.RunOnce},
		{"outbox_relay", w.cfg.EnableOutboxRelay, w.cfg.OutboxRelayInterval, w.module.OutboxRelay.RunOnce},
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"sweep_interval", w.cfg.SweepInterval.String(),
		"position_sample_interval", w.cfg.PositionSampleInterval.String(),
		"outbox_relay_interval", w.cfg.OutboxRelayInterval.String(),
	)

	var wg sync.WaitGroup
	for _, job := range jobs {
		if !job.enabled {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, job.name, job.interval, job.run)
		}()
	}
	wg.Wait()
	return nil
}

// loop runs fn immediately and then on every tick. Failures are logged and the
// next tick retries.
func (w *WorkerApp) loop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("worker job failed",
				"event", "worker_job_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"job", name,
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	return w.runtime.close(context.Background())
}
