package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	treasuryservice "tranche/contexts/token-distribution/treasury-service"
	treasurypostgres "tranche/contexts/token-distribution/treasury-service/adapters/postgres"
	treasuryworkers "tranche/contexts/token-distribution/treasury-service/application/workers"
	vestingengine "tranche/contexts/token-distribution/vesting-engine"
	postgresadapter "tranche/contexts/token-distribution/vesting-engine/adapters/postgres"
	vestingworkers "tranche/contexts/token-distribution/vesting-engine/application/workers"
	"tranche/internal/platform/config"
	"tranche/internal/platform/db"
	"tranche/internal/platform/httpserver"
	"tranche/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	outboxRelay  vestingworkers.OutboxRelay
	releases     treasuryworkers.ReleaseConsumer
	relayEnabled bool
	consumerOn   bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	treasuryRepo := treasurypostgres.NewRepository(pg.DB, logger)
	treasuryModule := treasuryservice.NewModule(treasuryservice.Dependencies{
		Repository: treasuryRepo,
		Clock:      postgresadapter.SystemClock{},
		Logger:     logger,
	})

	vestingRepo := postgresadapter.NewRepository(pg.DB, logger)
	vestingModule := vestingengine.NewModule(vestingengine.Dependencies{
		Schedules: vestingRepo,
		Claims:    vestingRepo,
		Transfer:  treasuryservice.PoolTransferrer{Service: treasuryModule.Service},
		Outbox:    vestingRepo,
		Clock:     postgresadapter.SystemClock{},
		IDGen:     postgresadapter.UUIDGenerator{},
		Logger:    logger,
	})

	server := httpserver.New(vestingModule, treasuryModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	treasuryRepo := treasurypostgres.NewRepository(pg.DB, logger)
	treasuryModule := treasuryservice.NewModule(treasuryservice.Dependencies{
		Repository: treasuryRepo,
		Clock:      postgresadapter.SystemClock{},
		Logger:     logger,
	})

	vestingRepo := postgresadapter.NewRepository(pg.DB, logger)
	return &WorkerApp{
		postgres: pg,
		outboxRelay: vestingworkers.OutboxRelay{
			Outbox:    vestingRepo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: cfg.OutboxRelayBatchSize,
			Logger:    logger,
		},
		releases: treasuryworkers.ReleaseConsumer{
			Subscriber: kafka,
			Service:    treasuryModule.Service,
			Logger:     logger,
		},
		relayEnabled: cfg.EnableOutboxRelay,
		consumerOn:   cfg.EnableReleaseConsumer,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w.consumerOn {
		if err := w.releases.Start(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"outbox_relay_enabled", w.relayEnabled,
		"release_consumer_enabled", w.consumerOn,
	)

	for {
		if w.relayEnabled {
			if err := w.outboxRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
