package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	votingledger "voteledger/contexts/community-voting/voting-ledger"
	"voteledger/contexts/community-voting/voting-ledger/adapters/identity"
	postgresadapter "voteledger/contexts/community-voting/voting-ledger/adapters/postgres"
	redisadapter "voteledger/contexts/community-voting/voting-ledger/adapters/redis"
	"voteledger/contexts/community-voting/voting-ledger/application/commands"
	workerapp "voteledger/contexts/community-voting/voting-ledger/application/workers"
	domainerrors "voteledger/contexts/community-voting/voting-ledger/domain/errors"
	"voteledger/contexts/community-voting/voting-ledger/ports"
	"voteledger/internal/platform/config"
	"voteledger/internal/platform/db"
	"voteledger/internal/platform/httpserver"
	"voteledger/internal/platform/messaging"
	"voteledger/internal/platform/metrics"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

// Ledger is a fully wired ledger module together with the stores the
// workers need and the connections to release on Close.
type Ledger struct {
	Module     votingledger.Module
	Outbox     ports.OutboxRepository
	Dedup      ports.EventDedupStore
	Scoreboard ports.Scoreboard

	database *db.Database
	redis    *redis.Client
}

type bus interface {
	ports.EventPublisher
	ports.EventSubscriber
}

type APIApp struct {
	server *httpserver.Server
	ledger *Ledger
	worker *WorkerApp
	logger *slog.Logger
}

type WorkerApp struct {
	ledger       *Ledger
	bus          bus
	closeBus     func() error
	outboxRelay  workerapp.OutboxRelay
	projector    *workerapp.ScoreboardProjector
	pollInterval time.Duration
	logger       *slog.Logger
}

// BuildLedger wires the ledger module against the configured store.
// Memory mode keeps every slot, the outbox and the scoreboard in one
// process-local store.
func BuildLedger(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Ledger, error) {
	if cfg.DatabaseDriver == config.DriverMemory {
		module := votingledger.NewInMemoryModule(nil, logger)
		return &Ledger{
			Module:     module,
			Outbox:     module.Store,
			Dedup:      module.Store,
			Scoreboard: module.Store,
		}, nil
	}

	dsn := cfg.PostgresDSN
	if cfg.DatabaseDriver == config.DriverSQLite {
		dsn = cfg.SQLitePath
	}
	database, err := db.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseAutoMigrate {
		if err := postgresadapter.Migrate(ctx, database.DB); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("migrate ledger schema: %w", err)
		}
	}

	ledger := &Ledger{database: database}
	repo := postgresadapter.NewRepository(database.DB, logger)
	ledger.Outbox = repo
	ledger.Dedup = repo

	if cfg.RedisAddr != "" {
		client, err := redisadapter.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		ledger.redis = client
		ledger.Scoreboard = redisadapter.NewScoreboard(client, "", logger)
	}

	ledger.Module = votingledger.NewModule(votingledger.Dependencies{
		Ledger:     repo,
		Auth:       identity.ContextAuthenticator{},
		Clock:      postgresadapter.SystemClock{},
		IDGen:      postgresadapter.UUIDGenerator{},
		Scoreboard: ledger.Scoreboard,
		Logger:     logger,
	})
	return ledger, nil
}

func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	var errs []error
	if l.redis != nil {
		errs = append(errs, l.redis.Close())
	}
	if l.database != nil {
		errs = append(errs, l.database.Close())
	}
	return errors.Join(errs...)
}

// Ping checks the SQL connection. Memory ledgers are always ready.
func (l *Ledger) Ping(ctx context.Context) error {
	if l.database == nil {
		return nil
	}
	return l.database.Ping(ctx)
}

// EnsureAdmin initializes the ledger with admin when no admin is stored yet.
func (l *Ledger) EnsureAdmin(ctx context.Context, admin string) error {
	admin = strings.TrimSpace(admin)
	if admin == "" {
		return nil
	}
	current, initialized, err := l.Module.Handler.Queries.Admin(ctx)
	if err != nil {
		return err
	}
	if initialized {
		if current != admin {
			slog.Default().Warn("configured ledger admin differs from stored admin",
				"event", "bootstrap_ledger_admin_mismatch",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"configured_admin", admin,
				"stored_admin", current,
			)
		}
		return nil
	}
	err = l.Module.Handler.Ledger.Initialize(identity.WithPrincipal(ctx, admin), commands.InitializeCommand{Admin: admin})
	if errors.Is(err, domainerrors.ErrAlreadyInitialized) {
		return nil
	}
	return err
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	ledger, err := BuildLedger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := ledger.EnsureAdmin(ctx, cfg.LedgerAdmin); err != nil {
		_ = ledger.Close()
		return nil, fmt.Errorf("initialize ledger admin: %w", err)
	}

	ledgerMetrics, err := metrics.NewLedgerMetrics()
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}

	app := &APIApp{
		server: httpserver.New(ledger.Module, ledgerMetrics, logger, normalizeAddr(cfg.HTTPPort)).
			WithReadiness(ledger.Ping),
		ledger: ledger,
		logger: logger,
	}
	// The memory store is private to this process, so its outbox can only be
	// drained here.
	if cfg.DatabaseDriver == config.DriverMemory {
		worker, err := newWorkerApp(ctx, cfg, ledger, logger)
		if err != nil {
			_ = ledger.Close()
			return nil, err
		}
		app.worker = worker
	}
	return app, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseDriver == config.DriverMemory {
		return nil, errors.New("worker requires DATABASE_DRIVER=postgres or sqlite")
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	ledger, err := BuildLedger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	worker, err := newWorkerApp(ctx, cfg, ledger, logger)
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}
	return worker, nil
}

func newWorkerApp(ctx context.Context, cfg config.Config, ledger *Ledger, logger *slog.Logger) (*WorkerApp, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		eventBus bus
		closeBus = func() error { return nil }
	)
	if cfg.RabbitMQURL != "" {
		amqpBus, err := messaging.DialAMQP(ctx, cfg.RabbitMQURL, logger)
		if err != nil {
			return nil, err
		}
		eventBus = amqpBus
		closeBus = amqpBus.Close
	} else {
		kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
		if err != nil {
			return nil, err
		}
		eventBus = kafka
	}

	worker := &WorkerApp{
		ledger:   ledger,
		bus:      eventBus,
		closeBus: closeBus,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    ledger.Outbox,
			Publisher: eventBus,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}
	if cfg.EnableScoreboardProjector && ledger.Scoreboard != nil {
		worker.projector = &workerapp.ScoreboardProjector{
			Subscriber: eventBus,
			Scores:     ledger.Scoreboard,
			Dedup:      ledger.Dedup,
			DedupTTL:   7 * 24 * time.Hour,
			Logger:     logger,
		}
	}
	return worker, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"embedded_worker", a.worker != nil,
		)
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.server.Start(groupCtx)
	})
	if a.worker != nil {
		group.Go(func() error {
			return a.worker.Run(groupCtx)
		})
	}
	return group.Wait()
}

func (a *APIApp) Close() error {
	var errs []error
	if a.worker != nil {
		errs = append(errs, a.worker.closeBus())
	}
	errs = append(errs, a.ledger.Close())
	return errors.Join(errs...)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w.projector != nil {
		if err := w.projector.Start(ctx); err != nil {
			return err
		}
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"scoreboard_projector", w.projector != nil,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return w.runRelay(groupCtx)
	})
	return group.Wait()
}

// runRelay drains the outbox every poll interval. Relay failures are logged
// and retried on the next tick.
func (w *WorkerApp) runRelay(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.outboxRelay.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("outbox relay cycle failed",
				"event", "bootstrap_outbox_relay_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	return errors.Join(w.closeBus(), w.ledger.Close())
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
