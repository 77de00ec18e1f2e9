// Package app собирает консоль из конфигурации: каталог, журнал, сессия,
// клиент бэкенда, трекер запусков и сервисы. Используется cmd/console и cmd/agentctl.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/nft-agents-console/internal/audit"
	"github.com/xela07ax/nft-agents-console/internal/catalog"
	"github.com/xela07ax/nft-agents-console/internal/connectors"
	"github.com/xela07ax/nft-agents-console/internal/console/handler"
	"github.com/xela07ax/nft-agents-console/internal/console/server"
	"github.com/xela07ax/nft-agents-console/internal/console/service"
	"github.com/xela07ax/nft-agents-console/internal/engine"
	"github.com/xela07ax/nft-agents-console/internal/infra"
	"github.com/xela07ax/nft-agents-console/internal/infra/auth"
	"github.com/xela07ax/nft-agents-console/internal/matcher"
	"github.com/xela07ax/nft-agents-console/internal/repository/postgres"
	"github.com/xela07ax/nft-agents-console/internal/selection"
	"github.com/xela07ax/nft-agents-console/internal/session"
	"go.uber.org/zap"
)

type App struct {
	Config   *infra.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *engine.Metrics

	Catalog *catalog.Catalog
	Journal *audit.Journal
	Session *session.Store
	Client  *connectors.Client
	Tracker *engine.Tracker

	Agents   *service.AgentService
	Auth     *service.AuthService
	Catalogs *service.CatalogService
	Runs     *service.RunService
	Admin    *service.AdminService
	Audit    *service.AuditService

	// Освобождение ресурсов в обратном порядке
	closers []func(ctx context.Context) error
}

// New собирает зависимости. При ошибке уже поднятые ресурсы закрываются.
func New(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	// 1. Метрики
	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = engine.NewMetrics(a.Registry)

	// 2. Справочник
	seed, err := loadSeed(cfg.Catalog)
	if err != nil {
		return err
	}
	a.Catalog = catalog.New(logger)
	if err := a.Catalog.Load(seed); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	// 3. Журнал: PostgreSQL, если настроен, иначе структурный лог
	var (
		storage audit.Storage = audit.NewLogSink(logger)
		events  service.EventSource
	)
	if cfg.Database.URL != "" {
		repo, err := postgres.NewAuditRepo(cfg.Database)
		if err != nil {
			return err
		}
		a.onClose(func(context.Context) error { return repo.Close() })
		if err := repo.Ping(ctx); err != nil {
			return fmt.Errorf("audit database unreachable: %w", err)
		}
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		storage, events = repo, repo
	}
	a.Journal = audit.NewJournal(storage, audit.Options{
		BufferSize:    cfg.Engine.AuditBufferSize,
		FlushInterval: cfg.Engine.AuditFlushInterval,
		RecentSize:    cfg.Engine.AuditRecentSize,
	}, logger)
	a.Journal.OnBufferFill(func(n int) { a.Metrics.AuditBufferFill.Set(float64(n)) })
	a.Journal.Start()
	a.onClose(func(context.Context) error { a.Journal.Stop(); return nil })
	if events == nil {
		events = a.Journal
	}

	// 4. Сессия
	validator, err := auth.NewValidator(cfg.Auth.PublicKey)
	if err != nil {
		return err
	}
	backend, err := a.sessionBackend(ctx)
	if err != nil {
		return err
	}
	a.Session = session.NewStore(backend, validator, a.Journal, logger)
	if err := a.Session.Init(ctx); err != nil {
		return fmt.Errorf("init session: %w", err)
	}
	a.onClose(a.Session.Teardown)

	// 5. Клиент бэкенда под защитой reliability
	guard := engine.NewReliabilityWrapper(cfg.Reliability, a.Metrics)
	a.Client = connectors.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger,
		connectors.WithGuard(guard),
		connectors.WithTokenSource(a.Session),
	)

	// 6. Запуски
	var exec engine.ExecutionProvider
	switch cfg.Engine.Executor {
	case "sandbox":
		exec = &connectors.SandboxExecutor{Steps: 5}
	default:
		exec = connectors.NewWorkflowExecutor(a.Client, time.Second, logger)
	}
	a.Tracker = engine.NewTracker(exec, a.Journal, a.Metrics, logger,
		engine.WithExclusiveAgents(cfg.Engine.ExclusiveAgents))
	a.onClose(a.Tracker.Shutdown)

	// 7. Сервисы
	opts := matcher.Options{Partial: cfg.Engine.PartialMatching}
	a.Agents = service.NewAgentService(a.Catalog, a.Client, a.Session, a.Journal, a.Metrics, opts, cfg.Backend.OwnerID, logger)
	a.Auth = service.NewAuthService(a.Client, a.Session, logger)
	a.Catalogs = service.NewCatalogService(a.Catalog, a.Tracker, a.Session, a.Journal, opts, logger)
	a.Runs = service.NewRunService(a.Catalog, selection.NewRegistry(a.Catalog, opts), a.Tracker, a.Session, logger)
	a.Admin = service.NewAdminService(a.Client, a.Session, logger)
	a.Audit = service.NewAuditService(events)

	logger.Info("console assembled",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("session_backend", cfg.Session.Backend),
		zap.String("executor", cfg.Engine.Executor))
	return nil
}

func loadSeed(cfg infra.CatalogConfig) (catalog.Seed, error) {
	if cfg.SeedPath == "" {
		return catalog.DefaultSeed()
	}
	return catalog.LoadSeed(cfg.SeedPath)
}

func (a *App) sessionBackend(ctx context.Context) (session.Backend, error) {
	switch a.Config.Session.Backend {
	case "memory":
		return session.NewMemoryBackend(), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.Config.Redis.Addr,
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
		})
		a.onClose(func(context.Context) error { return rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis unreachable: %w", err)
		}
		return session.NewRedisBackend(rdb, a.Config.Session.Key, a.Logger), nil
	default:
		return session.NewFileBackend(a.Config.Session.Path), nil
	}
}

func (a *App) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// SyncAgents подтягивает агентов с бэкенда, если сессия уже есть.
// Без сессии остается встроенный справочник.
func (a *App) SyncAgents(ctx context.Context) {
	if !a.Session.IsAuthenticated() {
		a.Logger.Info("no active session, using seeded agents")
		return
	}
	if _, err := a.Agents.RefreshAgents(ctx); err != nil {
		a.Logger.Warn("initial agent sync failed, using seeded agents", zap.Error(err))
	}
}

// Handler: HTTP API консоли.
func (a *App) Handler() http.Handler {
	return server.NewConsoleServer(a.Logger, a.Session, a.Registry, server.Handlers{
		Auth:      handler.NewAuthHandler(a.Auth, a.Logger, a.Runs.ResetSelection),
		Agents:    handler.NewAgentHandler(a.Agents, a.Logger),
		Catalog:   handler.NewCatalogHandler(a.Catalogs, a.Logger),
		Runs:      handler.NewRunHandler(a.Runs, a.Logger),
		Admin:     handler.NewAdminHandler(a.Admin, a.Logger),
		Dashboard: handler.NewDashboardHandler(a.Catalogs),
		Audit:     handler.NewAuditHandler(a.Audit, a.Logger),
	})
}

// Close останавливает трекер (running-запуски отменяются), сессию и журнал.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
