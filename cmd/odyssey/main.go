package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-access/internal/app"
	"github.com/odyssey-erp/odyssey-access/internal/matrix"
	"github.com/odyssey-erp/odyssey-access/internal/observability"
	"github.com/odyssey-erp/odyssey-access/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-access/internal/platform/db"
	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/roles"
	"github.com/odyssey-erp/odyssey-access/internal/users"
	"github.com/odyssey-erp/odyssey-access/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{ConnectTimeout: 10 * time.Second})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, grant cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	rbacRepo := rbac.NewRepository(pool)
	var grantStore rbac.GrantStore = rbacRepo
	if redisClient != nil {
		grantStore = rbac.NewGrantCache(rbacRepo, redisClient, cfg.GrantCacheTTL, logger)
	}
	provisioner := rbac.NewProvisioner(rbacRepo, rbac.ProvisionerConfig{
		Scope:       cfg.RBACPermissionScope,
		Concurrency: cfg.RBACProvisionConcurrency,
		Logger:      logger,
		Observer:    metrics,
	})
	rbacService := rbac.NewService(rbacRepo, provisioner, cfg.RBACModules)

	rolesService := roles.NewService(roles.NewRepository(pool), cfg.RBACAdminCeiling)
	usersService := users.NewService(users.NewRepository(pool))
	registry := rbac.NewRegistry(rolesService, usersService)
	resolver := rbac.NewResolver(grantStore)
	committer := rbac.NewCommitter(grantStore, metrics)

	sessions := matrix.NewSessions(cfg.MatrixMaxSessions, cfg.MatrixSessionTTL, func() *matrix.Editor {
		return matrix.NewEditor(matrix.Deps{
			Catalog:   rbacService,
			Registry:  registry,
			Resolver:  resolver,
			Committer: committer,
			Logger:    logger,
		})
	})

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		_ = inspector.Close()
	}()

	provisionAtStartup(ctx, logger, rbacService, jobClient)

	healthChecks := map[string]app.HealthCheck{
		"postgres": func(ctx context.Context) error { return pingPool(ctx, pool) },
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService),
		RolesHandler:       roles.NewHandler(logger, rolesService),
		UsersHandler:       users.NewHandler(logger, usersService),
		MatrixHandler:      matrix.NewHandler(logger, sessions),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
		HealthChecks:       healthChecks,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// provisionAtStartup seeds the catalog before serving. Partial failures are
// handed to the worker for retries; fatal ones are left to the first session.
func provisionAtStartup(ctx context.Context, logger *slog.Logger, service *rbac.Service, client *jobs.Client) {
	catalog, err := service.EnsureCatalog(ctx)
	var provErr *rbac.ProvisionError
	switch {
	case errors.As(err, &provErr):
		logger.Warn("catalog partially provisioned", slog.Any("missing", provErr.Names()))
		if _, err := client.EnqueueCatalogProvision(ctx, "startup_partial"); err != nil {
			logger.Warn("enqueue catalog provision", slog.Any("error", err))
		}
	case err != nil:
		logger.Error("provision catalog", slog.Any("error", err))
	default:
		logger.Info("catalog provisioned", slog.Int("permissions", catalog.Len()))
	}
}

func pingPool(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return pool.Ping(ctx)
}
