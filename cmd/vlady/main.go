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
	_ "time/tzdata"

	"github.com/hibiken/asynq"

	"github.com/vlady-pos/vlady-pos/internal/app"
	"github.com/vlady-pos/vlady-pos/internal/auth"
	"github.com/vlady-pos/vlady-pos/internal/clients"
	"github.com/vlady-pos/vlady-pos/internal/inventory"
	"github.com/vlady-pos/vlady-pos/internal/observability"
	"github.com/vlady-pos/vlady-pos/internal/platform/cache"
	"github.com/vlady-pos/vlady-pos/internal/platform/db"
	"github.com/vlady-pos/vlady-pos/internal/rbac"
	"github.com/vlady-pos/vlady-pos/internal/reports"
	"github.com/vlady-pos/vlady-pos/internal/sales"
	"github.com/vlady-pos/vlady-pos/internal/shared"
	"github.com/vlady-pos/vlady-pos/jobs"
	"github.com/vlady-pos/vlady-pos/migrations"
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
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("report timezone", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, dbpool, migrations.Schema); err != nil {
			logger.Error("migrate schema", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	sessionStore := shared.NewSessionStore(redisClient, cfg.SessionTTL)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, sessionStore, auth.NewTokenIssuer(cfg.JWTSecret), auditLogger, logger)
	authHandler := auth.NewHandler(logger, authService)

	rbacService := rbac.NewService()
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	reportsRepo := reports.NewRepository(dbpool)
	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reportsRepo, reportsCache, logger,
		reports.WithLocation(loc),
		reports.WithCacheObserver(metrics),
	)
	reportsHandler := reports.NewHandler(logger, reportsService, rbacMiddleware)

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger, reportsService, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, rbacMiddleware)

	clientsService := clients.NewService(clients.NewRepository(dbpool))
	clientsHandler := clients.NewHandler(logger, clientsService, rbacMiddleware)

	salesService := sales.NewService(sales.NewRepository(dbpool), sales.ServiceDeps{
		Audit:    auditLogger,
		Reports:  reportsService,
		Observer: metrics,
		Logger:   logger,
	})
	salesHandler := sales.NewHandler(logger, salesService, reportsService, idempotencyStore, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		RequireAuth:        auth.RequireAuth(authService, logger),
		AuthHandler:        authHandler,
		InventoryHandler:   inventoryHandler,
		ClientsHandler:     clientsHandler,
		SalesHandler:       salesHandler,
		ReportsHandler:     reportsHandler,
		PermissionsHandler: rbac.NewPermissionsHandler(rbacService),
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("timezone", loc.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
