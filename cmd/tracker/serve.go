package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/chandumcs/opstracker/internal/app"
	"github.com/chandumcs/opstracker/internal/audit"
	audithttp "github.com/chandumcs/opstracker/internal/audit/http"
	"github.com/chandumcs/opstracker/internal/auth"
	"github.com/chandumcs/opstracker/internal/dashboard"
	"github.com/chandumcs/opstracker/internal/handover"
	"github.com/chandumcs/opstracker/internal/observability"
	"github.com/chandumcs/opstracker/internal/platform/cache"
	"github.com/chandumcs/opstracker/internal/platform/db"
	"github.com/chandumcs/opstracker/internal/rbac"
	"github.com/chandumcs/opstracker/internal/shared"
	"github.com/chandumcs/opstracker/internal/tasks"
	"github.com/chandumcs/opstracker/internal/users"
	"github.com/chandumcs/opstracker/jobs"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	var store cache.Store
	switch cfg.SessionStore {
	case app.SessionStoreMemory:
		logger.Warn("sessions kept in memory; sign-ins are lost on restart")
		store = cache.NewMemoryStore(cfg.SessionTTL)
	default:
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		store = cache.NewRedisStore(redisClient, "tracker:", cfg.SessionTTL)
	}

	sessionManager := shared.NewSessionManager(store, "tracker_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	rbacMiddleware := rbac.Middleware{Logger: logger, Recorder: metrics}
	guard := rbac.NewGuard(rbac.MustRouteTable(rbac.DefaultRoutes()...))

	authService := auth.NewService(auth.NewRepository(pool))
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	usersService := users.NewService(users.NewRepository(pool), auditLogger, logger)
	tasksService := tasks.NewService(tasks.NewRepository(pool), auditLogger, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	handoverService := handover.NewService(handover.NewRepository(pool), jobClient, logger)
	dashboardService := dashboard.NewService(tasksService, usersService, handoverService, cache.NewMemoryStore(cfg.DashboardCacheTTL), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		IdentityStore:    store,
		Roles:            usersService,
		RBACMiddleware:   rbacMiddleware,
		AuthHandler:      authHandler,
		NavHandler:       rbac.NewHandler(logger, guard, rbacMiddleware),
		UsersHandler:     users.NewHandler(logger, usersService, rbacMiddleware),
		TasksHandler:     tasks.NewHandler(logger, tasksService, rbacMiddleware),
		HandoverHandler:  handover.NewHandler(logger, handoverService, rbacMiddleware),
		DashboardHandler: dashboard.NewHandler(logger, dashboardService, rbacMiddleware),
		JobHandler:       jobs.NewHandler(inspector, logger),
		AuditHandler:     audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(pool)), rbacMiddleware),
		Database:         pool,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}
