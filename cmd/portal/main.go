package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/afnan2013/forewarn-ibf-portal/internal/app"
	"github.com/afnan2013/forewarn-ibf-portal/internal/auth"
	"github.com/afnan2013/forewarn-ibf-portal/internal/dashboard"
	"github.com/afnan2013/forewarn-ibf-portal/internal/groups"
	"github.com/afnan2013/forewarn-ibf-portal/internal/observability"
	"github.com/afnan2013/forewarn-ibf-portal/internal/platform/cache"
	"github.com/afnan2013/forewarn-ibf-portal/internal/platform/db"
	"github.com/afnan2013/forewarn-ibf-portal/internal/rbac"
	"github.com/afnan2013/forewarn-ibf-portal/internal/roles"
	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
	"github.com/afnan2013/forewarn-ibf-portal/internal/users"
	"github.com/afnan2013/forewarn-ibf-portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	usersRepo := users.NewRepository(pool)
	groupsRepo := groups.NewRepository(pool)
	rolesRepo := roles.NewRepository(pool)
	rbacRepo := rbac.NewRepository(pool)

	rbacService := rbac.NewService(rbacRepo)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	refreshStore := auth.NewRefreshStore(redisClient)
	authService := auth.NewService(usersRepo, rbacService, tokens, refreshStore, logger)
	authenticator := auth.NewAuthenticator(tokens, usersRepo, logger)
	authHandler := auth.NewHandler(logger, authService, metrics)

	usersService := users.NewService(usersRepo, auditLogger, jobClient, logger, cfg.BcryptCost)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	groupsService := groups.NewService(groupsRepo, auditLogger, logger)
	groupsHandler := groups.NewHandler(logger, groupsService, rbacMiddleware)

	rolesService := roles.NewService(rolesRepo)
	rolesHandler := roles.NewHandler(logger, rolesService, rbacMiddleware)

	dashboardHandler := dashboard.NewHandler(logger, usersRepo, groupsRepo, rbacService, usersRepo, rbacMiddleware)
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Authenticator:      authenticator,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		GroupsHandler:      groupsHandler,
		RolesHandler:       rolesHandler,
		DashboardHandler:   dashboardHandler,
		PermissionsHandler: permissionsHandler,
		JobsHandler:        jobsHandler,
		RBACMiddleware:     rbacMiddleware,
		Metrics:            metrics,
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
