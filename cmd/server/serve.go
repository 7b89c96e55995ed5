package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/reqforge/backend/internal/ai"
	"github.com/reqforge/backend/internal/config"
	"github.com/reqforge/backend/internal/database"
	"github.com/reqforge/backend/internal/handler"
	"github.com/reqforge/backend/internal/jobs"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/notify"
	"github.com/reqforge/backend/internal/router"
	"github.com/reqforge/backend/internal/service"
	"github.com/reqforge/backend/internal/session"
	"github.com/reqforge/backend/internal/sse"
	"github.com/reqforge/backend/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const jobQueueSize = 100

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := loadConfig()
			if err != nil {
				return err
			}
			defer l.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, l)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, l *zap.Logger) error {
	// Database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	// Core components
	sessions := session.NewStore(rdb)
	hub := sse.NewHub(rdb)
	pool := jobs.NewPool(cfg.AI.MaxWorkers, jobQueueSize)
	defer pool.Shutdown()

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL)
	}

	// Services
	settingService := service.NewSettingService(db, cfg.Encrypt.AESKey)
	providers := ai.NewFactory(cfg.AI, settingService)

	activityService := service.NewActivityService(db, hub)
	authService := service.NewAuthService(db, sessions, cfg.Auth.JWTSecret, cfg.Auth.ExpireHours)
	inviteService := service.NewInviteService(db, cfg.Auth.InviteTTLHours)
	customerService := service.NewCustomerService(db)
	projectService := service.NewProjectService(db, store)
	inputService := service.NewInputDataService(db, store)
	reqService := service.NewRequirementService(db)
	taskService := service.NewTaskService(db)
	workflowService := service.NewWorkflowService(db)
	searchService := service.NewSearchService(db)
	schemaService := service.NewSchemaService(db)
	templateService := service.NewTemplateService(db, store)
	documentService := service.NewDocumentService(db, store, providers)
	genService := service.NewGenerationService(db, providers, activityService, pool, notifier, service.GenerationConfig{
		ContradictionThreshold: cfg.AI.ContradictionThreshold,
		MaxWorkers:             cfg.AI.MaxWorkers,
		ReviewModel:            cfg.AI.GeminiModel,
	})

	// Gin engine
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	router.Setup(r, router.Deps{
		DB:       db,
		Sessions: sessions,
		Logger:   l,
		Auth: middleware.AuthConfig{
			JWTSecret:  cfg.Auth.JWTSecret,
			CookieName: cfg.Auth.CookieName,
		},
		AllowOrigins: cfg.Server.AllowOrigins,

		HealthHandler: handler.NewHealthHandler(db, rdb),
		AuthHandler: handler.NewAuthHandler(authService, activityService, handler.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure,
		}),
		UserHandler:        handler.NewUserHandler(authService, activityService),
		InviteHandler:      handler.NewInviteHandler(inviteService, activityService, notifier),
		CustomerHandler:    handler.NewCustomerHandler(customerService, activityService),
		ProjectHandler:     handler.NewProjectHandler(projectService, taskService, activityService),
		InputDataHandler:   handler.NewInputDataHandler(inputService, activityService, cfg.Storage.MaxUploadMB),
		RequirementHandler: handler.NewRequirementHandler(reqService, activityService, notifier),
		GenerationHandler:  handler.NewGenerationHandler(genService, activityService),
		TaskHandler:        handler.NewTaskHandler(taskService, reqService, activityService),
		ActivityHandler:    handler.NewActivityHandler(activityService, projectService),
		WorkflowHandler:    handler.NewWorkflowHandler(workflowService, activityService),
		SearchHandler:      handler.NewSearchHandler(searchService, schemaService),
		TemplateHandler:    handler.NewTemplateHandler(templateService, activityService),
		DocumentHandler:    handler.NewDocumentHandler(documentService, activityService),
		SettingHandler:     handler.NewSettingHandler(settingService),
	})

	// SSE responses stay open, so only the header read is bounded.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown waits for active connections; open event streams end here.
	srv.RegisterOnShutdown(hub.Close)

	errCh := make(chan error, 1)
	go func() {
		l.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server run: %w", err)
	case <-ctx.Done():
	}

	l.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
