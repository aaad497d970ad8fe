// Package main runs the interview platform HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sync-hire/backend/config"
	"github.com/sync-hire/backend/internal/agent"
	"github.com/sync-hire/backend/internal/auth"
	"github.com/sync-hire/backend/internal/interviews"
	"github.com/sync-hire/backend/internal/media"
	"github.com/sync-hire/backend/internal/middleware"
	"github.com/sync-hire/backend/internal/realtime"
	"github.com/sync-hire/backend/internal/sessions"
	"github.com/sync-hire/backend/pkg/database"
	"github.com/sync-hire/backend/pkg/queue"
	"github.com/sync-hire/backend/pkg/redis"
	"github.com/sync-hire/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(jwtService, cfg.JWT.AdminAPIKey, logger)

	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Media provider: REST control client + webhook event delivery.
	eventRouter := media.NewRouter(logger)
	mediaClient := media.NewClient(cfg.Media.APIBaseURL, eventRouter, logger)
	mediaWebhook := media.NewWebhookHandler(eventRouter, logger)

	// Agent service: HTTP client behind the at-most-once invitation registry.
	agentClient := agent.NewClient(cfg.Agent.BaseURL, time.Duration(cfg.Agent.RequestTimeout)*time.Second, logger)
	registry := agent.NewRegistry(agentClient.JoinInterview, logger)

	// Interviews
	interviewRepo := interviews.NewRepository(pool)
	interviewHandler := interviews.NewHandler(interviewRepo, jwtService, cfg.Media, logger)

	// Sessions
	manager := sessions.NewManager(interviewRepo, registry, mediaClient.Session, cfg.Media.CaptionLanguage,
		time.Duration(cfg.Engine.LeaveDebounceMs)*time.Millisecond, logger)
	manager.SetNotifier(hub)
	manager.SetPreflight(mediaClient.Preflight)
	defer manager.Shutdown()
	sessionHandler := sessions.NewHandler(manager, logger)

	// Completion pipeline
	jobQueue := queue.NewQueue(rdb.Client, logger)
	agentWebhook := agent.NewWebhookHandler(jobQueue, cfg.Agent.WebhookSecret, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	router.POST("/auth/admin-token", authHandler.AdminToken)

	// Public: invite code exchange for a candidate token.
	router.POST("/interviews/:id/join", interviewHandler.Join)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/interviews", middleware.RequireRole(auth.RoleAdmin), interviewHandler.List)
		api.POST("/interviews", middleware.RequireRole(auth.RoleAdmin), interviewHandler.Create)
		api.GET("/interviews/:id", middleware.RequireInterviewScope(), interviewHandler.GetByID)
		api.GET("/interviews/:id/media-token", middleware.RequireInterviewScope(), interviewHandler.MediaToken)

		api.POST("/interviews/:id/session/start", middleware.RequireInterviewScope(), sessionHandler.Start)
		api.POST("/interviews/:id/session/reset", middleware.RequireInterviewScope(), sessionHandler.Reset)
		api.GET("/interviews/:id/session", middleware.RequireInterviewScope(), sessionHandler.Get)
	}

	// Webhooks (no JWT; shared-secret validation in handlers when configured)
	router.POST("/webhooks/media-events", mediaWebhook.HandleEvent)
	router.POST("/webhooks/interview-complete", agentWebhook.InterviewComplete)

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, manager, jwtService, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
