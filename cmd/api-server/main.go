package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kosuke-kagatsume/construction-todo-system/database"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/cache"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/config"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/handler"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/middleware"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/repository"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/http-api/service"
	"github.com/kosuke-kagatsume/construction-todo-system/internal/microservices/websocket"
)

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	db, err := database.ConnectDB(cfg, logger)
	if err != nil {
		logger.Error("database_connect_failed", "error", err.Error())
		os.Exit(1)
	}

	// stats cache is optional: a downed redis degrades to direct queries
	statsCache, err := cache.NewStatsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.StatsCacheTTL, logger)
	if err != nil {
		logger.Warn("stats_cache_unavailable", "error", err.Error())
	}

	notificationRepo := repository.NewNotificationRepository(db)
	preferencesRepo := repository.NewPreferencesRepository(db)
	deliveryLogRepo := repository.NewDeliveryLogRepository(db)
	userRepo := repository.NewUserRepository(db)

	registry := websocket.NewRegistry(logger)
	emailSender := service.NewEmailService(cfg, logger)
	authService := service.NewAuthService(cfg)
	notificationService := service.NewNotificationService(
		notificationRepo,
		preferencesRepo,
		deliveryLogRepo,
		userRepo,
		registry,
		emailSender,
		statsCache,
		logger,
	)
	constructionNotifier := service.NewConstructionNotifier(notificationService)

	if cfg.GoEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1", middleware.AuthMiddleware(authService))
	notificationHandler := handler.NewNotificationHandler(notificationService, constructionNotifier, registry)
	notificationHandler.RegisterRoutes(api.Group("/notifications"))
	api.GET("/ws", websocket.WSHandler(registry, notificationService, logger))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		logger.Info("server_starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry.CloseAll()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server_shutdown_failed", "error", err.Error())
	}
	statsCache.Close()
	logger.Info("server_stopped")
}
