// Package main runs the organization chat HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-org/backend/config"
	"github.com/aura-org/backend/internal/auth"
	"github.com/aura-org/backend/internal/chats"
	"github.com/aura-org/backend/internal/departments"
	"github.com/aura-org/backend/internal/events"
	"github.com/aura-org/backend/internal/hierarchy"
	"github.com/aura-org/backend/internal/messages"
	"github.com/aura-org/backend/internal/metrics"
	"github.com/aura-org/backend/internal/middleware"
	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/internal/tasks"
	"github.com/aura-org/backend/internal/users"
	"github.com/aura-org/backend/pkg/database"
	"github.com/aura-org/backend/pkg/redis"
	"github.com/aura-org/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	db := database.NewDB(pool, cfg.Database.AcquireTimeout, logger)

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	var locker chats.Locker
	if rdb != nil {
		defer rdb.Close()
		locker = chats.NewRedisLocker(rdb, cfg.Reconcile.LockTTL, cfg.Reconcile.LockWait, logger)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Hierarchy and chat core
	hierarchyRepo := hierarchy.NewRepository(db)
	registry := chats.NewRegistry(db, logger)
	engine := chats.NewEngine(db, hierarchyRepo, registry, locker, logger)
	summaries := chats.NewSummaries(db)
	taskRepo := tasks.NewRepository(db)
	groups := chats.NewTaskGroupManager(db, taskRepo, registry, logger)

	// Auth
	authRepo := auth.NewRepository(db)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Chats and messages
	chatHandler := chats.NewHandler(engine, summaries)
	messageService := messages.NewService(db, messages.NewRepository(db), logger)
	messageHandler := messages.NewHandler(messageService)

	// Hierarchy-mutating operations
	taskHandler := tasks.NewHandler(tasks.NewService(db, taskRepo, groups, registry, logger))
	eventHandler := events.NewHandler(events.NewService(db, events.NewRepository(db), registry, logger))
	userHandler := users.NewHandler(users.NewService(db, users.NewRepository(db), engine, registry, logger))
	departmentHandler := departments.NewHandler(
		departments.NewService(db, departments.NewRepository(db), hierarchyRepo, engine, logger))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	if cfg.Metrics.Enabled {
		router.Use(metrics.GinMiddleware())
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Health
	router.GET("/health", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Auth (public)
	router.POST("/auth/login", authHandler.Login)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)

		// Users
		api.GET("/users", middleware.RequireRole(models.RoleAdmin), userHandler.List)
		api.POST("/users", middleware.RequireRole(models.RoleAdmin), userHandler.Create)
		api.GET("/users/:id", userHandler.Get)
		api.PATCH("/users/:id", userHandler.Update)
		api.DELETE("/users/:id", middleware.RequireRole(models.RoleAdmin), userHandler.Delete)
		api.POST("/users/:id/chats/reconcile", chatHandler.Reconcile)

		// Departments
		api.GET("/departments/:id", departmentHandler.Get)
		api.PATCH("/departments/:id", middleware.RequireRole(models.RoleAdmin), departmentHandler.Update)

		// Events
		api.DELETE("/events/:id", middleware.RequireRole(models.RoleAdmin), eventHandler.Delete)

		// Tasks
		taskManagers := middleware.RequireRole(models.RoleAdmin, models.RoleTeamLeader, models.RoleDeptHead)
		api.POST("/tasks/:id/assign", taskManagers, taskHandler.Assign)
		api.POST("/tasks/:id/assignees", taskManagers, taskHandler.AddAssignees)
		api.GET("/tasks/:id/assignees", taskHandler.Assignees)
		api.DELETE("/tasks/:id", taskManagers, taskHandler.Delete)

		// Chats
		api.POST("/chats/init", chatHandler.Init)
		api.POST("/chats/private", chatHandler.EnsurePrivate)
		api.GET("/chats", chatHandler.List)
		api.GET("/chats/:id", chatHandler.Get)

		// Messages
		api.POST("/chats/:id/messages", messageHandler.Send)
		api.GET("/chats/:id/messages", messageHandler.List)
	}

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
	if os.Getenv("LOG_LEVEL") == "debug" {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, _ := config.Build()
	return logger
}
