// Package main runs the CRM HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/leadflow/crm/config"
	"github.com/leadflow/crm/internal/agents"
	"github.com/leadflow/crm/internal/auth"
	"github.com/leadflow/crm/internal/categories"
	"github.com/leadflow/crm/internal/emaillogs"
	"github.com/leadflow/crm/internal/leads"
	"github.com/leadflow/crm/internal/middleware"
	"github.com/leadflow/crm/internal/notify"
	"github.com/leadflow/crm/pkg/database"
	"github.com/leadflow/crm/pkg/queue"
	"github.com/leadflow/crm/pkg/redis"
	"github.com/leadflow/crm/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	notifier := notify.NewNotifier(jobQueue, cfg.Notify.OperatorEmails, cfg.Notify.SiteURL, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Organization catalog
	agentRepo := agents.NewRepository(pool)
	agentHandler := agents.NewHandler(agents.NewService(agentRepo, notifier, logger), logger)

	leadRepo := leads.NewRepository(pool)
	categoryRepo := categories.NewRepository(pool)
	categoryHandler := categories.NewHandler(categories.NewService(categoryRepo, leadRepo, logger), logger)
	leadHandler := leads.NewHandler(leads.NewService(leadRepo, agentRepo, categoryRepo, notifier, logger), logger)

	emailLogsHandler := emaillogs.NewHandler(emaillogs.NewRepository(pool), logger)

	metrics := middleware.NewMetrics(prometheus.DefaultRegisterer)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(metrics.Handler())

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Error: "database unavailable"})
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public, rate limited per client IP)
	authGroup := router.Group("/auth", middleware.RateLimit(cfg.RateLimit.Burst, cfg.RateLimit.PerSecond))
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/login", authHandler.Login)
	}

	// Authenticated identity endpoints; these work even without a resolved organization.
	account := router.Group("/auth", middleware.JWT(jwtService))
	{
		account.GET("/me", authHandler.Me)
		account.POST("/password", authHandler.ChangePassword)
		account.DELETE("/account", authHandler.DeleteAccount)
	}

	// Organization-scoped API: JWT, then the actor is resolved from stored facts.
	api := router.Group("", middleware.JWT(jwtService), middleware.Actor(authRepo, logger))
	organizer := middleware.RequireOrganizer()
	{
		api.GET("/leads", leadHandler.List)
		api.POST("/leads", organizer, leadHandler.Create)
		api.GET("/leads/:id", leadHandler.Get)
		api.PUT("/leads/:id", organizer, leadHandler.Update)
		api.DELETE("/leads/:id", organizer, leadHandler.Delete)
		api.GET("/leads/:id/assign", organizer, leadHandler.AssignCandidates)
		api.POST("/leads/:id/assign", organizer, leadHandler.Assign)
		api.PATCH("/leads/:id/category", leadHandler.UpdateCategory)

		api.GET("/categories", categoryHandler.List)
		api.POST("/categories", organizer, categoryHandler.Create)
		api.GET("/categories/:id", categoryHandler.Get)
		api.PATCH("/categories/:id", organizer, categoryHandler.Update)
		api.DELETE("/categories/:id", organizer, categoryHandler.Delete)

		api.GET("/agents", organizer, agentHandler.List)
		api.POST("/agents", organizer, agentHandler.Create)
		api.GET("/agents/:id", organizer, agentHandler.Get)
		api.PATCH("/agents/:id", organizer, agentHandler.Update)
		api.DELETE("/agents/:id", organizer, agentHandler.Delete)

		api.GET("/email-logs", organizer, emailLogsHandler.List)
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
	logger, _ := config.Build()
	return logger
}
