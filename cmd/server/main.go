package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"socialprofiles/backend/internal/accounts"
	"socialprofiles/backend/internal/config"
	"socialprofiles/backend/internal/database"
	"socialprofiles/backend/internal/handler"
	"socialprofiles/backend/internal/hub"
	"socialprofiles/backend/internal/logging"
	"socialprofiles/backend/internal/profiles"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	// Swagger imports
	_ "socialprofiles/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           Social Profiles API
// @version         1.0
// @description     Profiles, friend invitations and search.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.AppConfig
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Connect to the database
	db, err := database.Connect(cfg.DatabaseURL, logging.GormLogger(logger, cfg.DBSlowThreshold))
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}
	logger.Info("database ready")

	ledger := profiles.NewLedger(db, logger.Named("ledger"))
	directory := profiles.NewDirectory(db, ledger, logger.Named("directory"))
	events := hub.NewHub(logger.Named("hub"))

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(logging.Middleware(logger), logging.Recovery(logger))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// API v1 routes
	handler.Routes{
		Auth:      handler.NewAuthHandler(accounts.NewService(db, logger.Named("accounts")), cfg.JWTSecret, cfg.TokenTTL, logger),
		Profiles:  handler.NewProfileHandler(directory, ledger, logger),
		Relations: handler.NewRelationHandler(directory, ledger, events, logger),
		JWTSecret: cfg.JWTSecret,
	}.Mount(router.Group("/api/v1"))

	withCORS := cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", logging.RequestIDHeader},
		ExposedHeaders: []string{logging.RequestIDHeader},
		MaxAge:         300,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           withCORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown does not wait on hijacked or streaming handlers to notice; closing the hub ends event streams.
	srv.RegisterOnShutdown(events.Close)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server is running", zap.String("addr", srv.Addr),
			zap.String("swagger", "http://localhost:"+cfg.Port+"/swagger/index.html"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Bound the wait for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
