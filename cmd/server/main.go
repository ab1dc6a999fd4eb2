// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"usage-metering-backend/internal/config"
	"usage-metering-backend/internal/database"
	"usage-metering-backend/internal/handlers"
	"usage-metering-backend/internal/middleware"
	"usage-metering-backend/internal/repository"
	"usage-metering-backend/internal/routes"
	"usage-metering-backend/internal/services"
)

func initLogger(env string) *zap.Logger {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	return logger
}

func main() {
	logger := initLogger(os.Getenv("ENV"))
	defer logger.Sync()

	zap.ReplaceGlobals(logger)

	logger.Info("Starting usage-metering-backend server")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port))

	if cfg.APIKeys.PrimaryKey == "" {
		logger.Warn("No primary API key configured, falling back to the development default",
			zap.String("default_key", middleware.DefaultDevAPIKey))
	}

	db, err := database.NewMongoDB(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(ctx); err != nil {
			logger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	logger.Info("Successfully connected to MongoDB")

	usageRepo := repository.NewUsageRepository(db.GetCollection(database.UsageCollection))
	costCalculator := services.NewCostCalculator(services.PolicyFromConfig(cfg.Billing))
	usageService := services.NewUsageService(usageRepo, costCalculator)

	logger.Info("Repositories and services initialized successfully")

	handlers := &routes.Handlers{
		Health: handlers.NewHealthHandler(),
		Track:  handlers.NewTrackHandler(usageService),
		Usage:  handlers.NewUsageHandler(usageService),
	}

	router := routes.SetupRoutes(handlers, cfg.APIKeys)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("address", serverAddr))

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Received shutdown signal, shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}
