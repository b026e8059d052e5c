package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"office-service/internal/config"
	"office-service/internal/database"
	"office-service/internal/job"
	"office-service/internal/router"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Office Service",
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Env),
		zap.String("base_path", cfg.Server.BasePath),
	)

	// Database is retried in the background so the pod can start before the
	// database is up; /ready reports the truth.
	db, err := database.New(cfg)
	if err != nil {
		logger.Warn("Failed to connect to database on startup, will retry in background", zap.Error(err))
		database.NewAsync(cfg, 5*time.Second)
		db = database.GetDB()
	} else {
		logger.Info("Database connected successfully")
	}

	redisClient, err := database.NewRedis(cfg)
	if err != nil {
		// Single-instance deployments work without redis: events short-circuit
		// through the in-process hub.
		logger.Warn("Redis unavailable, realtime fanout is instance-local", zap.Error(err))
		redisClient = nil
	} else {
		logger.Info("Redis connected successfully")
	}

	r, services := router.Setup(cfg, db, redisClient, logger)

	// Re-arm break auto-resume timers that were pending before a restart.
	if db != nil {
		if err := services.TaskTimer.ResumeBreakTimers(context.Background()); err != nil {
			logger.Warn("Failed to resume break timers", zap.Error(err))
		}
	}

	// Sweeper: abandoned matchmaking rows and overdue tasks.
	c := cron.New()
	sweep := job.NewSweepJob(services.GameRepo, services.TaskRepo, 2*cfg.Matchmaking.Timeout, logger)
	if _, err := c.AddJob("@every 1m", sweep); err != nil {
		logger.Error("Failed to schedule sweep job", zap.Error(err))
	}
	c.Start()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		logger.Info("Office Service started", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	cronCtx := c.Stop()
	<-cronCtx.Done()

	services.Typing.Close()
	services.TaskTimer.Close()
	services.Hub.Close()

	if db != nil {
		if err := database.Close(db); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}

	logger.Info("Server exited gracefully")
}

func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      zapLevel == zapcore.DebugLevel,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
