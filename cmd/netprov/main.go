package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/netprov/internal/application/intake"
	"github.com/aescanero/netprov/internal/application/workers"
	"github.com/aescanero/netprov/internal/config"
	"github.com/aescanero/netprov/pkg/adapters/cloud/ec2"
	"github.com/aescanero/netprov/pkg/adapters/metrics/prometheus"
	redisqueue "github.com/aescanero/netprov/pkg/adapters/queue/redis"
	redisstorage "github.com/aescanero/netprov/pkg/adapters/storage/redis"
	"github.com/aescanero/netprov/pkg/api/http"
	"github.com/aescanero/netprov/pkg/api/websocket"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting netprov",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Initialize Redis client
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// Initialize adapters
	bus, err := redisqueue.NewStreamsBus(redisClient, "netprov-workers", logger)
	if err != nil {
		logger.Fatal("failed to create dispatch bus", zap.Error(err))
	}

	store := redisstorage.NewStore(redisClient, logger)

	cloudClient, err := ec2.NewClient(ctx, cfg.AWS.Region, logger)
	if err != nil {
		logger.Fatal("failed to create EC2 client", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector()

	// Initialize application components
	validator := intake.NewValidator()

	intakeMgr := intake.NewManager(
		store,
		store,
		bus,
		bus,
		metricsCollector,
		validator,
		logger,
		cfg.Provision.RecordTTL,
	)

	provisioner := workers.NewProvisioner(
		store,
		cloudClient,
		bus,
		metricsCollector,
		logger,
		cfg.Provision.ReadyTimeout,
		cfg.Provision.ReadyInterval,
	)

	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		bus,
		provisioner,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)

	// Start worker pool
	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	// Initialize HTTP API
	httpServer := http.NewServer(&http.Config{
		Port:   cfg.HTTPPort,
		Intake: intakeMgr,
		Logger: logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(bus, logger)
	httpServer.SetupWebSocket(wsHandler)

	// Start server
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("netprov started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize),
		zap.String("aws_region", cfg.AWS.Region))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Provision.ShutdownTimeout)
	defer cancel()

	// Shutdown components
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := bus.Close(); err != nil {
		logger.Error("dispatch bus close error", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}

	logger.Info("netprov shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
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

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
