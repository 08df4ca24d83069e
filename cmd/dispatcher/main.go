package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/billing"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/config"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/database"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/delivery"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/dispatch"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/gateway"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/logging"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/notification"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/staging"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/tariff"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/segmenter"
)

func main() {
	appCtx, rootCancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer rootCancel()

	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		// Use standard log before slog is configured
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- Setup Logging ---
	logLevel := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel <= slog.LevelDebug,
	}
	baseHandler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(logging.NewContextHandler(baseHandler))
	slog.SetDefault(logger)
	slog.Info("Logging initialized", "level", logLevel.String())

	lowBalanceThreshold, err := decimal.NewFromString(cfg.Billing.LowBalanceThreshold)
	if err != nil {
		slog.Error("Invalid low balance threshold", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Database ---
	slog.Info("Connecting to database...")
	dbpool, err := pgxpool.New(appCtx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	if err := dbpool.Ping(appCtx); err != nil {
		slog.Error("Failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("Database connection pool established")
	store := database.NewStore(dbpool)

	// --- Redis (delivery-report staging) ---
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("Invalid redis URL", slog.Any("error", err))
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(appCtx).Err(); err != nil {
		slog.Error("Failed to ping redis", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("Redis connection established")

	// --- Initialize Core Services & Dependencies ---
	slog.Info("Initializing services...")
	mainSegmenter := segmenter.NewDefaultSegmenter()
	notifier := notification.NewLogNotifier()

	tariffResolver := tariff.NewResolver(store, cfg.Tariff.DefaultRegion, cfg.Tariff.RefreshInterval)
	tariffResolver.Start(appCtx)

	ledger := billing.NewLedger(store)
	stagingStore := staging.NewStore(rdb, cfg.Staging.TTL)
	deliveryEngine := delivery.NewEngine(store, stagingStore)

	sessionManager, err := gateway.NewSessionManager(gateway.Config{
		Host:           cfg.Gateway.Host,
		Port:           cfg.Gateway.Port,
		SystemID:       cfg.Gateway.SystemID,
		Password:       cfg.Gateway.Password,
		SystemType:     cfg.Gateway.SystemType,
		SourceAddr:     cfg.Gateway.SourceAddr,
		EnquireLink:    cfg.Gateway.EnquireLink,
		SubmitTimeout:  cfg.Gateway.SubmitTimeout,
		ConnectTimeout: cfg.Gateway.ConnectTimeout,
		RebindDelay:    cfg.Gateway.RebindDelay,
		MaxWindowSize:  cfg.Gateway.MaxWindowSize,
		SourceAddrTON:  cfg.Gateway.SourceAddrTON,
		SourceAddrNPI:  cfg.Gateway.SourceAddrNPI,
		DestAddrTON:    cfg.Gateway.DestAddrTON,
		DestAddrNPI:    cfg.Gateway.DestAddrNPI,
	}, mainSegmenter)
	if err != nil {
		slog.Error("Invalid gateway configuration", slog.Any("error", err))
		os.Exit(1)
	}
	sessionManager.RegisterPushHandler(func(ctx context.Context, raw string) {
		deliveryEngine.HandlePush(ctx, raw)
	})

	handler := dispatch.NewHandler(
		store,
		tariffResolver,
		ledger,
		sessionManager,
		mainSegmenter,
		notifier,
		lowBalanceThreshold,
	)
	queue := dispatch.NewQueue(handler, dispatch.QueueConfig{
		ContactWorkers: cfg.Dispatch.ContactWorkers,
		GroupWorkers:   cfg.Dispatch.GroupWorkers,
		QueueSize:      cfg.Dispatch.QueueSize,
	})

	// --- Start Components ---
	slog.Info("Starting application components...")

	// The session auto-rebinds after a failed or dropped bind, so a cold
	// gateway at boot is not fatal.
	if err := sessionManager.Connect(appCtx); err != nil {
		slog.Warn("Initial gateway bind failed, will retry in background", slog.Any("error", err))
	}

	queue.Start(appCtx)

	// --- Wait for Shutdown Signal ---
	<-appCtx.Done()
	slog.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()

	// Drain in-flight jobs before dropping the session so every billed
	// message gets its submit attempt.
	slog.Info("Shutting down dispatch queue...")
	if err := queue.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Error during dispatch queue shutdown", slog.Any("error", err))
	} else {
		slog.Info("Dispatch queue shutdown complete.")
	}

	slog.Info("Shutting down gateway session...")
	if err := sessionManager.Disconnect(shutdownCtx); err != nil {
		slog.Warn("Error during gateway session shutdown", slog.Any("error", err))
	} else {
		slog.Info("Gateway session shutdown complete.")
	}

	slog.Info("Closing database pool...")
	dbpool.Close()
	slog.Info("Application gracefully stopped.")
}
