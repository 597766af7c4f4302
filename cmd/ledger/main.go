package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ledger/internal/app/ledger"
	"ledger/internal/app/reports"
	"ledger/internal/config"
	ledger_http "ledger/internal/handler/http/ledger"
	kafka_handler "ledger/internal/handler/kafka"
	"ledger/internal/infrastructure/cache"
	"ledger/internal/infrastructure/database"
	kafka_infra "ledger/internal/infrastructure/kafka"
	"ledger/internal/infrastructure/logging"
	"ledger/internal/repository"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := logging.NewLogger(zapcore.InfoLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info("Ledger Service starting...")

	ctxMain, cancelMain := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancelMain()

	db, err := database.ConnectWithRetry(ctxMain, cfg.Database(), 10, 5*time.Second, appLogger)
	if err != nil {
		appLogger.Fatal("Could not connect to database. Exiting.", zap.Error(err))
	}
	store := repository.NewPostgresStore(db, cfg.LockTimeout)
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	if cfg.MigrationsEnabled {
		appLogger.Info("Running database migrations...")
		if err := database.RunMigrations(cfg.Database().URL(), appLogger.With(zap.String("component", "Migrations"))); err != nil {
			appLogger.Fatal("Failed to run database migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis())
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			appLogger.Error("Error closing Redis client", zap.Error(err))
		}
	}()

	reportService := reports.NewReportService(
		store,
		cache.NewJSONCache[reports.Report](redisClient, "ledger:report:", cfg.ReportCacheTTL),
		cache.NewCounter(redisClient, "ledger:report:generation"),
		appLogger.With(zap.String("component", "ReportService")),
	)
	ledgerService := ledger.NewLedgerService(
		store,
		reportService,
		cfg.OpTimeout,
		appLogger.With(zap.String("component", "LedgerService")),
	)
	appLogger.Info("Ledger Service initialized.")

	kafkaBrokers := cfg.GetKafkaBrokers()
	topicsCtx, cancelTopics := context.WithTimeout(ctxMain, 10*time.Second)
	err = kafka_infra.EnsureTopics(topicsCtx, kafkaBrokers, []string{cfg.KafkaCommandsTopic, cfg.KafkaRepliesTopic}, appLogger)
	cancelTopics()
	if err != nil {
		appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
	}

	kafkaProducer := kafka_infra.NewProducer(kafkaBrokers, appLogger.With(zap.String("component", "KafkaProducer")))
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	commandHandler := kafka_handler.NewCommandHandler(
		ledgerService,
		cache.NewJSONCache[kafka_handler.LedgerReply](redisClient, "ledger:command:", cfg.CommandReplyTTL),
		kafkaProducer,
		cfg.KafkaRepliesTopic,
		appLogger.With(zap.String("component", "CommandHandler")),
	)
	commandConsumer := kafka_infra.NewConsumer(
		kafka_infra.ConsumerConfig{
			Brokers:        kafkaBrokers,
			Topic:          cfg.KafkaCommandsTopic,
			GroupID:        cfg.KafkaConsumerGroup,
			HandlerTimeout: cfg.OpTimeout + 10*time.Second,
		},
		commandHandler.Handle,
		appLogger.With(zap.String("component", "CommandConsumer")),
	)

	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: ledger_http.NewRouter(
			ledgerService,
			reportService,
			appLogger.With(zap.String("component", "HTTP")),
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed", zap.Error(err))
			cancelMain()
		}
	}()
	go func() {
		defer wg.Done()
		if err := commandConsumer.Consume(ctxMain); err != nil {
			appLogger.Error("Command consumer failed", zap.Error(err))
		}
		appLogger.Info("Command consumer stopped.")
	}()

	<-ctxMain.Done()
	appLogger.Info("Shutting down application...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}
	if err := commandConsumer.Close(); err != nil {
		appLogger.Error("Error closing command consumer", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		appLogger.Warn("Background workers did not stop before the shutdown deadline.")
	}

	appLogger.Info("Application gracefully shut down.")
}
