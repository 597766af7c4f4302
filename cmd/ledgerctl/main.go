package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"ledger/internal/app/ledger"
	"ledger/internal/app/reports"
	"ledger/internal/config"
	"ledger/internal/console"
	"ledger/internal/domain"
	"ledger/internal/infrastructure/cache"
	"ledger/internal/infrastructure/database"
	"ledger/internal/infrastructure/logging"
	"ledger/internal/repository"
	"ledger/internal/repository/memory"
)

func main() {
	inMemory := flag.Bool("memory", false, "keep users and accounts in process memory instead of PostgreSQL")
	flag.Parse()

	if err := run(*inMemory); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerctl: %v\n", err)
		os.Exit(1)
	}
}

func run(inMemory bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.NewLogger(zapcore.WarnLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	var (
		store       domain.AccountStore
		reportCache reports.ReportCache
		generations reports.Generations
	)
	if inMemory {
		store = memory.NewStore(cfg.LockTimeout)
	} else {
		db, err := database.ConnectWithRetry(ctx, cfg.Database(), 3, time.Second, logger)
		if err != nil {
			return err
		}
		pg := repository.NewPostgresStore(db, cfg.LockTimeout)
		defer pg.Close()

		if cfg.MigrationsEnabled {
			if err := database.RunMigrations(cfg.Database().URL(), logger); err != nil {
				return err
			}
		}
		store = pg

		// The server caches the accounts report; mutations made here must drop it too.
		if redisClient, err := cache.NewRedisClient(cfg.Redis()); err != nil {
			logger.Warn("Redis unavailable, accounts report cache will not be invalidated", zap.Error(err))
		} else {
			defer redisClient.Close()
			reportCache = cache.NewJSONCache[reports.Report](redisClient, "ledger:report:", cfg.ReportCacheTTL)
			generations = cache.NewCounter(redisClient, "ledger:report:generation")
		}
	}

	reportService := reports.NewReportService(store, reportCache, generations, logger.With(zap.String("component", "ReportService")))
	ledgerService := ledger.NewLedgerService(store, reportService, cfg.OpTimeout, logger.With(zap.String("component", "LedgerService")))

	c := console.New(ledgerService, reportService, os.Stdin, os.Stdout, logger)
	// Piped input is not echoed by a terminal, so repeat it after each prompt.
	c.SetEcho(!term.IsTerminal(int(os.Stdin.Fd())))
	return c.Run(ctx)
}
