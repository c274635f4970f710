package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-books/meridian/internal/access"
	accesshttp "github.com/meridian-books/meridian/internal/access/http"
	"github.com/meridian-books/meridian/internal/app"
	"github.com/meridian-books/meridian/internal/attest"
	attesthttp "github.com/meridian-books/meridian/internal/attest/http"
	"github.com/meridian-books/meridian/internal/export"
	exporthttp "github.com/meridian-books/meridian/internal/export/http"
	"github.com/meridian-books/meridian/internal/ledger"
	ledgerhttp "github.com/meridian-books/meridian/internal/ledger/http"
	"github.com/meridian-books/meridian/internal/observability"
	"github.com/meridian-books/meridian/internal/periods"
	periodshttp "github.com/meridian-books/meridian/internal/periods/http"
	"github.com/meridian-books/meridian/internal/platform/cache"
	"github.com/meridian-books/meridian/internal/platform/db"
	"github.com/meridian-books/meridian/internal/replay"
	replayhttp "github.com/meridian-books/meridian/internal/replay/http"
	"github.com/meridian-books/meridian/internal/shared"
	"github.com/meridian-books/meridian/internal/statements"
	statementshttp "github.com/meridian-books/meridian/internal/statements/http"
	"github.com/meridian-books/meridian/internal/tax"
	taxhttp "github.com/meridian-books/meridian/internal/tax/http"
	"github.com/meridian-books/meridian/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	periodRepo := periods.NewPGRepository(dbpool)
	periodRegistry := periods.NewRegistry(periodRepo, auditLogger)
	periodsHandler := periodshttp.NewHandler(logger, periodRegistry)

	ledgerStore := ledger.NewPGStore(dbpool)
	ledgerEngine := ledger.NewEngine(ledgerStore, periodRegistry, auditLogger, metrics)
	ledgerHandler := ledgerhttp.NewHandler(logger, ledgerEngine)

	replayEngine := replay.NewEngine(ledgerStore, metrics)
	replayHandler := replayhttp.NewHandler(logger, replayEngine)

	statementCache := statements.NewCache(redisClient, cfg.StatementTTL)
	statementBuilder := statements.NewBuilder(replayEngine, ledgerStore, statementCache)
	statementsHandler := statementshttp.NewHandler(logger, statementBuilder)

	taxEngine := tax.NewEngine(replayEngine, ledgerStore, periodRegistry, auditLogger)
	taxHandler := taxhttp.NewHandler(logger, taxEngine)

	exportEngine := export.NewEngine(auditLogger)
	exportHandler := exporthttp.NewHandler(logger, exportEngine)

	attestService := attest.NewService(auditLogger)
	attestHandler := attesthttp.NewHandler(logger, attestService)

	accessService, err := access.NewService([]byte(cfg.AccessTokenSecret), auditLogger)
	if err != nil {
		logger.Error("init access service", slog.Any("error", err))
		os.Exit(1)
	}
	accessHandler := accesshttp.NewHandler(logger, accessService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		LedgerHandler:     ledgerHandler,
		PeriodsHandler:    periodsHandler,
		ReplayHandler:     replayHandler,
		StatementsHandler: statementsHandler,
		TaxHandler:        taxHandler,
		ExportHandler:     exportHandler,
		AttestHandler:     attestHandler,
		AccessHandler:     accessHandler,
		JobsHandler:       jobsHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
