package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/p2p/internal/app"
	"github.com/odyssey-erp/p2p/internal/automation"
	"github.com/odyssey-erp/p2p/internal/bulk"
	"github.com/odyssey-erp/p2p/internal/command"
	"github.com/odyssey-erp/p2p/internal/docid"
	jobmetrics "github.com/odyssey-erp/p2p/internal/jobs"
	"github.com/odyssey-erp/p2p/internal/ledger"
	"github.com/odyssey-erp/p2p/internal/observability"
	"github.com/odyssey-erp/p2p/internal/platform/cache"
	"github.com/odyssey-erp/p2p/internal/procurement"
	"github.com/odyssey-erp/p2p/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	startedAt := time.Now()

	table, err := docid.NewLoader(cfg.DocumentPrefixFile).Load()
	if err != nil {
		logger.Error("load document prefixes", slog.Any("error", err))
		os.Exit(1)
	}
	identifier := docid.NewIdentifier(table)

	store, err := ledger.NewStore(cfg.LedgerDir)
	if err != nil {
		logger.Error("open ledger", slog.Any("error", err))
		os.Exit(1)
	}

	runner, err := automation.NewExecRunner(cfg.Automation(), logger)
	if err != nil {
		logger.Error("init automation runner", slog.Any("error", err))
		os.Exit(1)
	}

	windows, err := bulk.ParseWindows(cfg.BulkExcludedDates)
	if err != nil {
		logger.Error("parse excluded dates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	// Redis backs bulk history and the job queue; the service still runs without it.
	var (
		redisClient *redis.Client
		recorder    bulk.HistoryRecorder
		lister      bulk.HistoryLister
	)
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, bulk history disabled", slog.Any("error", err))
	} else {
		redisClient = client
		history := bulk.NewHistoryStore(redisClient, "", cfg.BulkHistoryLimit)
		recorder, lister = history, history
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	service := procurement.NewService(runner, store, identifier, cfg.CommandDefaults(), jobMetrics, logger)
	interpreter := command.NewInterpreter(identifier)
	procurementHandler := procurement.NewHandler(logger, service, interpreter)

	engine := bulk.NewEngine(runner, store, table, windows, jobMetrics, logger)
	manager := bulk.NewManager(engine, recorder, logger)
	bulkHandler := bulk.NewHandler(logger, manager, lister, cfg.RecordDefaults(), cfg.BulkMaxUploadBytes)

	var inspector jobs.QueueInspector
	if redisClient != nil {
		asynqInspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer asynqInspector.Close()
		inspector = asynqInspector
	}
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ProcurementHandler: procurementHandler,
		BulkHandler:        bulkHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
		InFlight:           service.InFlight,
		StartedAt:          startedAt,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if n := service.Cancel(); n > 0 {
		logger.Info("cancelled in-flight commands", slog.Int("count", n))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("bulk shutdown", slog.Any("error", err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
