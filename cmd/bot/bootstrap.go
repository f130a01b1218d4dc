package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"llm-spot-trader/internal/api"
	"llm-spot-trader/internal/broker/binance"
	"llm-spot-trader/internal/broker/brokerobs"
	"llm-spot-trader/internal/engine"
	"llm-spot-trader/internal/eod"
	"llm-spot-trader/internal/eod/eodobs"
	"llm-spot-trader/internal/events"
	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/llm"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/metrics"
	"llm-spot-trader/internal/notification"
	"llm-spot-trader/internal/store"
	"llm-spot-trader/internal/trace"
	"llm-spot-trader/internal/tradelog"
)

// app is the fully wired bot.
type app struct {
	cfg     *store.Config
	broker  interfaces.Broker
	engine  interfaces.Engine
	runner  *engine.Runner
	bus     *events.Bus
	metrics *metrics.Registry
	api     *api.Server
	eod     interfaces.EodSummarizer
	sqlLog  *tradelog.SQLEventLog
}

// initializeSystem loads the environment and sets up logging and tracing.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

func initializeBroker(ctx context.Context, cfg *store.Config, m *metrics.Registry) interfaces.Broker {
	if !cfg.Live() {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated",
			"paper_balance_usdt", cfg.Exchange.PaperBalanceUSDT)
	}
	return brokerobs.Wrap(binance.NewBroker(cfg), m)
}

// initializeEventLog returns the file feed, mirrored into Postgres when
// EVENTLOG_DSN is set and reachable.
func initializeEventLog(ctx context.Context, cfg *store.Config, files *tradelog.FileLog) (interfaces.EventLog, *tradelog.SQLEventLog) {
	dsn := cfg.Credentials.EventLogDSN
	if dsn == "" {
		return files, nil
	}
	timeout := time.Duration(cfg.EventLog.TimeoutSec) * time.Second
	sqlLog, err := tradelog.OpenSQL(dsn, cfg.EventLog.Table, timeout)
	if err != nil {
		logger.Warn(ctx, "Event log database unavailable, using files only", "error", err.Error())
		return files, nil
	}
	if err := sqlLog.EnsureSchema(ctx); err != nil {
		logger.Warn(ctx, "Event log schema setup failed, using files only", "error", err.Error())
		_ = sqlLog.Close()
		return files, nil
	}
	logger.Info(ctx, "Event log mirrored to database", "table", cfg.EventLog.Table)
	return tradelog.Multi(files, sqlLog), sqlLog
}

func buildApp(ctx context.Context, cfg *store.Config) (*app, error) {
	m := metrics.New()
	bus := events.NewBus(256)

	dir := cfg.EventLog.Dir
	if dir == "" {
		dir = tradelog.LogDir()
	}
	files := tradelog.NewFileLog(dir)
	eventLog, sqlLog := initializeEventLog(ctx, cfg, files)

	notifier := notification.FromConfig(cfg)
	logger.Info(ctx, "Notification channels configured", "count", notifier.Channels())

	deps := engine.Deps{
		Broker:   initializeBroker(ctx, cfg, m),
		Advisor:  llm.NewAdvisor(cfg, m),
		Notifier: notifier,
		EventLog: eventLog,
		Store: store.NewPositionStore(ctx, cfg.Credentials.RedisURL, cfg.Storage.RedisKey,
			time.Duration(cfg.Storage.TimeoutSec)*time.Second),
		TradeLog: files,
		Eod:      eodobs.Wrap(eod.NewSummarizer(files)),
		Bus:      bus,
		Metrics:  m,
	}

	eng, runner, err := engine.New(ctx, cfg, deps)
	if err != nil {
		if sqlLog != nil {
			_ = sqlLog.Close()
		}
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		broker:  deps.Broker,
		engine:  eng,
		runner:  runner,
		bus:     bus,
		metrics: m,
		eod:     deps.Eod,
		sqlLog:  sqlLog,
	}
	if cfg.API.Enabled {
		opts := api.Options{Bus: bus, Metrics: m}
		if sqlLog != nil {
			opts.Events = sqlLog
		}
		a.api = api.NewServer(cfg.API.Listen, runner, opts)
	}
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.api != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.api.Shutdown(shutdownCtx); err != nil {
			logger.Warn(ctx, "Status API shutdown failed", "error", err.Error())
		}
	}
	if a.sqlLog != nil {
		_ = a.sqlLog.Close()
	}
	if err := trace.Shutdown(ctx); err != nil {
		logger.Warn(ctx, "Tracer shutdown failed", "error", err.Error())
	}
}
