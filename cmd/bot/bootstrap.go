package main

import (
	"context"
	"fmt"
	"os"

	"session-trader/internal/broker/alpaca"
	"session-trader/internal/broker/brokerobs"
	"session-trader/internal/broker/zerodha"
	"session-trader/internal/calendar"
	"session-trader/internal/engine"
	"session-trader/internal/engine/engineobs"
	"session-trader/internal/eod"
	"session-trader/internal/eod/eodobs"
	"session-trader/internal/interfaces"
	"session-trader/internal/journal"
	"session-trader/internal/logger"
	"session-trader/internal/metrics"
	"session-trader/internal/store"
	"session-trader/internal/trace"
	"session-trader/internal/tradelog"

	"github.com/joho/godotenv"
)

// initializeSystem loads .env and initializes logger and tracer
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

// initializeTradeLog opens the daily log writer and compresses logs past retention
func initializeTradeLog(ctx context.Context, cfg *store.Config) (*tradelog.Writer, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	w := tradelog.New(cfg.Log.Dir, loc)
	if err := w.CompressOlder(cfg.Log.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
	return w, nil
}

// initializeBroker builds the configured brokerage and wraps it with observability
func initializeBroker(ctx context.Context, cfg *store.Config) (interfaces.Brokerage, error) {
	var (
		brk interfaces.Brokerage
		err error
	)
	switch cfg.Broker {
	case store.BrokerKite:
		var cal *calendar.Exchange
		cal, err = calendar.New(cfg.Kite.Timezone, cfg.Kite.Open, cfg.Kite.Close, cfg.Kite.Holidays)
		if err != nil {
			return nil, fmt.Errorf("kite calendar: %w", err)
		}
		brk, err = zerodha.NewZerodha(zerodha.Params{
			Paper:       cfg.Paper(),
			APIKey:      os.Getenv("KITE_API_KEY"),
			AccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
			Exchange:    cfg.Kite.Exchange,
			Product:     cfg.Kite.Product,
			Calendar:    cal,
		})
	default:
		brk, err = alpaca.NewAlpaca(alpaca.Params{
			Paper:     cfg.Paper(),
			APIKey:    os.Getenv("APCA_API_KEY_ID"),
			APISecret: os.Getenv("APCA_API_SECRET_KEY"),
			BaseURL:   cfg.Alpaca.BaseURL,
			DataFeed:  cfg.Alpaca.DataFeed,
		})
	}
	if err != nil {
		return nil, err
	}

	if cfg.Paper() {
		logger.Warn(ctx, "Running in PAPER mode", "broker", cfg.Broker)
	} else {
		logger.Info(ctx, "Running in LIVE mode", "broker", cfg.Broker)
	}
	return brokerobs.Wrap(brk), nil
}

// initializeJournal opens the idempotency journal when enabled. The returned
// interface is nil when it is disabled.
func initializeJournal(ctx context.Context, cfg *store.Config) (interfaces.ActionJournal, func(), error) {
	if !cfg.Journal.Enabled {
		logger.Warn(ctx, "Action journal disabled - repeated cycles may resubmit orders")
		return nil, func() {}, nil
	}
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	logger.Info(ctx, "Action journal opened", "path", j.Path())
	return j, func() { _ = j.Close() }, nil
}

func initializeEngine(cfg *store.Config, brk interfaces.Brokerage, deps engine.Deps) (interfaces.Engine, error) {
	eng, err := engine.New(cfg, brk, deps)
	if err != nil {
		return nil, err
	}
	return engineobs.Wrap(eng), nil
}

func initializeEOD(cfg *store.Config) (interfaces.EodSummarizer, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return eodobs.Wrap(eod.NewSummarizer(cfg.Log.Dir, loc)), nil
}

func initializeMetrics() *metrics.Registry {
	return metrics.New()
}
