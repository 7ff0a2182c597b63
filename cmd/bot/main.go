package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"session-trader/internal/engine"
	"session-trader/internal/interfaces"
	"session-trader/internal/journal"
	"session-trader/internal/logger"
	"session-trader/internal/metrics"
	"session-trader/internal/store"
	"session-trader/internal/trace"
	"session-trader/internal/types"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	loop := flag.Bool("loop", false, "run a cycle every poll_seconds until interrupted")
	history := flag.Int("history", 0, "print the latest N journal records and exit")
	flag.Parse()

	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = trace.Shutdown(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *history > 0 {
		if err := printHistory(ctx, *configPath, *history); err != nil {
			logger.ErrorWithErr(ctx, "Cannot read journal", err)
			stop()
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, *configPath, *loop); err != nil {
		logger.ErrorWithErr(ctx, "Bot stopped", err)
		stop()
		os.Exit(1)
	}
}

// run wires the bot and executes one cycle, or cycles until ctx ends in loop mode.
// Only bootstrap failures are returned; cycle failures are reported in the result.
func run(ctx context.Context, configPath string, loop bool) error {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	trades, err := initializeTradeLog(ctx, cfg)
	if err != nil {
		return err
	}
	brk, err := initializeBroker(ctx, cfg)
	if err != nil {
		return err
	}
	j, closeJournal, err := initializeJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeJournal()

	m := initializeMetrics()
	eng, err := initializeEngine(cfg, brk, engine.Deps{Journal: j, Trades: trades, Metrics: m})
	if err != nil {
		return err
	}
	summarizer, err := initializeEOD(cfg)
	if err != nil {
		return err
	}

	logger.Info(ctx, "Bot started",
		"symbol", cfg.Symbol,
		"broker", cfg.Broker,
		"mode", cfg.Mode,
		"time_buffer_seconds", cfg.TimeBufferSeconds,
		"loop", loop,
	)

	if !loop {
		runCycle(ctx, eng, summarizer)
		if cfg.Metrics.Textfile != "" {
			if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logger.Warn(ctx, "Failed to write metrics textfile", "error", err, "path", cfg.Metrics.Textfile)
			}
		}
		return nil
	}
	return runLoop(ctx, cfg, eng, summarizer, m)
}

// printHistory prints the most recent journal records, newest first.
func printHistory(ctx context.Context, configPath string, n int) error {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.Recent(ctx, n)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func runLoop(ctx context.Context, cfg *store.Config, eng interfaces.Engine, summarizer interfaces.EodSummarizer, m *metrics.Registry) error {
	if cfg.Metrics.Listen != "" {
		srv := m.Serve(cfg.Metrics.Listen)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		logger.Info(ctx, "Serving metrics", "addr", cfg.Metrics.Listen)
	}

	tick := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer tick.Stop()

	runCycle(ctx, eng, summarizer)
	for {
		select {
		case <-tick.C:
			runCycle(ctx, eng, summarizer)
		case <-ctx.Done():
			logger.Info(context.Background(), "Shutting down...")
			_, _ = summarizer.SummarizeToday()
			return nil
		}
	}
}

// runCycle runs one Step and prints its result as JSON. Closed-market cycles
// also refresh the session summary when it is missing or stale.
func runCycle(ctx context.Context, eng interfaces.Engine, summarizer interfaces.EodSummarizer) {
	res, err := eng.Step(ctx)
	if err != nil {
		logger.Warn(ctx, "Cycle finished with error", "error", err, "kind", types.KindOf(err).String())
	}
	if res != nil {
		b, _ := json.Marshal(res)
		fmt.Println(string(b))
	}
	if res == nil || res.Decision.State != types.StateMarketClosed {
		return
	}
	if ok, _ := summarizer.ShouldRunNow(); ok {
		_, _ = summarizer.SummarizeToday()
	}
}
