// Binary live runs the strategy against a websocket trade stream instead of
// cached history, revealing a fresh bar on a fixed cadence. Fills are still
// simulated; no real orders leave the process.
package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"backtest-go/internal/backtest"
	"backtest-go/internal/config"
	"backtest-go/internal/event"
	"backtest-go/internal/execution"
	"backtest-go/internal/metrics"
	"backtest-go/internal/portfolio"
	"backtest-go/internal/replay"
	"backtest-go/internal/risk"
	"backtest-go/internal/strategy"
	"backtest-go/internal/util"
)

func main() {
	_ = godotenv.Load() // best-effort

	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	queue := event.NewQueue()
	handler := replay.NewLive(cfg.Live.WsURL, cfg.Backtest.Markets, queue, log)
	go func() {
		if err := handler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("stream stopped")
			cancel()
		}
	}()

	ledger := portfolio.NewLedger(handler, time.Now().UTC(), cfg.Backtest.InitialCapital, log)
	strat, err := strategy.Build(cfg.Strategy.Mode, handler, strategy.Params{Threshold: cfg.Strategy.Params.Threshold})
	if err != nil {
		log.Fatal().Err(err).Msg("build strategy")
	}
	sim := execution.NewSimulator(cfg.Execution.CommissionBps, cfg.Execution.SlippageBps, log)
	if cfg.Backtest.FillsPath != "" {
		recorder, err := execution.NewJSONLRecorder(cfg.Backtest.FillsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open fills log")
		}
		defer recorder.Close()
		sim.SetRecorder(recorder)
	}

	limits := risk.Limits{MaxNotionalPerTrade: cfg.Risk.MaxNotionalPerTrade}
	engine := backtest.New(queue, handler, ledger, strat, sim, limits, log)

	ticker := time.NewTicker(cfg.Live.Step())
	defer ticker.Stop()

	log.Info().Str("strategy", strat.Name()).Msg("live session started")
	for handler.Continue() {
		select {
		case <-ctx.Done():
			log.Info().Int("steps", engine.Steps()).Msg("shutting down")
			return
		case <-ticker.C:
			engine.Step()
		}
	}
}
