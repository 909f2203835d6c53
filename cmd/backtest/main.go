package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"backtest-go/internal/backtest"
	"backtest-go/internal/bar"
	"backtest-go/internal/config"
	"backtest-go/internal/event"
	"backtest-go/internal/execution"
	"backtest-go/internal/feed"
	"backtest-go/internal/marketdata"
	"backtest-go/internal/metrics"
	"backtest-go/internal/portfolio"
	"backtest-go/internal/replay"
	"backtest-go/internal/risk"
	"backtest-go/internal/strategy"
	"backtest-go/internal/util"
)

func main() {
	_ = godotenv.Load() // best-effort

	cfgPath := flag.String("config", "internal/config/config.yaml", "path to config yaml")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
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

	start, end, err := cfg.Backtest.Window()
	if err != nil {
		log.Fatal().Err(err).Msg("backtest window")
	}

	client := feed.NewClient(cfg.Feed.BaseURL, log,
		feed.WithTimeout(cfg.Feed.Timeout()),
		feed.WithPageSize(cfg.Feed.PageSize),
	)
	agg := bar.NewAggregator(client, cfg.Feed.Pacing(), log)

	history := make(map[string][]marketdata.Bar, len(cfg.Backtest.Markets))
	for _, market := range cfg.Backtest.Markets {
		bars, err := loadBars(ctx, agg, cfg.Backtest.CacheDir, market, start, end, log)
		if err != nil {
			log.Fatal().Err(err).Str("market", market).Msg("load bars")
		}
		history[market] = bars
	}

	queue := event.NewQueue()
	handler := replay.NewHistoric(history, queue, log)
	ledger := portfolio.NewLedger(handler, start, cfg.Backtest.InitialCapital, log)
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
	if err := engine.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("backtest aborted")
	}

	for _, stat := range ledger.SummaryStats() {
		fmt.Printf("%-20s %s\n", stat.Name, stat.Value)
	}
}

// loadBars serves a market's bars from the CSV cache when present, otherwise
// pulls them from the feed and caches the result for the next run.
func loadBars(ctx context.Context, agg *bar.Aggregator, cacheDir, market string, start, end time.Time, log zerolog.Logger) ([]marketdata.Bar, error) {
	if cacheDir != "" {
		path := filepath.Join(cacheDir, bar.CacheName(market, start, end))
		if bars, err := bar.ReadCache(path); err == nil {
			log.Info().Str("market", market).Str("path", path).Int("bars", len(bars)).Msg("bars loaded from cache")
			return bars, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("cache unreadable, refetching")
		}
	}

	bars, err := agg.FetchBars(ctx, market, start, end)
	if err != nil {
		return nil, err
	}
	if cacheDir != "" {
		if path, err := bar.WriteCache(cacheDir, market, start, end, bars); err != nil {
			log.Warn().Err(err).Str("market", market).Msg("cache write failed")
		} else {
			log.Info().Str("market", market).Str("path", path).Msg("bars cached")
		}
	}
	return bars, nil
}
