// Binary fetch pulls trade history for the configured markets, folds it into
// hourly bars, and writes the CSV cache so backtest runs can skip the feed.
package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"backtest-go/internal/bar"
	"backtest-go/internal/config"
	"backtest-go/internal/feed"
	"backtest-go/internal/util"
)

func main() {
	_ = godotenv.Load() // best-effort

	cfgPath := flag.String("config", "internal/config/config.yaml", "path to config yaml")
	outDir := flag.String("out", "", "cache directory (defaults to backtest.cache_dir)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	dir := *outDir
	if dir == "" {
		dir = cfg.Backtest.CacheDir
	}
	if dir == "" {
		log.Fatal().Msg("no cache directory configured")
	}

	start, end, err := cfg.Backtest.Window()
	if err != nil {
		log.Fatal().Err(err).Msg("backtest window")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := feed.NewClient(cfg.Feed.BaseURL, log,
		feed.WithTimeout(cfg.Feed.Timeout()),
		feed.WithPageSize(cfg.Feed.PageSize),
	)
	agg := bar.NewAggregator(client, cfg.Feed.Pacing(), log)

	for _, market := range cfg.Backtest.Markets {
		bars, err := agg.FetchBars(ctx, market, start, end)
		if err != nil {
			log.Fatal().Err(err).Str("market", market).Msg("fetch bars")
		}
		path, err := bar.WriteCache(dir, market, start, end, bars)
		if err != nil {
			log.Fatal().Err(err).Str("market", market).Msg("write cache")
		}
		log.Info().Str("market", market).Int("bars", len(bars)).Str("path", path).Msg("cached")
	}
}
