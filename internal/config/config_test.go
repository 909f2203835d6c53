package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "backtest-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if cfg.App.MetricsAddr != ":9100" {
		t.Fatalf("unexpected App.MetricsAddr: %s", cfg.App.MetricsAddr)
	}
	if cfg.Feed.BaseURL != "https://poloniex.com" {
		t.Fatalf("unexpected Feed.BaseURL: %s", cfg.Feed.BaseURL)
	}
	if cfg.Feed.PageSize != 50000 {
		t.Fatalf("unexpected Feed.PageSize: %d", cfg.Feed.PageSize)
	}
	if cfg.Feed.Pacing() != 500*time.Millisecond {
		t.Fatalf("unexpected pacing: %s", cfg.Feed.Pacing())
	}
	if len(cfg.Backtest.Markets) != 1 || cfg.Backtest.Markets[0] != "BTC_USDT" {
		t.Fatalf("expected BTC_USDT market, got %+v", cfg.Backtest.Markets)
	}
	if cfg.Backtest.InitialCapital != 100000 {
		t.Fatalf("unexpected initial capital: %.2f", cfg.Backtest.InitialCapital)
	}
	if cfg.Strategy.Mode != "momentum" {
		t.Fatalf("unexpected strategy mode: %s", cfg.Strategy.Mode)
	}
	if cfg.Strategy.Params.Threshold != 0.01 {
		t.Fatalf("unexpected threshold: %.4f", cfg.Strategy.Params.Threshold)
	}
	if cfg.Risk.MaxNotionalPerTrade != 5000 {
		t.Fatalf("unexpected risk limit: %.2f", cfg.Risk.MaxNotionalPerTrade)
	}
	if cfg.Execution.CommissionBps != 10 {
		t.Fatalf("unexpected commission bps: %.2f", cfg.Execution.CommissionBps)
	}
	if cfg.Live.WsURL == "" || cfg.Live.Step() != time.Second {
		t.Fatalf("unexpected live config: %+v", cfg.Live)
	}
}

func TestBacktestWindow(t *testing.T) {
	bt := Backtest{Start: "2024-01-01T00:00:00Z", End: "2024-01-08T00:00:00Z"}
	start, end, err := bt.Window()
	if err != nil {
		t.Fatalf("Window returned error: %v", err)
	}
	if !end.After(start) || end.Sub(start) != 7*24*time.Hour {
		t.Fatalf("unexpected window %s..%s", start, end)
	}

	bt.End = bt.Start
	if _, _, err := bt.Window(); err == nil {
		t.Fatal("expected error for empty window")
	}

	bt.Start = "not-a-date"
	if _, _, err := bt.Window(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	in := &Config{
		App:      App{Name: "roundtrip", LogLevel: "warn"},
		Backtest: Backtest{Markets: []string{"ETH_USDT"}, InitialCapital: 5000},
	}
	if err := Save(path, in); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if out.App.Name != "roundtrip" || out.Backtest.Markets[0] != "ETH_USDT" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
