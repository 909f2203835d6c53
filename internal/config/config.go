// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string
	Env         string
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Feed describes the upstream trade-history API the aggregator pulls from.
type Feed struct {
	BaseURL   string `yaml:"base_url"`
	PageSize  int    `yaml:"page_size"`
	PacingMs  int    `yaml:"pacing_ms"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Pacing returns the inter-page courtesy delay.
func (f Feed) Pacing() time.Duration { return time.Duration(f.PacingMs) * time.Millisecond }

// Timeout returns the HTTP client timeout.
func (f Feed) Timeout() time.Duration { return time.Duration(f.TimeoutMs) * time.Millisecond }

// Backtest configures the replay window, universe, and ledger seed.
type Backtest struct {
	Markets        []string
	Start          string
	End            string
	InitialCapital float64 `yaml:"initial_capital"`
	CacheDir       string  `yaml:"cache_dir"`
	FillsPath      string  `yaml:"fills_path"`
}

// Window parses the configured RFC 3339 start/end instants.
func (b Backtest) Window() (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, b.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, b.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("window end %s not after start %s", b.End, b.Start)
	}
	return start.UTC(), end.UTC(), nil
}

// StrategyParams groups tunable knobs for a strategy implementation.
type StrategyParams struct {
	Threshold float64 `yaml:"threshold"`
}

// Strategy specifies which strategy is active along with the parameter bundle.
type Strategy struct {
	Mode   string
	Params StrategyParams
}

// Risk encodes guard-rails for how much size the engine may take on.
type Risk struct {
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade"`
}

// Execution tunes the fill simulator.
type Execution struct {
	CommissionBps float64 `yaml:"commission_bps"`
	SlippageBps   float64 `yaml:"slippage_bps"`
}

// Live configures the websocket trade stream for live sessions.
type Live struct {
	WsURL  string `yaml:"ws_url"`
	StepMs int    `yaml:"step_ms"`
}

// Step returns the cadence at which a live session reveals bars.
func (l Live) Step() time.Duration { return time.Duration(l.StepMs) * time.Millisecond }

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Feed      Feed      `yaml:"feed"`
	Backtest  Backtest  `yaml:"backtest"`
	Strategy  Strategy  `yaml:"strategy"`
	Risk      Risk      `yaml:"risk"`
	Execution Execution `yaml:"execution"`
	Live      Live      `yaml:"live"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
