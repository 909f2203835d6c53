package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"backtest-go/internal/event"
	"backtest-go/internal/execution"
	"backtest-go/internal/marketdata"
	"backtest-go/internal/portfolio"
	"backtest-go/internal/replay"
	"backtest-go/internal/risk"
	"backtest-go/internal/strategy"
)

func syntheticBar(market string, bucket time.Time, mean float64) marketdata.Bar {
	return marketdata.Bar{
		Market: market,
		Bucket: bucket,
		Price:  marketdata.Stat{Count: 10, Mean: mean},
		Amount: marketdata.Stat{Count: 10, Mean: 1},
		Total:  marketdata.Stat{Count: 10, Mean: mean},
		Side:   marketdata.Stat{Count: 10, Mean: 0.5},
	}
}

func syntheticHistory(market string, start time.Time, means []float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, len(means))
	for i, mean := range means {
		bars[i] = syntheticBar(market, start.Add(time.Duration(i)*time.Hour), mean)
	}
	return bars
}

func TestEngineRunsToExhaustion(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	queue := event.NewQueue()
	handler := replay.NewHistoric(map[string][]marketdata.Bar{
		"BTC_USDT": syntheticHistory("BTC_USDT", start, []float64{100, 105, 110, 108, 112}),
	}, queue, zerolog.Nop())
	ledger := portfolio.NewLedger(handler, start, 100000, zerolog.Nop())
	strat := strategy.NewMomentum(handler, 0.02)
	sim := execution.NewSimulator(0, 0, zerolog.Nop())

	engine := New(queue, handler, ledger, strat, sim, risk.Limits{}, zerolog.Nop())
	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// 5 bars + the exhausting step
	if engine.Steps() != 6 {
		t.Fatalf("expected 6 steps, got %d", engine.Steps())
	}
	if queue.Len() != 0 {
		t.Fatalf("queue not drained: %d events left", queue.Len())
	}
	if got := len(ledger.HoldingsHistory()); got != engine.Steps()+1 {
		t.Fatalf("row-count invariant broken: %d rows for %d steps", got, engine.Steps())
	}
	// 100 -> 105 crosses the 2% threshold, so at least one fill happened
	if ledger.Position("BTC_USDT") == 0 {
		t.Fatal("expected a position after momentum move")
	}
}

func TestEngineHonorsRiskLimit(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	queue := event.NewQueue()
	handler := replay.NewHistoric(map[string][]marketdata.Bar{
		"BTC_USDT": syntheticHistory("BTC_USDT", start, []float64{100, 110}),
	}, queue, zerolog.Nop())
	ledger := portfolio.NewLedger(handler, start, 100000, zerolog.Nop())
	strat := strategy.NewMomentum(handler, 0.02)
	sim := execution.NewSimulator(0, 0, zerolog.Nop())

	// unit 100 at price 110 is 11000 notional, over the cap
	engine := New(queue, handler, ledger, strat, sim, risk.Limits{MaxNotionalPerTrade: 1000}, zerolog.Nop())
	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if ledger.Position("BTC_USDT") != 0 {
		t.Fatalf("expected risk limit to block the order, position=%d", ledger.Position("BTC_USDT"))
	}
}

func TestEngineStopsOnContextCancel(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	queue := event.NewQueue()
	handler := replay.NewHistoric(map[string][]marketdata.Bar{
		"BTC_USDT": syntheticHistory("BTC_USDT", start, []float64{100, 101, 102}),
	}, queue, zerolog.Nop())
	ledger := portfolio.NewLedger(handler, start, 100000, zerolog.Nop())
	strat := strategy.NewBuyAndHold(handler)
	sim := execution.NewSimulator(0, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := New(queue, handler, ledger, strat, sim, risk.Limits{}, zerolog.Nop())
	if err := engine.Run(ctx); err == nil {
		t.Fatal("expected context error")
	}
	if engine.Steps() != 0 {
		t.Fatalf("expected no steps after cancel, got %d", engine.Steps())
	}
}
