package replay

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"backtest-go/internal/event"
	"backtest-go/internal/marketdata"
)

func mkBar(market string, bucket time.Time, mean float64) marketdata.Bar {
	return marketdata.Bar{
		Market: market,
		Bucket: bucket,
		Price:  marketdata.Stat{Count: 1, Mean: mean, Min: mean, P25: mean, P50: mean, P75: mean, Max: mean},
		Amount: marketdata.Stat{Count: 1, Mean: 1},
		Total:  marketdata.Stat{Count: 1, Mean: mean},
		Side:   marketdata.Stat{Count: 1, Mean: 1},
	}
}

func history(market string, start time.Time, means ...float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, len(means))
	for i, mean := range means {
		bars[i] = mkBar(market, start.Add(time.Duration(i)*time.Hour), mean)
	}
	return bars
}

func TestAdvanceRevealsAndEmits(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	queue := event.NewQueue()
	h := NewHistoric(map[string][]marketdata.Bar{
		"BTC_USDT": history("BTC_USDT", start, 100, 101, 102),
	}, queue, zerolog.Nop())

	if _, ok := h.Latest("BTC_USDT"); ok {
		t.Fatal("expected no bar before first advance")
	}

	h.Advance()
	if queue.Len() != 1 {
		t.Fatalf("expected one MarketUpdate, queue holds %d", queue.Len())
	}
	b, ok := h.Latest("BTC_USDT")
	if !ok || b.Price.Mean != 100 {
		t.Fatalf("expected first bar mean 100, got %+v ok=%v", b, ok)
	}

	h.Advance()
	b, _ = h.Latest("BTC_USDT")
	if b.Price.Mean != 101 {
		t.Fatalf("expected second bar mean 101, got %.2f", b.Price.Mean)
	}
	if got := len(h.Revealed("BTC_USDT")); got != 2 {
		t.Fatalf("expected 2 revealed bars, got %d", got)
	}
	if queue.Len() != 2 {
		t.Fatalf("expected one MarketUpdate per advance, queue holds %d", queue.Len())
	}
}

func TestAdvancePastExhaustionStopsReplay(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	queue := event.NewQueue()
	h := NewHistoric(map[string][]marketdata.Bar{
		"BTC_USDT": history("BTC_USDT", start, 100),
		"ETH_USDT": history("ETH_USDT", start, 10, 11, 12),
	}, queue, zerolog.Nop())

	h.Advance()
	if !h.Continue() {
		t.Fatal("replay should continue while all markets have data")
	}

	// BTC runs out here; ETH must still progress.
	h.Advance()
	if h.Continue() {
		t.Fatal("expected continue flag to flip once any market is exhausted")
	}
	if !h.Exhausted("BTC_USDT") || h.Exhausted("ETH_USDT") {
		t.Fatalf("unexpected exhaustion state: btc=%v eth=%v", h.Exhausted("BTC_USDT"), h.Exhausted("ETH_USDT"))
	}
	eth, _ := h.Latest("ETH_USDT")
	if eth.Price.Mean != 11 {
		t.Fatalf("exhausted market should not block others: got %.2f", eth.Price.Mean)
	}
	active := h.ActiveMarkets()
	if len(active) != 1 || active[0] != "ETH_USDT" {
		t.Fatalf("unexpected active markets: %v", active)
	}
	// a MarketUpdate is emitted unconditionally, even on the exhausted step
	if queue.Len() != 2 {
		t.Fatalf("expected 2 MarketUpdates, got %d", queue.Len())
	}
}

func TestLatestUnknownMarket(t *testing.T) {
	queue := event.NewQueue()
	h := NewHistoric(map[string][]marketdata.Bar{}, queue, zerolog.Nop())
	if _, ok := h.Latest("DOGE_USDT"); ok {
		t.Fatal("expected not-ok for unknown market")
	}
}

func TestMarketsSortedDeterministic(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewHistoric(map[string][]marketdata.Bar{
		"ETH_USDT": history("ETH_USDT", start, 1),
		"BTC_USDT": history("BTC_USDT", start, 1),
	}, event.NewQueue(), zerolog.Nop())
	markets := h.Markets()
	if len(markets) != 2 || markets[0] != "BTC_USDT" || markets[1] != "ETH_USDT" {
		t.Fatalf("expected sorted markets, got %v", markets)
	}
}

func TestLiveAdvanceReducesPendingTrades(t *testing.T) {
	queue := event.NewQueue()
	l := NewLive("wss://example", []string{"BTC_USDT"}, queue, zerolog.Nop())

	ts := time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC)
	l.mu.Lock()
	l.pending["BTC_USDT"] = []marketdata.Trade{
		{Market: "BTC_USDT", Timestamp: ts, Price: 100, Amount: 1, Total: 100, Side: marketdata.SideBuy},
		{Market: "BTC_USDT", Timestamp: ts.Add(time.Minute), Price: 102, Amount: 1, Total: 102, Side: marketdata.SideSell},
	}
	l.mu.Unlock()

	l.Advance()
	b, ok := l.Latest("BTC_USDT")
	if !ok {
		t.Fatal("expected a bar after advance")
	}
	if b.Count() != 2 || b.Price.Mean != 101 {
		t.Fatalf("unexpected live bar: %+v", b.Price)
	}
	if !b.Bucket.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected bucket: %s", b.Bucket)
	}
	if queue.Len() != 1 {
		t.Fatalf("expected one MarketUpdate, got %d", queue.Len())
	}

	// nothing pending: no new bar, but the update still fires
	l.Advance()
	if got := len(l.Revealed("BTC_USDT")); got != 1 {
		t.Fatalf("expected 1 revealed bar, got %d", got)
	}
	if queue.Len() != 2 {
		t.Fatalf("expected 2 MarketUpdates, got %d", queue.Len())
	}
}

func TestLiveMatchMarket(t *testing.T) {
	l := NewLive("wss://example", []string{"BTC_USDT", "ETH_USDT"}, event.NewQueue(), zerolog.Nop())
	if got := l.matchMarket("btcusdt@trade"); got != "BTC_USDT" {
		t.Fatalf("expected BTC_USDT, got %q", got)
	}
	if got := l.matchMarket("dogeusdt@trade"); got != "" {
		t.Fatalf("expected no match, got %q", got)
	}
}
