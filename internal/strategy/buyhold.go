package strategy

import (
	"backtest-go/internal/event"
	"backtest-go/internal/replay"
)

// BuyAndHold goes long each market once, on its first revealed bar, and
// never trades again. Useful as a baseline.
type BuyAndHold struct {
	data   replay.DataHandler
	bought map[string]bool
}

// NewBuyAndHold builds the baseline strategy.
func NewBuyAndHold(data replay.DataHandler) *BuyAndHold {
	return &BuyAndHold{data: data, bought: make(map[string]bool)}
}

// Name returns the identifier for the strategy implementation.
func (b *BuyAndHold) Name() string { return "BuyAndHold" }

// OnMarket emits one LONG per market, the first time it has data.
func (b *BuyAndHold) OnMarket() []event.Signal {
	var signals []event.Signal
	for _, market := range b.data.Markets() {
		if b.bought[market] {
			continue
		}
		bar, ok := b.data.Latest(market)
		if !ok {
			continue
		}
		b.bought[market] = true
		signals = append(signals, event.Signal{
			Market:   market,
			Type:     event.SignalLong,
			Strength: 1.0,
			At:       bar.Bucket,
		})
	}
	return signals
}
