package strategy

import (
	"math"

	"backtest-go/internal/event"
	"backtest-go/internal/replay"
)

// Momentum signals in the direction of the mean-price change between the
// two most recently revealed bars whenever it exceeds a threshold.
type Momentum struct {
	data      replay.DataHandler
	threshold float64
}

// NewMomentum builds a momentum strategy with a relative change threshold.
func NewMomentum(data replay.DataHandler, threshold float64) *Momentum {
	if threshold <= 0 {
		threshold = 0.01
	}
	return &Momentum{data: data, threshold: threshold}
}

// Name returns the identifier for the strategy implementation.
func (m *Momentum) Name() string { return "Momentum" }

// OnMarket compares the latest two bar means per market.
func (m *Momentum) OnMarket() []event.Signal {
	var signals []event.Signal
	for _, market := range m.data.Markets() {
		revealed := m.data.Revealed(market)
		if len(revealed) < 2 {
			continue
		}
		prev := revealed[len(revealed)-2].Price.Mean
		last := revealed[len(revealed)-1]
		if prev <= 0 {
			continue
		}
		change := (last.Price.Mean - prev) / prev
		if math.Abs(change) < m.threshold {
			continue
		}

		sigType := event.SignalLong
		if change < 0 {
			sigType = event.SignalShort
		}
		strength := math.Min(1.0, math.Abs(change)/(2*m.threshold))
		signals = append(signals, event.Signal{
			Market:   market,
			Type:     sigType,
			Strength: strength,
			At:       last.Bucket,
		})
	}
	return signals
}
