// Package portfolio maintains the accounting ledger of a backtest:
// positions, cash, and equity over time, plus the sizing logic that turns
// signals into orders.
package portfolio

import (
	"time"

	"backtest-go/internal/event"
)

// Portfolio is the capability set the engine drives. The ledger is the
// historical-replay implementation; a live deployment would supply its own.
type Portfolio interface {
	// OnMarketUpdate marks open positions to the newest revealed prices and
	// appends one snapshot row to the histories.
	OnMarketUpdate()
	// OnSignal sizes a trading signal into an order, reporting false when
	// the signal produces none.
	OnSignal(sig event.Signal) (event.Order, bool)
	// OnFill applies an executed fill to positions and cash. It is the only
	// mutator of either.
	OnFill(fill event.Fill)
}

// PositionRecord is one row of the positions history. Markets that did not
// tick in a step are absent from the map.
type PositionRecord struct {
	Datetime  time.Time
	Positions map[string]int64
}

// HoldingRecord is one row of the holdings history.
type HoldingRecord struct {
	Datetime   time.Time
	Cash       float64
	Commission float64
	Total      float64
}

// EquityPoint is one step of the derived equity curve.
type EquityPoint struct {
	Datetime time.Time
	Total    float64
	Return   float64
	Equity   float64 // cumulative product index, starts at 1.0
}

// SummaryStat is one labeled, formatted performance figure.
type SummaryStat struct {
	Name  string
	Value string
}
