// Package execution simulates the broker side of the pipeline: it turns
// orders into fills.
package execution

import (
	"time"

	"github.com/rs/zerolog"

	"backtest-go/internal/event"
	"backtest-go/internal/metrics"
)

// FillRecorder captures fills for later inspection.
type FillRecorder interface {
	Record(event.Fill)
}

// Simulator executes orders at the requested price adjusted by slippage,
// charging a commission in basis points of notional. Fill quantity matches
// the order; price and commission generally do not.
type Simulator struct {
	commissionBps float64
	slippageBps   float64
	recorder      FillRecorder
	log           zerolog.Logger
}

// NewSimulator builds a fill simulator.
func NewSimulator(commissionBps, slippageBps float64, log zerolog.Logger) *Simulator {
	if commissionBps < 0 {
		commissionBps = 0
	}
	if slippageBps < 0 {
		slippageBps = 0
	}
	return &Simulator{commissionBps: commissionBps, slippageBps: slippageBps, log: log}
}

// SetRecorder attaches an optional fill recorder.
func (s *Simulator) SetRecorder(r FillRecorder) { s.recorder = r }

// Execute fills an order. Slippage moves the price against the taker: up
// for buys, down for sells.
func (s *Simulator) Execute(order event.Order, at time.Time) event.Fill {
	dir := 1.0
	if order.Direction == event.Sell {
		dir = -1
	}
	price := order.Price * (1 + dir*s.slippageBps/10000)
	notional := price * float64(order.Quantity)
	if notional < 0 {
		notional = -notional
	}
	commission := notional * s.commissionBps / 10000

	fill := event.Fill{
		Market:     order.Market,
		Direction:  order.Direction,
		Quantity:   order.Quantity,
		Price:      price,
		Commission: commission,
		At:         at,
	}
	metrics.FillsTotal.WithLabelValues(fill.Market, string(fill.Direction)).Inc()
	s.log.Info().Str("market", fill.Market).Str("side", string(fill.Direction)).
		Int64("qty", fill.Quantity).Float64("px", fill.Price).Float64("commission", fill.Commission).
		Msg("filled order")
	if s.recorder != nil {
		s.recorder.Record(fill)
	}
	return fill
}
