// Package backtest wires the replay cursor, strategy, portfolio, and
// execution simulator into the step loop that drives a run.
package backtest

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"backtest-go/internal/event"
	"backtest-go/internal/execution"
	"backtest-go/internal/portfolio"
	"backtest-go/internal/replay"
	"backtest-go/internal/risk"
	"backtest-go/internal/strategy"
)

// Engine owns one backtest run. It is single-threaded: each step advances
// the cursor once, then drains the queue to empty before the next step.
type Engine struct {
	queue     *event.Queue
	data      replay.DataHandler
	portfolio portfolio.Portfolio
	strategy  strategy.Strategy
	exec      *execution.Simulator
	limits    risk.Limits
	log       zerolog.Logger
	steps     int
}

// New assembles an engine from its collaborators.
func New(queue *event.Queue, data replay.DataHandler, pf portfolio.Portfolio, strat strategy.Strategy, exec *execution.Simulator, limits risk.Limits, log zerolog.Logger) *Engine {
	return &Engine{
		queue:     queue,
		data:      data,
		portfolio: pf,
		strategy:  strat,
		exec:      exec,
		limits:    limits,
		log:       log,
	}
}

// Run replays until the data handler reports completion or the context is
// canceled. Each discrete step: advance the cursor, then handle every event
// the advance (and its consequences) produced.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info().Str("strategy", e.strategy.Name()).Strs("markets", e.data.Markets()).Msg("backtest started")
	for e.data.Continue() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.Step()
	}
	e.log.Info().Int("steps", e.steps).Msg("backtest finished")
	return nil
}

// Step advances the cursor once and handles every event it produced. Live
// sessions call this on a timer instead of Run's tight loop.
func (e *Engine) Step() {
	e.data.Advance()
	e.drain()
	e.steps++
}

// Steps reports how many advances the engine performed.
func (e *Engine) Steps() int { return e.steps }

func (e *Engine) drain() {
	for {
		ev, ok := e.queue.Pop()
		if !ok {
			return
		}
		switch ev := ev.(type) {
		case event.MarketUpdate:
			e.portfolio.OnMarketUpdate()
			for _, sig := range e.strategy.OnMarket() {
				e.queue.Push(sig)
			}
		case event.Signal:
			order, ok := e.portfolio.OnSignal(ev)
			if !ok {
				continue
			}
			notional := math.Abs(order.Price * float64(order.Quantity))
			if !e.limits.Allow(notional) {
				e.log.Warn().Str("market", order.Market).Float64("notional", notional).Msg("order rejected by risk limit")
				continue
			}
			e.queue.Push(order)
		case event.Order:
			e.queue.Push(e.exec.Execute(ev, e.fillTime(ev.Market)))
		case event.Fill:
			e.portfolio.OnFill(ev)
		default:
			e.log.Warn().Str("kind", string(ev.Kind())).Msg("unhandled event kind dropped")
		}
	}
}

// fillTime stamps fills with the bucket of the bar that triggered them.
func (e *Engine) fillTime(market string) time.Time {
	if b, ok := e.data.Latest(market); ok {
		return b.Bucket
	}
	return time.Time{}
}
