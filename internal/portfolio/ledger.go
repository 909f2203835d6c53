package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"backtest-go/internal/event"
	"backtest-go/internal/metrics"
	"backtest-go/internal/perf"
	"backtest-go/internal/replay"
)

// unitBase scales signal strength into a base order quantity.
const unitBase = 100

// Ledger is the replay-backed Portfolio: signed integer positions per
// market, cash, commission paid, and two parallel append-only histories.
type Ledger struct {
	data           replay.DataHandler
	markets        []string
	startDate      time.Time
	initialCapital float64

	positions  map[string]int64
	cash       float64
	commission float64
	total      float64

	positionsHist []PositionRecord
	holdingsHist  []HoldingRecord

	sharpePeriods float64
	log           zerolog.Logger
}

// NewLedger seeds a ledger at startDate with the initial capital. Both
// histories begin with one synthetic row.
func NewLedger(data replay.DataHandler, startDate time.Time, initialCapital float64, log zerolog.Logger) *Ledger {
	markets := data.Markets()
	positions := make(map[string]int64, len(markets))
	seed := make(map[string]int64, len(markets))
	for _, m := range markets {
		positions[m] = 0
		seed[m] = 0
	}

	return &Ledger{
		data:           data,
		markets:        markets,
		startDate:      startDate,
		initialCapital: initialCapital,
		positions:      positions,
		cash:           initialCapital,
		total:          initialCapital,
		positionsHist:  []PositionRecord{{Datetime: startDate, Positions: seed}},
		holdingsHist:   []HoldingRecord{{Datetime: startDate, Cash: initialCapital, Total: initialCapital}},
		sharpePeriods:  perf.DefaultPeriods,
		log:            log,
	}
}

// OnMarketUpdate implements Portfolio. Every market with a revealed bar is
// marked to that bar's mean price; exactly one row is appended to each
// history regardless of how many markets ticked. When several markets tick
// in one step the snapshot timestamp comes from the last one processed.
func (l *Ledger) OnMarketUpdate() {
	positions := make(map[string]int64)
	at := l.holdingsHist[len(l.holdingsHist)-1].Datetime
	total := l.cash

	for _, m := range l.markets {
		b, ok := l.data.Latest(m)
		if !ok {
			continue
		}
		positions[m] = l.positions[m]
		at = b.Bucket
		total += float64(l.positions[m]) * b.Price.Mean
	}

	l.positionsHist = append(l.positionsHist, PositionRecord{Datetime: at, Positions: positions})
	l.holdingsHist = append(l.holdingsHist, HoldingRecord{
		Datetime:   at,
		Cash:       l.cash,
		Commission: l.commission,
		Total:      total,
	})
}

// OnFill implements Portfolio. Fills with a direction outside BUY/SELL are
// rejected explicitly: logged, counted, and otherwise a no-op.
func (l *Ledger) OnFill(fill event.Fill) {
	var dir int64
	switch fill.Direction {
	case event.Buy:
		dir = 1
	case event.Sell:
		dir = -1
	default:
		l.log.Warn().Str("market", fill.Market).Str("direction", string(fill.Direction)).
			Msg("fill with unrecognized direction ignored")
		return
	}

	l.positions[fill.Market] += dir * fill.Quantity
	cost := float64(dir) * fill.Price * float64(fill.Quantity)
	l.commission += fill.Commission
	l.cash -= cost + fill.Commission
	l.total -= cost + fill.Commission
}

// OnSignal implements Portfolio: the naive order-sizing state machine over
// the sign of the current position. Base unit size is floor(100*strength);
// crossing from long to short (or back) doubles the current absolute
// position. Same-direction signals and EXIT produce no order.
func (l *Ledger) OnSignal(sig event.Signal) (event.Order, bool) {
	b, ok := l.data.Latest(sig.Market)
	if !ok {
		l.log.Warn().Str("market", sig.Market).Msg("signal for market without data ignored")
		return event.Order{}, false
	}
	price := b.Price.Mean
	unit := int64(math.Floor(unitBase * sig.Strength))
	current := l.positions[sig.Market]

	var order event.Order
	switch {
	case sig.Type == event.SignalExit:
		// Exit signals are not sized by this portfolio.
		l.log.Debug().Str("market", sig.Market).Msg("exit signal produces no order")
		return event.Order{}, false
	case sig.Type == event.SignalLong && current == 0:
		order = event.Order{Market: sig.Market, Direction: event.Buy, Quantity: unit, Price: price}
	case sig.Type == event.SignalShort && current == 0:
		order = event.Order{Market: sig.Market, Direction: event.Sell, Quantity: unit, Price: price}
	case sig.Type == event.SignalShort && current > 0:
		order = event.Order{Market: sig.Market, Direction: event.Sell, Quantity: 2 * abs(current), Price: price}
	case sig.Type == event.SignalLong && current < 0:
		order = event.Order{Market: sig.Market, Direction: event.Buy, Quantity: 2 * abs(current), Price: price}
	default:
		// already positioned in the signaled direction
		return event.Order{}, false
	}

	metrics.OrdersTotal.WithLabelValues(order.Market, string(order.Direction)).Inc()
	return order, true
}

// Position returns the signed position for a market.
func (l *Ledger) Position(market string) int64 { return l.positions[market] }

// Cash returns free cash.
func (l *Ledger) Cash() float64 { return l.cash }

// Commission returns total commission paid.
func (l *Ledger) Commission() float64 { return l.commission }

// Total returns the running holdings total maintained by fills.
func (l *Ledger) Total() float64 { return l.total }

// PositionsHistory returns the append-only positions rows.
func (l *Ledger) PositionsHistory() []PositionRecord { return l.positionsHist }

// HoldingsHistory returns the append-only holdings rows.
func (l *Ledger) HoldingsHistory() []HoldingRecord { return l.holdingsHist }

// SetSharpePeriods overrides the annualization factor used by SummaryStats.
func (l *Ledger) SetSharpePeriods(periods float64) { l.sharpePeriods = periods }

// EquityCurve derives per-step simple returns from the holdings history and
// a cumulative-product equity index starting at 1.0.
func (l *Ledger) EquityCurve() []EquityPoint {
	curve := make([]EquityPoint, len(l.holdingsHist))
	equity := 1.0
	for i, row := range l.holdingsHist {
		point := EquityPoint{Datetime: row.Datetime, Total: row.Total, Equity: equity}
		if i > 0 {
			prev := l.holdingsHist[i-1].Total
			if prev != 0 {
				point.Return = row.Total/prev - 1
			}
			equity *= 1 + point.Return
			point.Equity = equity
		}
		curve[i] = point
	}
	return curve
}

// SummaryStats reports total return, Sharpe ratio, and drawdown figures
// over the equity curve.
func (l *Ledger) SummaryStats() []SummaryStat {
	curve := l.EquityCurve()
	returns := make([]float64, 0, len(curve)-1)
	equity := make([]float64, len(curve))
	for i, point := range curve {
		equity[i] = point.Equity
		if i > 0 {
			returns = append(returns, point.Return)
		}
	}

	totalReturn := 1.0
	if len(curve) > 0 {
		totalReturn = curve[len(curve)-1].Equity
	}
	sharpe := perf.SharpeRatio(returns, l.sharpePeriods)
	maxDD, duration := perf.Drawdowns(equity)

	return []SummaryStat{
		{Name: "Total Return", Value: fmt.Sprintf("%0.2f%%", (totalReturn-1)*100)},
		{Name: "Sharpe Ratio", Value: fmt.Sprintf("%0.2f", sharpe)},
		{Name: "Max Drawdown", Value: fmt.Sprintf("%0.2f%%", maxDD*100)},
		{Name: "Drawdown Duration", Value: fmt.Sprintf("%d", duration)},
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
