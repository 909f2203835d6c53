// Package bar folds paginated raw trade history into hourly statistical
// summaries, merging buckets that straddle page boundaries.
package bar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"backtest-go/internal/marketdata"
	"backtest-go/internal/metrics"
)

var (
	// ErrFeed wraps upstream transport or parse failures. Fatal for the
	// current fetch, never retried.
	ErrFeed = errors.New("trade feed failed")
	// ErrEmptyRange signals a window that yielded zero trades.
	ErrEmptyRange = errors.New("no trades in range")
)

// TradeSource is the slice of the upstream feed the aggregator needs.
type TradeSource interface {
	TradeHistory(ctx context.Context, market string, start, end time.Time) ([]marketdata.Trade, error)
	PageSize() int
}

// Aggregator turns a feed's descending-time trade pages into an ascending
// sequence of hourly bars.
type Aggregator struct {
	source TradeSource
	pacing time.Duration
	log    zerolog.Logger
}

// NewAggregator wires an aggregator to a trade source. pacing is the
// courtesy delay observed between page requests.
func NewAggregator(source TradeSource, pacing time.Duration, log zerolog.Logger) *Aggregator {
	return &Aggregator{source: source, pacing: pacing, log: log}
}

// FetchBars consumes the window [start, end] by repeated paged fetches and
// reduces it to hourly bars. The feed serves trades newest first, so each
// page narrows the window from the top: the next page's end is the minimum
// timestamp seen so far. A bucket split across two pages is merged by a
// count-weighted combination of its statistics.
func (a *Aggregator) FetchBars(ctx context.Context, market string, start, end time.Time) ([]marketdata.Bar, error) {
	pageEnd := end
	pageSize := a.source.PageSize()
	var acc []marketdata.Bar // ascending by bucket
	total := 0

	for {
		trades, err := a.source.TradeHistory(ctx, market, start, pageEnd)
		if err != nil {
			return nil, fmt.Errorf("%w: %s [%s..%s]: %v", ErrFeed, market, start, pageEnd, err)
		}
		if len(trades) == 0 {
			break
		}
		metrics.TradesFetched.WithLabelValues(market).Add(float64(len(trades)))

		pageEnd = minTimestamp(trades)
		page := reducePage(market, trades)

		// A page boundary can split one hour across two pages: the oldest
		// accumulated bucket then reappears as the newest bucket of the
		// older page. Merge the pair and drop the duplicate.
		if len(acc) > 0 && len(page) > 0 && acc[0].Bucket.Equal(page[len(page)-1].Bucket) {
			acc[0] = Merge(page[len(page)-1], acc[0])
			page = page[:len(page)-1]
		}
		acc = append(page, acc...)
		total += len(trades)

		// The provider pages at a fixed size; a short page means the window
		// is drained.
		if total%pageSize != 0 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.pacing):
		}
	}

	if total == 0 {
		return nil, fmt.Errorf("%s [%s..%s]: %w", market, start, end, ErrEmptyRange)
	}

	sort.Slice(acc, func(i, j int) bool { return acc[i].Bucket.Before(acc[j].Bucket) })
	metrics.BarsTotal.WithLabelValues(market).Add(float64(len(acc)))
	a.log.Info().Str("market", market).Int("trades", total).Int("bars", len(acc)).Msg("acquired trade history")
	return acc, nil
}

// reducePage groups one page of trades into hour buckets and reduces each
// bucket, returning bars in ascending bucket order.
func reducePage(market string, trades []marketdata.Trade) []marketdata.Bar {
	buckets := make(map[time.Time][]marketdata.Trade)
	for _, trade := range trades {
		key := marketdata.BucketOf(trade.Timestamp)
		buckets[key] = append(buckets[key], trade)
	}
	keys := make([]time.Time, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	bars := make([]marketdata.Bar, 0, len(keys))
	for _, key := range keys {
		bars = append(bars, Reduce(market, key, buckets[key]))
	}
	return bars
}

// Reduce computes the hourly bar for one bucket of trades. Exported for the
// live replay variant, which reduces buffered trades the same way.
func Reduce(market string, bucket time.Time, trades []marketdata.Trade) marketdata.Bar {
	n := len(trades)
	price := make([]float64, n)
	amount := make([]float64, n)
	totals := make([]float64, n)
	side := make([]float64, n)
	for i, trade := range trades {
		price[i] = trade.Price
		amount[i] = trade.Amount
		totals[i] = trade.Total
		side[i] = float64(trade.Side)
	}
	return marketdata.Bar{
		Market: market,
		Bucket: bucket,
		Price:  reduceField(price),
		Amount: reduceField(amount),
		Total:  reduceField(totals),
		Side:   reduceField(side),
	}
}

func reduceField(values []float64) marketdata.Stat {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	std := 0.0
	if len(values) > 1 {
		std = stat.StdDev(values, nil)
	}
	return marketdata.Stat{
		Count: len(values),
		Mean:  stat.Mean(values, nil),
		Std:   std,
		Min:   floats.Min(sorted),
		P25:   quantile(sorted, 0.25),
		P50:   quantile(sorted, 0.5),
		P75:   quantile(sorted, 0.75),
		Max:   floats.Max(sorted),
	}
}

// quantile linearly interpolates between adjacent order statistics at
// position p*(n-1).
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Merge combines two bars for the same bucket by a count-weighted linear
// combination of every statistic. The weighting is exact for Mean only; for
// Std, Min, Max, and the quartiles the merged values are approximations, so
// bars that straddle a page boundary carry estimated order statistics.
func Merge(a, b marketdata.Bar) marketdata.Bar {
	merged := a
	merged.Price = mergeStat(a.Price, b.Price)
	merged.Amount = mergeStat(a.Amount, b.Amount)
	merged.Total = mergeStat(a.Total, b.Total)
	merged.Side = mergeStat(a.Side, b.Side)
	return merged
}

func mergeStat(a, b marketdata.Stat) marketdata.Stat {
	ca, cb := float64(a.Count), float64(b.Count)
	n := ca + cb
	if n == 0 {
		return marketdata.Stat{}
	}
	w := func(x, y float64) float64 { return (x*ca + y*cb) / n }
	return marketdata.Stat{
		Count: a.Count + b.Count,
		Mean:  w(a.Mean, b.Mean),
		Std:   w(a.Std, b.Std),
		Min:   w(a.Min, b.Min),
		P25:   w(a.P25, b.P25),
		P50:   w(a.P50, b.P50),
		P75:   w(a.P75, b.P75),
		Max:   w(a.Max, b.Max),
	}
}

func minTimestamp(trades []marketdata.Trade) time.Time {
	min := trades[0].Timestamp
	for _, trade := range trades[1:] {
		if trade.Timestamp.Before(min) {
			min = trade.Timestamp
		}
	}
	return min
}
