// Package perf computes summary performance statistics over an equity
// curve.
package perf

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultPeriods is the annualization factor used when the caller has no
// better idea of the bar frequency.
const DefaultPeriods = 252

// SharpeRatio computes the annualized Sharpe ratio of a return series,
// assuming a zero benchmark. periods is the number of bars per year.
func SharpeRatio(returns []float64, periods float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	std := stat.StdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return math.Sqrt(periods) * stat.Mean(returns, nil) / std
}

// Drawdowns walks an equity index and returns the maximum drawdown (in
// index units, i.e. a fraction for a curve starting at 1.0) and the longest
// run of consecutive underwater steps.
func Drawdowns(equity []float64) (maxDrawdown float64, duration int) {
	if len(equity) == 0 {
		return 0, 0
	}
	peak := equity[0]
	underwater := 0
	for _, value := range equity {
		if value > peak {
			peak = value
		}
		drawdown := peak - value
		if drawdown > 0 {
			underwater++
		} else {
			underwater = 0
		}
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
		if underwater > duration {
			duration = underwater
		}
	}
	return maxDrawdown, duration
}
