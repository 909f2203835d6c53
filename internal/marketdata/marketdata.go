// Package marketdata defines the data model shared between the feed, the
// aggregator, and the replay layers.
package marketdata

import "time"

// Side indicator values carried on a Trade.
const (
	SideSell = 0
	SideBuy  = 1
)

// Trade is one executed transaction on a market. Immutable once fetched.
type Trade struct {
	Market    string
	Timestamp time.Time // source of truth for ordering
	Price     float64
	Amount    float64
	Total     float64 // price * amount, recomputed when the feed omits it
	Side      int     // SideBuy or SideSell
}

// Stat is the reduction of one numeric trade field over an hour bucket.
type Stat struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	P25   float64
	P50   float64
	P75   float64
	Max   float64
}

// Bar is the hourly statistical summary of all trades for one market in one
// bucket. Count is shared across the four field stats: they describe the
// same set of trades.
type Bar struct {
	Market string
	Bucket time.Time // hour start, UTC
	Price  Stat
	Amount Stat
	Total  Stat
	Side   Stat
}

// Count returns the number of trades the bar summarizes.
func (b Bar) Count() int { return b.Price.Count }

// BucketOf maps a trade timestamp to its hour bucket.
func BucketOf(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Hour)
}
