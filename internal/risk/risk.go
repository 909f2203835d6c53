// Package risk holds the guard-rails applied to orders before execution.
package risk

// Limits caps how much notional one order may carry.
type Limits struct {
	MaxNotionalPerTrade float64
}

// Allow reports whether an order of the given notional may proceed. A zero
// or negative limit disables the check.
func (l Limits) Allow(notional float64) bool {
	if l.MaxNotionalPerTrade <= 0 {
		return true
	}
	return notional <= l.MaxNotionalPerTrade
}
