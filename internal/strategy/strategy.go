// Package strategy contains trading signal generation logic wired into
// revealed bars. Strategies receive no payload with a market update; they
// query the replay cursor themselves.
package strategy

import (
	"fmt"
	"strings"

	"backtest-go/internal/event"
	"backtest-go/internal/replay"
)

// Strategy defines behaviour shared by strategy implementations.
type Strategy interface {
	// OnMarket reacts to a market update, returning zero or more signals.
	OnMarket() []event.Signal
	Name() string
}

// Params expresses tunable knobs required by strategy constructors.
type Params struct {
	Threshold float64
}

// Build returns a strategy implementation matching the configured mode.
func Build(mode string, data replay.DataHandler, params Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "momentum":
		return NewMomentum(data, params.Threshold), nil
	case "buyhold", "buy_and_hold":
		return NewBuyAndHold(data), nil
	default:
		return nil, fmt.Errorf("unknown strategy mode %q", mode)
	}
}
