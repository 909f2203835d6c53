// Package replay exposes market history one step at a time, so a backtest
// and a live session drive strategies and the portfolio through the same
// interface.
package replay

import (
	"sort"

	"github.com/rs/zerolog"

	"backtest-go/internal/event"
	"backtest-go/internal/marketdata"
)

// DataHandler is the capability set strategies and the portfolio consume.
// Historic replay and live sessions both satisfy it.
type DataHandler interface {
	// Markets lists the configured markets in deterministic order.
	Markets() []string
	// Latest returns the single most-recently revealed bar for a market.
	// Unknown or not-yet-revealed markets report not-ok.
	Latest(market string) (marketdata.Bar, bool)
	// Revealed returns every bar surfaced so far for a market.
	Revealed(market string) []marketdata.Bar
	// Advance reveals the next bar for every market and emits one
	// MarketUpdate on the queue.
	Advance()
	// Continue reports whether the replay should keep stepping.
	Continue() bool
}

// Historic replays pre-fetched bar histories as if they were arriving live.
type Historic struct {
	markets   []string
	data      map[string][]marketdata.Bar
	cursor    map[string]int
	revealed  map[string][]marketdata.Bar
	exhausted map[string]bool
	queue     *event.Queue
	cont      bool
	log       zerolog.Logger
}

// NewHistoric wraps full bar histories keyed by market. Markets iterate in
// sorted order so replay runs are deterministic.
func NewHistoric(data map[string][]marketdata.Bar, queue *event.Queue, log zerolog.Logger) *Historic {
	markets := make([]string, 0, len(data))
	for m := range data {
		markets = append(markets, m)
	}
	sort.Strings(markets)

	h := &Historic{
		markets:   markets,
		data:      data,
		cursor:    make(map[string]int, len(markets)),
		revealed:  make(map[string][]marketdata.Bar, len(markets)),
		exhausted: make(map[string]bool, len(markets)),
		queue:     queue,
		cont:      true,
		log:       log,
	}
	for _, m := range markets {
		h.revealed[m] = nil
	}
	return h
}

// Markets implements DataHandler.
func (h *Historic) Markets() []string {
	out := make([]string, len(h.markets))
	copy(out, h.markets)
	return out
}

// Advance pulls the next bar for every market. A market running out of
// history does not stop the others from progressing, but it does flip the
// overall continue flag: once any market is exhausted the replay halts.
// Per-market state stays queryable via Exhausted and ActiveMarkets so a
// caller can choose different semantics.
func (h *Historic) Advance() {
	for _, m := range h.markets {
		i := h.cursor[m]
		bars := h.data[m]
		if i >= len(bars) {
			if !h.exhausted[m] {
				h.exhausted[m] = true
				h.log.Info().Str("market", m).Msg("market history exhausted")
			}
			h.cont = false
			continue
		}
		h.revealed[m] = append(h.revealed[m], bars[i])
		h.cursor[m] = i + 1
	}
	h.queue.Push(event.MarketUpdate{})
}

// Latest implements DataHandler. Despite the history being available, only
// the single most recent bar is returned; use Revealed for more.
func (h *Historic) Latest(market string) (marketdata.Bar, bool) {
	revealed, ok := h.revealed[market]
	if !ok {
		h.log.Warn().Str("market", market).Msg("market is not in the replay set")
		return marketdata.Bar{}, false
	}
	if len(revealed) == 0 {
		return marketdata.Bar{}, false
	}
	return revealed[len(revealed)-1], true
}

// Revealed implements DataHandler.
func (h *Historic) Revealed(market string) []marketdata.Bar {
	revealed := h.revealed[market]
	out := make([]marketdata.Bar, len(revealed))
	copy(out, revealed)
	return out
}

// Continue implements DataHandler.
func (h *Historic) Continue() bool { return h.cont }

// Exhausted reports whether a single market has run out of history.
func (h *Historic) Exhausted(market string) bool { return h.exhausted[market] }

// ActiveMarkets lists the markets that still have bars to reveal.
func (h *Historic) ActiveMarkets() []string {
	active := make([]string, 0, len(h.markets))
	for _, m := range h.markets {
		if !h.exhausted[m] {
			active = append(active, m)
		}
	}
	return active
}
