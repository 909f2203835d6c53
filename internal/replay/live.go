package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"backtest-go/internal/bar"
	"backtest-go/internal/event"
	"backtest-go/internal/marketdata"
)

// Live is the websocket-fed DataHandler variant. Trades stream into a
// per-market buffer in the background; each Advance reduces whatever
// arrived since the previous step into one bar, using the same statistics
// as the historical aggregator.
type Live struct {
	url     string
	markets []string
	queue   *event.Queue
	log     zerolog.Logger

	mu       sync.Mutex
	pending  map[string][]marketdata.Trade
	revealed map[string][]marketdata.Bar
	cont     bool
}

// NewLive builds a live handler for the given stream URL and markets.
func NewLive(url string, markets []string, queue *event.Queue, log zerolog.Logger) *Live {
	sorted := make([]string, len(markets))
	copy(sorted, markets)
	sort.Strings(sorted)

	l := &Live{
		url:      url,
		markets:  sorted,
		queue:    queue,
		log:      log,
		pending:  make(map[string][]marketdata.Trade, len(sorted)),
		revealed: make(map[string][]marketdata.Bar, len(sorted)),
		cont:     true,
	}
	for _, m := range sorted {
		l.revealed[m] = nil
	}
	return l
}

type streamEnvelope struct {
	Stream string      `json:"stream"`
	Data   streamTrade `json:"data"`
}

type streamTrade struct {
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// Run consumes the trade stream until the context is canceled, buffering
// trades for the next Advance. Disconnects are retried with backoff.
func (l *Live) Run(ctx context.Context) error {
	streams := make([]string, len(l.markets))
	for i, m := range l.markets {
		streams[i] = strings.ToLower(strings.ReplaceAll(m, "_", "")) + "@trade"
	}
	url := fmt.Sprintf("%s?streams=%s", l.url, strings.Join(streams, "/"))

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		if ctx.Err() != nil {
			l.stop()
			return ctx.Err()
		}
		if err := l.consumeStream(ctx, url); err != nil {
			if ctx.Err() != nil {
				l.stop()
				return ctx.Err()
			}
			l.log.Warn().Err(err).Msg("trade stream disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				l.stop()
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		l.stop()
		return nil
	}
}

func (l *Live) consumeStream(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	l.log.Info().Strs("markets", l.markets).Msg("connected live trade stream")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env streamEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			l.log.Warn().Err(err).Msg("failed to decode stream message")
			continue
		}
		trade, market, err := l.parseStreamTrade(env)
		if err != nil {
			l.log.Warn().Err(err).Msg("invalid trade from stream")
			continue
		}

		l.mu.Lock()
		l.pending[market] = append(l.pending[market], trade)
		l.mu.Unlock()
	}
}

func (l *Live) parseStreamTrade(env streamEnvelope) (marketdata.Trade, string, error) {
	market := l.matchMarket(env.Stream)
	if market == "" {
		return marketdata.Trade{}, "", fmt.Errorf("stream %q matches no configured market", env.Stream)
	}
	price, err := strconv.ParseFloat(env.Data.Price, 64)
	if err != nil {
		return marketdata.Trade{}, "", fmt.Errorf("parse price %q: %w", env.Data.Price, err)
	}
	amount, err := strconv.ParseFloat(env.Data.Quantity, 64)
	if err != nil {
		return marketdata.Trade{}, "", fmt.Errorf("parse quantity %q: %w", env.Data.Quantity, err)
	}
	side := marketdata.SideBuy
	if env.Data.IsBuyerMaker {
		side = marketdata.SideSell
	}
	return marketdata.Trade{
		Market:    market,
		Timestamp: time.UnixMilli(env.Data.TradeTime).UTC(),
		Price:     price,
		Amount:    amount,
		Total:     price * amount,
		Side:      side,
	}, market, nil
}

func (l *Live) matchMarket(stream string) string {
	name := strings.ToUpper(strings.Split(stream, "@")[0])
	for _, m := range l.markets {
		if strings.ReplaceAll(m, "_", "") == name {
			return m
		}
	}
	return ""
}

// Advance reduces the trades buffered since the last step into one bar per
// market and emits a MarketUpdate. Markets with no trades this step reveal
// nothing, mirroring an hour with no historic data.
func (l *Live) Advance() {
	l.mu.Lock()
	for _, m := range l.markets {
		trades := l.pending[m]
		if len(trades) == 0 {
			continue
		}
		l.pending[m] = nil
		bucket := marketdata.BucketOf(trades[len(trades)-1].Timestamp)
		l.revealed[m] = append(l.revealed[m], bar.Reduce(m, bucket, trades))
	}
	l.mu.Unlock()
	l.queue.Push(event.MarketUpdate{})
}

// Markets implements DataHandler.
func (l *Live) Markets() []string {
	out := make([]string, len(l.markets))
	copy(out, l.markets)
	return out
}

// Latest implements DataHandler.
func (l *Live) Latest(market string) (marketdata.Bar, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	revealed, ok := l.revealed[market]
	if !ok {
		l.log.Warn().Str("market", market).Msg("market is not in the live set")
		return marketdata.Bar{}, false
	}
	if len(revealed) == 0 {
		return marketdata.Bar{}, false
	}
	return revealed[len(revealed)-1], true
}

// Revealed implements DataHandler.
func (l *Live) Revealed(market string) []marketdata.Bar {
	l.mu.Lock()
	defer l.mu.Unlock()
	revealed := l.revealed[market]
	out := make([]marketdata.Bar, len(revealed))
	copy(out, revealed)
	return out
}

// Continue implements DataHandler. A live session runs until its stream
// stops for good.
func (l *Live) Continue() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cont
}

func (l *Live) stop() {
	l.mu.Lock()
	l.cont = false
	l.mu.Unlock()
}
