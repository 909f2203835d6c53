// Package feed hosts the upstream trade-history collaborator: a Poloniex
// style public HTTP API serving raw trades in descending-time pages.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"backtest-go/internal/marketdata"
)

const (
	defaultPageSize = 50000
	defaultTimeout  = 10 * time.Second
	dateLayout      = "2006-01-02 15:04:05"
)

// Client pulls raw trade pages from the public API.
type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
	log      zerolog.Logger
}

// Option configures Client construction parameters.
type Option func(*Client)

// WithTimeout overrides the default HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithPageSize overrides the provider page size (useful in tests).
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient constructs a trade-history client against the given base URL.
func NewClient(baseURL string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		pageSize: defaultPageSize,
		http:     &http.Client{Timeout: defaultTimeout},
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageSize reports the provider page size: a full page means more data may
// remain below the window.
func (c *Client) PageSize() int { return c.pageSize }

// tradeRow mirrors the provider's JSON trade record. Numeric fields arrive
// as strings.
type tradeRow struct {
	TradeID int64  `json:"tradeID"`
	Date    string `json:"date"`
	Type    string `json:"type"`
	Rate    string `json:"rate"`
	Amount  string `json:"amount"`
	Total   string `json:"total"`
}

// TradeHistory fetches one page of trades for a market in [start, end].
// The provider returns at most PageSize records, newest first. Query values
// are built fresh per call.
func (c *Client) TradeHistory(ctx context.Context, market string, start, end time.Time) ([]marketdata.Trade, error) {
	query := url.Values{}
	query.Set("command", "returnTradeHistory")
	query.Set("currencyPair", market)
	query.Set("start", strconv.FormatInt(start.Unix(), 10))
	query.Set("end", strconv.FormatInt(end.Unix(), 10))

	endpoint := fmt.Sprintf("%s/public?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "backtest-go/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var rows []tradeRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	trades := make([]marketdata.Trade, 0, len(rows))
	for _, row := range rows {
		trade, err := row.toTrade(market)
		if err != nil {
			c.log.Warn().Err(err).Str("market", market).Int64("trade_id", row.TradeID).Msg("skipping malformed trade row")
			continue
		}
		trades = append(trades, trade)
	}
	c.log.Debug().Str("market", market).Int("trades", len(trades)).
		Time("start", start).Time("end", end).Msg("fetched trade page")
	return trades, nil
}

func (r tradeRow) toTrade(market string) (marketdata.Trade, error) {
	ts, err := time.ParseInLocation(dateLayout, r.Date, time.UTC)
	if err != nil {
		return marketdata.Trade{}, fmt.Errorf("parse date %q: %w", r.Date, err)
	}
	price, err := strconv.ParseFloat(r.Rate, 64)
	if err != nil {
		return marketdata.Trade{}, fmt.Errorf("parse rate %q: %w", r.Rate, err)
	}
	amount, err := strconv.ParseFloat(r.Amount, 64)
	if err != nil {
		return marketdata.Trade{}, fmt.Errorf("parse amount %q: %w", r.Amount, err)
	}
	total, err := strconv.ParseFloat(r.Total, 64)
	if err != nil || total <= 0 {
		total = price * amount
	}
	side := marketdata.SideSell
	if strings.Contains(strings.ToLower(r.Type), "buy") {
		side = marketdata.SideBuy
	}
	return marketdata.Trade{
		Market:    market,
		Timestamp: ts,
		Price:     price,
		Amount:    amount,
		Total:     total,
		Side:      side,
	}, nil
}
