// Package metrics registers prometheus counters for the backtest pipeline
// and serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TradesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_fetched_total", Help: "Raw trades pulled from the upstream feed"},
		[]string{"market"},
	)
	BarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bars_total", Help: "Hourly bars built by the aggregator"},
		[]string{"market"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders produced by the portfolio"},
		[]string{"market", "side"},
	)
	FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fills_total", Help: "Fills produced by the execution simulator"},
		[]string{"market", "side"},
	)
)

func init() {
	prometheus.MustRegister(TradesFetched, BarsTotal, OrdersTotal, FillsTotal)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
