// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TickersFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "arbilo_tickers_fetched_total", Help: "Tickers fetched successfully"},
		[]string{"venue"},
	)
	FetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "arbilo_fetch_failures_total", Help: "Ticker fetches that exhausted their retry budget"},
		[]string{"venue"},
	)
	RefreshCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "arbilo_refresh_cycles_total", Help: "Refresh scheduler cycles by outcome"},
		[]string{"key", "status"},
	)
	CacheFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "arbilo_cache_fallbacks_total", Help: "Cache operations served by the local fallback store"},
	)
	PushClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "arbilo_push_clients", Help: "Currently connected push subscribers"},
	)
)

func init() {
	prometheus.MustRegister(TickersFetched, FetchFailures, RefreshCycles, CacheFallbacks, PushClients)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
