// Package metrics registers the Prometheus instruments shared by the
// refresh pipeline and the HTTP surface. Everything goes through promauto
// into the default registry; the server mounts Handler at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fetches counts provider API calls by resource kind and outcome
	// (ok, network, status, parse).
	Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptvdeck_provider_fetches_total",
		Help: "Provider API fetches by resource kind and outcome.",
	}, []string{"kind", "outcome"})

	// RefreshPasses counts whole refresh passes by result.
	RefreshPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptvdeck_refresh_passes_total",
		Help: "Refresh passes by result (ok, failed).",
	}, []string{"result"})

	// BuildDuration tracks catalog rebuild latency.
	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "iptvdeck_catalog_build_duration_seconds",
		Help:    "Time to rebuild the catalog database from snapshots.",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	// CatalogRows is the row count of the last successful build.
	CatalogRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "iptvdeck_catalog_rows",
		Help: "Rows in the catalog by table.",
	}, []string{"table"})

	// LastRefresh is the unix time of the last successful refresh.
	LastRefresh = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "iptvdeck_last_refresh_timestamp_seconds",
		Help: "Unix time of the last successful refresh.",
	})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
