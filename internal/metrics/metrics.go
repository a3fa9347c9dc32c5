package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CheckoutOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_checkouts_total",
		Help: "Checkout attempts by resulting state.",
	}, []string{"outcome"})

	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_gateway_calls_total",
		Help: "Payment gateway calls by operation and result.",
	}, []string{"op", "result"})

	UnmappedCountries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_unmapped_country_total",
		Help: "Country names missing from the normalization table.",
	})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
