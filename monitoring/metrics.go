package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentInitiations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stk_push_initiations_total",
			Help: "STK push initiation attempts by outcome",
		},
		[]string{"status"},
	)

	callbackResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stk_callback_results_total",
			Help: "Provider callbacks by processing result",
		},
		[]string{"result"},
	)

	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mpesa_request_duration_seconds",
			Help:    "Latency of outbound Daraja requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func RecordInitiation(status string) {
	paymentInitiations.WithLabelValues(status).Inc()
}

func RecordCallback(result string) {
	callbackResults.WithLabelValues(result).Inc()
}

func ObserveProviderRequest(operation string, start time.Time) {
	providerRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
