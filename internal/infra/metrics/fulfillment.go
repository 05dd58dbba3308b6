package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		fulfillmentTotal,
		syncAttemptsTotal,
	)
}

var (
	// kind: subscription|topup
	// result: ok|provisioning_failed|user_missing|tariff_missing
	fulfillmentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_fulfillment_total",
			Help: "Fulfillment outcomes after a paid transition.",
		},
		[]string{"kind", "result"},
	)

	// status: ok|error|dropped
	syncAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_sync_total",
			Help: "Background bot-sync dispatch outcomes.",
		},
		[]string{"status"},
	)
)

func IncFulfillment(kind, result string) {
	fulfillmentTotal.WithLabelValues(norm(kind), norm(result)).Inc()
}

func IncSync(status string) {
	syncAttemptsTotal.WithLabelValues(norm(status)).Inc()
}
