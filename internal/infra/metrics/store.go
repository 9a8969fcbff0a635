package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		storeRequestDuration,
		gatewayRefreshTotal,
		ordersTotal,
	)
}

var (
	// Latency of order store calls grouped by operation and result.
	storeRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_store_request_duration_seconds",
			Help:    "Duration of order store operations in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"op", "result"},
	)

	// result: settled|declined|pending|error
	gatewayRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_refresh_total",
			Help: "Forced gateway re-queries by result.",
		},
		[]string{"result"},
	)

	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Order status transitions recorded by the store.",
		},
		[]string{"status"},
	)
)

func ObserveStoreRequest(op, result string, seconds float64) {
	storeRequestDuration.WithLabelValues(norm(op), norm(result)).Observe(seconds)
}

func IncGatewayRefresh(result string) { gatewayRefreshTotal.WithLabelValues(norm(result)).Inc() }

func IncOrderStatus(status string) { ordersTotal.WithLabelValues(norm(status)).Inc() }
