package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(workerQueueDepth)
}

var workerQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "worker_queue_depth",
	Help: "Tasks waiting for a background runner.",
})

func SetWorkerQueueDepth(n int) { workerQueueDepth.Set(float64(n)) }
