package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		confirmResultsTotal,
		outcomeDMTotal,
	)
}

var (
	// decision: approved|user_cancelled|technical_failure|timeout
	confirmResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirmations_total",
			Help: "Gateway confirmation prompts by decision.",
		},
		[]string{"decision"},
	)

	// Telegram DM attempts grouped by outcome kind and delivery status.
	// status: sent|error
	outcomeDMTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outcome_dm_total",
			Help: "Telegram DMs about attempt outcomes by kind and delivery status.",
		},
		[]string{"kind", "status"},
	)
)

func IncConfirmation(decision string) { confirmResultsTotal.WithLabelValues(norm(decision)).Inc() }

func IncOutcomeDM(kind, status string) {
	outcomeDMTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}
