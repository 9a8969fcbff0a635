package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		attemptsTotal,
		attemptRounds,
		quickCheckHits,
		cancelRacesLost,
		attemptsLive,
	)
}

var (
	// Outcome: succeeded|failed|processing|cancelled.
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_attempts_total",
			Help: "Reconciliation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	attemptRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_attempt_rounds",
			Help:    "Polling rounds consumed per attempt before resolution.",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 10},
		},
	)

	quickCheckHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_quickcheck_hits_total",
			Help: "Attempts resolved by the forced-refresh quick check with zero polling rounds.",
		},
	)

	cancelRacesLost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_cancel_races_lost_total",
			Help: "Cancel requests that lost the race to an authoritative terminal round.",
		},
	)

	attemptsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconcile_attempts_live",
			Help: "Reconciliation attempts currently holding live timers.",
		},
	)
)

func IncAttempt(outcome string) { attemptsTotal.WithLabelValues(norm(outcome)).Inc() }

func ObserveAttemptRounds(rounds int) { attemptRounds.Observe(float64(rounds)) }

func IncQuickCheckHit() { quickCheckHits.Inc() }

func IncCancelRaceLost() { cancelRacesLost.Inc() }

func AttemptStarted() { attemptsLive.Inc() }

func AttemptFinished() { attemptsLive.Dec() }
