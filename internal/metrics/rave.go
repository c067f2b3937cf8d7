package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		RaveInitTotal,
		RaveRequeryAttempts,
		RaveRequeryResults,
		RaveVerifyResults,
		RaveVerifyDuration,
		RaveReconcilePending,
	)
}

var (
	// Hand-off payloads built, by currency.
	RaveInitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rave_init_total",
			Help: "Signed checkout payloads built, by currency.",
		},
		[]string{"currency"},
	)

	// Every requery call sent to the gateway, retries included.
	RaveRequeryAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rave_requery_attempts_total",
			Help: "Requery calls sent to the gateway.",
		},
	)

	// status: successful|failed|gave_up|gateway_error
	RaveRequeryResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rave_requery_results_total",
			Help: "Finished requery sequences by terminal status.",
		},
		[]string{"status"},
	)

	// status: verified|declined|mismatch|unresolved
	RaveVerifyResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rave_verify_results_total",
			Help: "Transfer verifications by outcome.",
		},
		[]string{"status"},
	)

	RaveVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rave_verify_duration_seconds",
			Help:    "Duration of a requery plus verify sequence in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
		},
		[]string{"status"},
	)

	RaveReconcilePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rave_reconcile_pending",
			Help: "Transactions waiting for an asynchronous recheck.",
		},
	)
)
