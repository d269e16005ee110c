package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		chargesTotal,
		paymentChecksTotal,
		paymentCheckAttempts,
		duplicateClaimsTotal,
		staleWritesTotal,
	)
}

var (
	chargesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "charges_total",
			Help: "PIX charges created, labeled by plan and result.",
		},
		[]string{"plan", "result"},
	)

	paymentChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_checks_total",
			Help: "Payment confirmation loops, labeled by mode (burst/poll) and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	paymentCheckAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_check_attempts",
			Help:    "Attempts used per confirmation loop.",
			Buckets: []float64{1, 2, 3, 5, 8, 12},
		},
		[]string{"mode"},
	)

	duplicateClaimsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duplicate_claims_blocked_total",
			Help: "Confirmation claims rejected because the transaction was already processed.",
		},
	)

	staleWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_stale_writes_total",
			Help: "Ledger writes rejected for trying to downgrade a status.",
		},
	)
)

func IncCharge(plan, result string) {
	chargesTotal.WithLabelValues(norm(plan), norm(result)).Inc()
}

func ObservePaymentCheck(mode string, paid bool, attempts int) {
	outcome := "unconfirmed"
	if paid {
		outcome = "paid"
	}
	paymentChecksTotal.WithLabelValues(norm(mode), outcome).Inc()
	paymentCheckAttempts.WithLabelValues(norm(mode)).Observe(float64(attempts))
}

func IncDuplicateClaim() { duplicateClaimsTotal.Inc() }

func IncStaleWrite() { staleWritesTotal.Inc() }
