package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(commandsTotal, provisioningTotal, reconcilerRunsTotal)
}

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Inbound dialog commands, labeled by canonical command.",
		},
		[]string{"command"},
	)

	provisioningTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_total",
			Help: "Account provisioning attempts, labeled by class and result.",
		},
		[]string{"class", "result"},
	)

	reconcilerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_runs_total",
			Help: "Pending-payment reconciler ticks, labeled by outcome.",
		},
		[]string{"outcome"},
	)
)

func IncCommand(command string) {
	commandsTotal.WithLabelValues(norm(command)).Inc()
}

func IncProvisioning(class, result string) {
	provisioningTotal.WithLabelValues(norm(class), norm(result)).Inc()
}

func IncReconcilerRun(outcome string) {
	reconcilerRunsTotal.WithLabelValues(norm(outcome)).Inc()
}
