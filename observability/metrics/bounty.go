package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BountyMetrics aggregates the counters and gauges tracking marketplace
// activity. Access it through Bounty so registration happens exactly once.
type BountyMetrics struct {
	operations      *prometheus.CounterVec
	operationErrors *prometheus.CounterVec
	payouts         prometheus.Counter
	payoutValue     prometheus.Counter
	openBounties    prometheus.Gauge
}

var (
	bountyOnce     sync.Once
	bountyRegistry *BountyMetrics
)

// Bounty returns the process-wide bounty metrics registry.
func Bounty() *BountyMetrics {
	bountyOnce.Do(func() {
		bountyRegistry = &BountyMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bounty_operations_total",
				Help: "Count of bounty engine operations by method.",
			}, []string{"method"}),
			operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bounty_operation_errors_total",
				Help: "Count of failed bounty engine operations by method.",
			}, []string{"method"}),
			payouts: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bounty_payouts_total",
				Help: "Count of settlements paid out of bounty vaults.",
			}),
			payoutValue: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bounty_payout_value_total",
				Help: "Cumulative value paid out of bounty vaults.",
			}),
			openBounties: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "bounty_open_count",
				Help: "Number of bounties currently accepting work.",
			}),
		}
		prometheus.MustRegister(
			bountyRegistry.operations,
			bountyRegistry.operationErrors,
			bountyRegistry.payouts,
			bountyRegistry.payoutValue,
			bountyRegistry.openBounties,
		)
	})
	return bountyRegistry
}

// ObserveOperation records one engine invocation and its outcome.
func (m *BountyMetrics) ObserveOperation(method string, err error) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.operations.WithLabelValues(method).Inc()
	if err != nil {
		m.operationErrors.WithLabelValues(method).Inc()
	}
}

// ObservePayout records a settlement leaving a vault.
func (m *BountyMetrics) ObservePayout(value float64) {
	if m == nil {
		return
	}
	m.payouts.Inc()
	if value > 0 {
		m.payoutValue.Add(value)
	}
}

// SetOpenBounties updates the open-bounty gauge.
func (m *BountyMetrics) SetOpenBounties(n float64) {
	if m == nil {
		return
	}
	m.openBounties.Set(n)
}
