package metrics

import (
	"time"

	"github.com/flexprice/ispledger/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Metrics holds the Prometheus metrics of the ledger
type Metrics struct {
	// Registry owns these metrics and backs the /metrics endpoint
	Registry *prometheus.Registry

	chargesCreated    *prometheus.CounterVec
	chargesCancelled  prometheus.Counter
	paymentsAllocated *prometheus.CounterVec
	paymentsCancelled prometheus.Counter
	amountAllocated   prometheus.Counter
	amountCredited    prometheus.Counter
	allocationRetries *prometheus.CounterVec
	billingRun        *prometheus.CounterVec
	eventsProcessed   *prometheus.CounterVec
	opDuration        *prometheus.HistogramVec
}

// NewMetrics registers every ledger metric in a private registry, so building it
// more than once (tests) never collides.
func NewMetrics(cfg *config.Configuration) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	ns := cfg.Metrics.Namespace
	if ns == "" {
		ns = "ispledger"
	}

	return &Metrics{
		Registry: reg,

		chargesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "charges_created_total",
				Help:      "Charges created by charge type.",
			},
			[]string{"charge_type"},
		),
		chargesCancelled: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "charges_cancelled_total",
				Help:      "Charges cancelled.",
			},
		),
		paymentsAllocated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "payments_allocated_total",
				Help:      "Payments recorded and allocated by payment method.",
			},
			[]string{"payment_method"},
		),
		paymentsCancelled: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "payments_cancelled_total",
				Help:      "Payments cancelled and reversed.",
			},
		),
		amountAllocated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "amount_allocated_total",
				Help:      "Money applied to charges.",
			},
		),
		amountCredited: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "amount_credited_total",
				Help:      "Money recorded as client credit.",
			},
		),
		allocationRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "allocation_conflicts_total",
				Help:      "Allocations that lost a race, by outcome of the retry.",
			},
			[]string{"outcome"},
		),
		billingRun: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "billing_run_subscriptions_total",
				Help:      "Subscriptions processed by billing runs, by result.",
			},
			[]string{"result"},
		),
		eventsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "events_processed_total",
				Help:      "Ledger events consumed, by topic and status.",
			},
			[]string{"topic", "status"},
		),
		opDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "operation_duration_seconds",
				Help:      "Duration of ledger operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
	}
}

func (m *Metrics) IncrChargeCreated(chargeType string) {
	m.chargesCreated.WithLabelValues(chargeType).Inc()
}

func (m *Metrics) IncrChargeCancelled() {
	m.chargesCancelled.Inc()
}

// RecordAllocation counts one allocated payment and the split of its amount
func (m *Metrics) RecordAllocation(method string, applied, credited decimal.Decimal) {
	m.paymentsAllocated.WithLabelValues(method).Inc()
	m.amountAllocated.Add(applied.InexactFloat64())
	m.amountCredited.Add(credited.InexactFloat64())
}

func (m *Metrics) IncrPaymentCancelled() {
	m.paymentsCancelled.Inc()
}

// IncrAllocationConflict counts a lost race; outcome is "retried" or "exhausted"
func (m *Metrics) IncrAllocationConflict(outcome string) {
	m.allocationRetries.WithLabelValues(outcome).Inc()
}

// IncrBillingRun counts one subscription of a billing run; result is created, skipped or failed
func (m *Metrics) IncrBillingRun(result string) {
	m.billingRun.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrEventProcessed(topic, status string) {
	m.eventsProcessed.WithLabelValues(topic, status).Inc()
}

// ObserveOperation records how long operation took; pass the operation's error to label the status
func (m *Metrics) ObserveOperation(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.opDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
