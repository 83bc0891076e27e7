package prometheusadapter

import (
	"strconv"
	"time"

	"fieldops/contexts/field-marketing/activation-service/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fieldops"

// Metrics implements ports.Metrics on a caller supplied registerer so tests
// can use a private registry.
type Metrics struct {
	activationTransitions *prometheus.CounterVec
	campaignStatus        *prometheus.CounterVec
	schedulingConflicts   prometheus.Counter
	conflictingAgents     prometheus.Counter
	expiredItems          *prometheus.CounterVec
	sweepDuration         prometheus.Histogram
	positionsSampled      prometheus.Counter
	outboxRelayed         *prometheus.CounterVec
	httpRequestsDuration  *prometheus.HistogramVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		activationTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activation_transitions_total",
			Help:      "The total number of activation status transitions",
		}, []string{"from", "to"}),
		campaignStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_status_changes_total",
			Help:      "The total number of campaign status changes",
		}, []string{"to"}),
		schedulingConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduling_conflicts_total",
			Help:      "The total number of rejected assignments",
		}),
		conflictingAgents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduling_conflict_agents_total",
			Help:      "The total number of agents named in rejected assignments",
		}),
		expiredItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "completed_total",
			Help:      "The total number of items completed by the expiry sweep",
		}, []string{"entity"}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "sweep_duration_seconds",
			Help:      "The latency of expiry sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		positionsSampled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "positions_sampled_total",
			Help:      "The total number of sampled agent positions",
		}),
		outboxRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "messages_total",
			Help:      "The total number of outbox messages handled by the relay",
		}, []string{"result"}),
		httpRequestsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "The latency of the HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}
}

func (m *Metrics) ActivationTransitioned(from entities.ActivationStatus, to entities.ActivationStatus) {
	m.activationTransitions.With(prometheus.Labels{"from": string(from), "to": string(to)}).Inc()
}

func (m *Metrics) CampaignStatusChanged(to entities.CampaignStatus) {
	m.campaignStatus.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) SchedulingConflictDetected(agents int) {
	m.schedulingConflicts.Inc()
	m.conflictingAgents.Add(float64(agents))
}

func (m *Metrics) ExpirySwept(campaigns int, activations int, elapsed time.Duration) {
	m.expiredItems.WithLabelValues("campaign").Add(float64(campaigns))
	m.expiredItems.WithLabelValues("activation").Add(float64(activations))
	m.sweepDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) PositionsSampled(count int) {
	m.positionsSampled.Add(float64(count))
}

func (m *Metrics) OutboxRelayed(published int, failed int) {
	m.outboxRelayed.WithLabelValues("published").Add(float64(published))
	m.outboxRelayed.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) ObserveHTTPRequest(route string, method string, code int, elapsed time.Duration) {
	m.httpRequestsDuration.With(prometheus.Labels{
		"route":  route,
		"method": method,
		"code":   strconv.Itoa(code),
	}).Observe(elapsed.Seconds())
}
