package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"logsentry/pkg/models"
)

// Metrics holds the Prometheus collectors for the engine and pipeline.
type Metrics struct {
	registry *prometheus.Registry

	EventsProcessed  prometheus.Counter
	AlertsEmitted    *prometheus.CounterVec
	RulesFaulted     *prometheus.CounterVec
	BucketsCreated   *prometheus.CounterVec
	EventsInvalid    prometheus.Counter
	AlertWriteErrors prometheus.Counter
	AlertsWritten    prometheus.Counter
}

// New registers every collector on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "logsentry_events_processed_total",
			Help: "Total number of events evaluated by the detection engine",
		}),
		AlertsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logsentry_alerts_emitted_total",
			Help: "Total number of alerts emitted, by rule",
		}, []string{"rule_id", "rule_type"}),
		RulesFaulted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logsentry_rules_faulted_total",
			Help: "Rules disabled because of configuration errors",
		}, []string{"rule_id", "rule_type"}),
		BucketsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logsentry_window_buckets_created_total",
			Help: "Window buckets created, by rule",
		}, []string{"rule_id"}),
		EventsInvalid: factory.NewCounter(prometheus.CounterOpts{
			Name: "logsentry_events_invalid_total",
			Help: "Input records that could not be normalized into events",
		}),
		AlertWriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "logsentry_alert_write_errors_total",
			Help: "Failed alert batch writes",
		}),
		AlertsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "logsentry_alerts_written_total",
			Help: "Alerts successfully handed to the alert writer",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// EventProcessed implements engine.Observer.
func (m *Metrics) EventProcessed() {
	m.EventsProcessed.Inc()
}

// AlertEmitted implements engine.Observer.
func (m *Metrics) AlertEmitted(rule *models.DetectionRule) {
	m.AlertsEmitted.WithLabelValues(rule.ID, rule.RuleType).Inc()
}

// RuleFaulted implements engine.Observer.
func (m *Metrics) RuleFaulted(rule *models.DetectionRule) {
	m.RulesFaulted.WithLabelValues(rule.ID, rule.RuleType).Inc()
}

// BucketCreated implements engine.Observer.
func (m *Metrics) BucketCreated(ruleID string) {
	m.BucketsCreated.WithLabelValues(ruleID).Inc()
}

// IncrementEventsInvalid counts a record that failed normalization.
func (m *Metrics) IncrementEventsInvalid() {
	m.EventsInvalid.Inc()
}

// IncrementAlertWriteErrors counts a failed alert batch write.
func (m *Metrics) IncrementAlertWriteErrors() {
	m.AlertWriteErrors.Inc()
}

// AddAlertsWritten counts alerts delivered to the writer.
func (m *Metrics) AddAlertsWritten(n int) {
	m.AlertsWritten.Add(float64(n))
}
