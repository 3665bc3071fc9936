package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"logsentry/pkg/models"
)

func TestObserverCounters(t *testing.T) {
	m := New()
	rule := &models.DetectionRule{ID: "auth-001", RuleType: "failed_login_threshold"}

	m.EventProcessed()
	m.EventProcessed()
	m.AlertEmitted(rule)
	m.RuleFaulted(rule)
	m.BucketCreated("auth-001")
	m.AddAlertsWritten(3)

	if got := testutil.ToFloat64(m.EventsProcessed); got != 2 {
		t.Fatalf("expected 2 events, got %v", got)
	}
	if got := testutil.ToFloat64(m.AlertsEmitted.WithLabelValues("auth-001", "failed_login_threshold")); got != 1 {
		t.Fatalf("expected 1 alert, got %v", got)
	}
	if got := testutil.ToFloat64(m.RulesFaulted.WithLabelValues("auth-001", "failed_login_threshold")); got != 1 {
		t.Fatalf("expected 1 fault, got %v", got)
	}
	if got := testutil.ToFloat64(m.AlertsWritten); got != 3 {
		t.Fatalf("expected 3 written alerts, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.BucketCreated("net-001")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `logsentry_window_buckets_created_total{rule_id="net-001"} 1`) {
		t.Fatalf("expected bucket counter in exposition, got:\n%s", body)
	}
}

func TestIndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.IncrementEventsInvalid()
	if got := testutil.ToFloat64(b.EventsInvalid); got != 0 {
		t.Fatalf("expected registries to be independent, got %v", got)
	}
}
