package detectors

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"logsentry/internal/window"
	"logsentry/pkg/models"
)

// Rule types understood by the built-in detectors.
const (
	TypeFailedLoginThreshold = "failed_login_threshold"
	TypePortScan             = "port_scan"
	TypeDNSAnomaly           = "dns_anomaly"
	TypeSigmaMatch           = "sigma_match"
)

// Detector evaluates one rule against one event.
//
// Detect may read and mutate the rule's window partition and returns the
// alerts produced, in order. Parameters are coerced on every call so that a
// misconfigured rule fails when it is first exercised.
type Detector interface {
	Type() string
	Validate(rule *models.DetectionRule) error
	Detect(win *window.Partition, rule *models.DetectionRule, event *models.Event, now time.Time) ([]*models.Alert, error)
}

// ErrConfig matches every ConfigError via errors.Is.
var ErrConfig = errors.New("rule configuration error")

// ConfigError reports a rule parameter that could not be used.
type ConfigError struct {
	RuleID   string
	RuleType string
	Param    string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rule %s (%s): parameter %q: %v", e.RuleID, e.RuleType, e.Param, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConfig) true for any ConfigError.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// Registry maps rule types to detectors.
type Registry struct {
	mu        sync.RWMutex
	detectors map[string]Detector
}

// NewRegistry creates a registry holding the given detectors.
func NewRegistry(ds ...Detector) *Registry {
	r := &Registry{detectors: make(map[string]Detector, len(ds))}
	for _, d := range ds {
		r.Register(d)
	}
	return r
}

// Builtin returns a registry with the threshold, distinct-value and anomaly
// detectors. A Sigma detector is added when a catalog is supplied.
func Builtin(catalog *SigmaCatalog) *Registry {
	r := NewRegistry(
		&ThresholdDetector{},
		&DistinctDetector{},
		&AnomalyDetector{},
	)
	if catalog != nil {
		r.Register(NewSigmaDetector(catalog))
	}
	return r
}

// Register adds or replaces the detector for its rule type.
func (r *Registry) Register(d Detector) {
	if d == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectors[d.Type()] = d
}

// Lookup returns the detector for a rule type.
func (r *Registry) Lookup(ruleType string) (Detector, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detectors[ruleType]
	return d, ok
}

// Types lists registered rule types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.detectors))
	for t := range r.detectors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func alertID(ruleID, key string, ts time.Time) string {
	return ruleID + ":" + key + ":" + strconv.FormatInt(ts.Unix(), 10)
}

func newAlert(rule *models.DetectionRule, key string, trigger *models.Event, now time.Time, events []models.Event) *models.Alert {
	return &models.Alert{
		ID:          alertID(rule.ID, key, trigger.Timestamp),
		RuleID:      rule.ID,
		GroupKey:    key,
		CreatedAt:   now,
		Priority:    rule.Severity,
		Events:      events,
		Remediation: rule.Remediation,
	}
}

func formatNumber(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}
