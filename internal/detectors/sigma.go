package detectors

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"logsentry/internal/window"
	"logsentry/pkg/models"
)

var techniqueTagRegex = regexp.MustCompile(`^attack\.t\d{4}(?:\.\d{3})?$`)

// ErrUnsupportedSigma is returned for Sigma rules that need more than one event to match.
var ErrUnsupportedSigma = errors.New("unsupported sigma rule")

type compiledSigmaRule struct {
	id        string
	title     string
	level     string
	tactic    string
	technique string
	eval      *sigmaevaluator.RuleEvaluator
}

// SigmaCatalog holds compiled single-event Sigma rules addressed by id.
type SigmaCatalog struct {
	mu    sync.RWMutex
	rules map[string]*compiledSigmaRule
}

// NewSigmaCatalog creates an empty catalog.
func NewSigmaCatalog() *SigmaCatalog {
	return &SigmaCatalog{rules: make(map[string]*compiledSigmaRule)}
}

// Add compiles a parsed Sigma rule. The rule id falls back to its title.
func (c *SigmaCatalog) Add(rule sigma.Rule) (string, error) {
	id := strings.TrimSpace(rule.ID)
	if id == "" {
		id = strings.TrimSpace(rule.Title)
	}
	if id == "" {
		return "", fmt.Errorf("%w: rule has neither id nor title", ErrUnsupportedSigma)
	}
	if ok, reason := isSimpleSingleEventRule(rule); !ok {
		return id, fmt.Errorf("%w: %s: %s", ErrUnsupportedSigma, id, reason)
	}

	level := strings.ToLower(strings.TrimSpace(rule.Level))
	if level == "" {
		level = "medium"
	}
	tactic, technique := parseAttackTags(rule.Tags)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules[id] = &compiledSigmaRule{
		id:        id,
		title:     strings.TrimSpace(rule.Title),
		level:     level,
		tactic:    tactic,
		technique: technique,
		eval:      sigmaevaluator.ForRule(rule),
	}
	return id, nil
}

// Len returns the number of compiled rules.
func (c *SigmaCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}

// IDs lists compiled rule ids in sorted order.
func (c *SigmaCatalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.rules))
	for id := range c.rules {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (c *SigmaCatalog) get(id string) (*compiledSigmaRule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rules[id]
	return r, ok
}

// SigmaDetector raises one alert for every event matched by a catalog rule.
// Like the anomaly detector it keeps no window state.
type SigmaDetector struct {
	catalog *SigmaCatalog
	ctx     context.Context
}

// NewSigmaDetector creates a detector over a compiled catalog.
func NewSigmaDetector(catalog *SigmaCatalog) *SigmaDetector {
	if catalog == nil {
		catalog = NewSigmaCatalog()
	}
	return &SigmaDetector{catalog: catalog, ctx: context.Background()}
}

type sigmaSettings struct {
	rule     *compiledSigmaRule
	category string
	groupBy  string
}

func (d *SigmaDetector) settings(rule *models.DetectionRule) (sigmaSettings, error) {
	p := paramsOf(rule)
	var s sigmaSettings

	id, err := p.str("sigma_id", "")
	if err != nil {
		return s, err
	}
	if id == "" {
		return s, p.fail("sigma_id", errors.New("is required"))
	}
	compiled, ok := d.catalog.get(id)
	if !ok {
		return s, p.fail("sigma_id", fmt.Errorf("no compiled sigma rule %q", id))
	}
	s.rule = compiled
	if s.category, err = p.str("event_category", ""); err != nil {
		return s, err
	}
	if s.groupBy, err = p.str("group_by", ""); err != nil {
		return s, err
	}
	return s, nil
}

// Type implements Detector.
func (d *SigmaDetector) Type() string { return TypeSigmaMatch }

// Validate implements Detector.
func (d *SigmaDetector) Validate(rule *models.DetectionRule) error {
	_, err := d.settings(rule)
	return err
}

// Detect implements Detector.
func (d *SigmaDetector) Detect(_ *window.Partition, rule *models.DetectionRule, event *models.Event, now time.Time) ([]*models.Alert, error) {
	cfg, err := d.settings(rule)
	if err != nil {
		return nil, err
	}
	if cfg.category != "" && event.Category != cfg.category {
		return nil, nil
	}

	res, err := cfg.rule.eval.Matches(d.ctx, sigmaEventFrom(event))
	if err != nil || !res.Match {
		return nil, nil
	}

	key := fallbackGroupKey
	if cfg.groupBy != "" {
		key = event.FieldOr(cfg.groupBy, fallbackGroupKey)
	}
	alert := newAlert(rule, key, event, now, []models.Event{*event})
	alert.Title = fmt.Sprintf("%s: %s", rule.Name, cfg.rule.title)
	alert.Description = describeSigmaMatch(cfg.rule, key)
	return []*models.Alert{alert}, nil
}

func describeSigmaMatch(r *compiledSigmaRule, key string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sigma rule %s (level %s) matched for %s.", r.id, r.level, key)
	if r.tactic != "" {
		fmt.Fprintf(&b, " Tactic: %s.", r.tactic)
	}
	if r.technique != "" {
		fmt.Fprintf(&b, " Technique: %s.", r.technique)
	}
	return b.String()
}

func sigmaEventFrom(event *models.Event) map[string]interface{} {
	buf := make(map[string]interface{}, len(event.Details)+3)
	for k, v := range event.Details {
		buf[k] = v
	}
	buf["category"] = event.Category
	buf["severity"] = event.Severity
	if event.Source != "" {
		buf["source"] = event.Source
	}
	return buf
}

func isSimpleSingleEventRule(rule sigma.Rule) (bool, string) {
	if rule.Detection.Timeframe > 0 {
		return false, "timeframe is not supported"
	}

	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil {
			return false, "aggregation condition is not supported"
		}
		if !isSimpleSearchExpression(cond.Search) {
			return false, "complex condition expression is not supported"
		}
	}

	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 {
			return false, "keyword search is not supported"
		}
		if len(search.EventMatchers) == 0 {
			return false, "search has no event matchers"
		}
	}

	return true, ""
}

func isSimpleSearchExpression(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.And:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Or:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Not:
		return isSimpleSearchExpression(e.Expr)
	default:
		return false
	}
}

func parseAttackTags(tags []string) (string, string) {
	var tactic string
	var technique string

	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if !strings.HasPrefix(tag, "attack.") {
			continue
		}
		suffix := strings.TrimPrefix(tag, "attack.")
		if technique == "" && techniqueTagRegex.MatchString(tag) {
			technique = strings.ToUpper(strings.ReplaceAll(suffix, ".", "/"))
			continue
		}
		if tactic == "" && !strings.HasPrefix(suffix, "t") {
			tactic = strings.ReplaceAll(suffix, "_", "-")
		}
	}

	return tactic, technique
}
