package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"logsentry/internal/logger"
	"logsentry/pkg/models"
)

// ErrRuleFile is matched by every rule loading failure.
var ErrRuleFile = errors.New("invalid rule file")

// RuleFileError describes a rule file that cannot be loaded.
type RuleFileError struct {
	Path  string
	Index int // -1 when the whole file is at fault
	Err   error
}

func (e *RuleFileError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("rule file %s: rule #%d: %v", e.Path, e.Index, e.Err)
	}
	return fmt.Sprintf("rule file %s: %v", e.Path, e.Err)
}

func (e *RuleFileError) Unwrap() error { return e.Err }

// Is reports ErrRuleFile as a match.
func (e *RuleFileError) Is(target error) bool { return target == ErrRuleFile }

var requiredFields = []string{"id", "name", "rule_type", "description", "severity", "enabled", "parameters"}

// LoadRules reads detection rules from YAML or JSON files, in path order.
// Each file must hold a list of rule records.
func LoadRules(paths []string) ([]models.DetectionRule, error) {
	out := make([]models.DetectionRule, 0, 16)
	for _, path := range paths {
		rules, err := loadRuleFile(path)
		if err != nil {
			return nil, err
		}
		logger.Debugf("Loaded %d rules from %s", len(rules), path)
		out = append(out, rules...)
	}
	return out, nil
}

func loadRuleFile(path string) ([]models.DetectionRule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &RuleFileError{Path: path, Index: -1, Err: err}
	}

	var items []map[string]interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &items)
	case ".json":
		err = json.Unmarshal(raw, &items)
	default:
		return nil, &RuleFileError{Path: path, Index: -1, Err: fmt.Errorf("unsupported rule file format %q", filepath.Ext(path))}
	}
	if err != nil {
		return nil, &RuleFileError{Path: path, Index: -1, Err: fmt.Errorf("must contain a list of rules: %w", err)}
	}

	rules := make([]models.DetectionRule, 0, len(items))
	for i, item := range items {
		rule, err := parseRule(item)
		if err != nil {
			return nil, &RuleFileError{Path: path, Index: i, Err: err}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseRule(item map[string]interface{}) (models.DetectionRule, error) {
	var missing []string
	for _, field := range requiredFields {
		if _, ok := item[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return models.DetectionRule{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	enabled, err := parseEnabled(item["enabled"])
	if err != nil {
		return models.DetectionRule{}, err
	}
	params, err := parseParameters(item["parameters"])
	if err != nil {
		return models.DetectionRule{}, err
	}

	rule := models.DetectionRule{
		ID:          scalar(item["id"]),
		Name:        scalar(item["name"]),
		RuleType:    scalar(item["rule_type"]),
		Description: scalar(item["description"]),
		Severity:    scalar(item["severity"]),
		Enabled:     enabled,
		Parameters:  params,
	}
	if rem, ok := item["remediation"]; ok && rem != nil {
		rule.Remediation = scalar(rem)
	}
	return rule, nil
}

func parseEnabled(v interface{}) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return false, fmt.Errorf("enabled: %q is not a boolean", val)
		}
		return b, nil
	default:
		return false, fmt.Errorf("enabled: unsupported type %T", v)
	}
}

func parseParameters(v interface{}) (models.Params, error) {
	if v == nil {
		return models.Params{}, nil
	}
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("parameters: expected a mapping, got %T", v)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make(models.Params, len(raw))
	for _, name := range names {
		p, err := models.ParamFromValue(raw[name])
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		params[name] = p
	}
	return params, nil
}

func scalar(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}
