package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParamKind tags the scalar held by a Param.
type ParamKind int

const (
	ParamString ParamKind = iota
	ParamInt
	ParamFloat
	ParamBool
)

func (k ParamKind) String() string {
	switch k {
	case ParamString:
		return "string"
	case ParamInt:
		return "int"
	case ParamFloat:
		return "float"
	case ParamBool:
		return "bool"
	default:
		return "unknown"
	}
}

// ErrNotCoercible is returned when a Param cannot be read as the requested type.
var ErrNotCoercible = errors.New("parameter not coercible")

// Param is a rule parameter value. Coercion happens when a detector reads it.
type Param struct {
	kind ParamKind
	s    string
	i    int64
	f    float64
	b    bool
}

func StringParam(v string) Param { return Param{kind: ParamString, s: v} }
func IntParam(v int64) Param     { return Param{kind: ParamInt, i: v} }
func FloatParam(v float64) Param { return Param{kind: ParamFloat, f: v} }
func BoolParam(v bool) Param     { return Param{kind: ParamBool, b: v} }

// ParamFromValue converts a decoded YAML/JSON scalar into a Param.
func ParamFromValue(v interface{}) (Param, error) {
	switch val := v.(type) {
	case string:
		return StringParam(val), nil
	case int:
		return IntParam(int64(val)), nil
	case int64:
		return IntParam(val), nil
	case int32:
		return IntParam(int64(val)), nil
	case uint64:
		if val > math.MaxInt64 {
			return Param{}, fmt.Errorf("%w: %d overflows int64", ErrNotCoercible, val)
		}
		return IntParam(int64(val)), nil
	case float64:
		return FloatParam(val), nil
	case float32:
		return FloatParam(float64(val)), nil
	case bool:
		return BoolParam(val), nil
	case nil:
		return StringParam(""), nil
	default:
		return Param{}, fmt.Errorf("%w: unsupported parameter type %T", ErrNotCoercible, v)
	}
}

// Kind returns the tag of the held value.
func (p Param) Kind() ParamKind { return p.kind }

// AsString renders any scalar as a string.
func (p Param) AsString() (string, error) {
	switch p.kind {
	case ParamString:
		return p.s, nil
	case ParamInt:
		return strconv.FormatInt(p.i, 10), nil
	case ParamFloat:
		return strconv.FormatFloat(p.f, 'f', -1, 64), nil
	case ParamBool:
		return strconv.FormatBool(p.b), nil
	}
	return "", fmt.Errorf("%w: unknown kind", ErrNotCoercible)
}

// AsInt reads the value as an integer. Floats must be integral; strings must parse.
func (p Param) AsInt() (int64, error) {
	switch p.kind {
	case ParamInt:
		return p.i, nil
	case ParamFloat:
		return floatToInt(p.f)
	case ParamString:
		raw := strings.TrimSpace(p.s)
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrNotCoercible, p.s)
		}
		return floatToInt(f)
	}
	return 0, fmt.Errorf("%w: %s is not an integer", ErrNotCoercible, p.kind)
}

// AsFloat reads the value as a float.
func (p Param) AsFloat() (float64, error) {
	switch p.kind {
	case ParamFloat:
		return p.f, nil
	case ParamInt:
		return float64(p.i), nil
	case ParamString:
		f, err := strconv.ParseFloat(strings.TrimSpace(p.s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: %q is not a number", ErrNotCoercible, p.s)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %s is not a number", ErrNotCoercible, p.kind)
}

func (p Param) String() string {
	s, _ := p.AsString()
	return s
}

func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrNotCoercible, f)
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%w: %v overflows int64", ErrNotCoercible, f)
	}
	return int64(f), nil
}

// Params holds a rule's algorithm-specific settings.
type Params map[string]Param

// Lookup returns the named parameter if set.
func (p Params) Lookup(name string) (Param, bool) {
	if p == nil {
		return Param{}, false
	}
	v, ok := p[name]
	return v, ok
}

// DetectionRule is a validated rule record.
type DetectionRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	RuleType    string `json:"rule_type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Enabled     bool   `json:"enabled"`
	Parameters  Params `json:"-"`
	Remediation string `json:"remediation,omitempty"`
}
