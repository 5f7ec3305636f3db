package entities

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Payload is the domain-specific part of a node (the function a call node invokes,
// the expression class of a material node, the state name of an anim state, ...).
type Payload interface {
	Kind() string
	Clone() Payload
}

// DefaultObserver is implemented by payloads that derive state from pin defaults.
type DefaultObserver interface {
	PinDefaultChanged(node *Node, pin *Pin)
}

// LinkObserver is implemented by payloads that derive state from pin links.
type LinkObserver interface {
	PinLinksChanged(node *Node, pin *Pin)
}

// EnabledState controls whether a node takes part in compilation.
type EnabledState string

const (
	StateEnabled         EnabledState = "enabled"
	StateDisabled        EnabledState = "disabled"
	StateDevelopmentOnly EnabledState = "development_only"
)

// ParseEnabledState accepts the state names plus "true"/"false" shorthands.
func ParseEnabledState(s string) (EnabledState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enabled", "enable", "true", "on":
		return StateEnabled, nil
	case "disabled", "disable", "false", "off":
		return StateDisabled, nil
	case "development_only", "development", "dev":
		return StateDevelopmentOnly, nil
	}
	return "", fmt.Errorf("unknown enabled state %q", s)
}

// Params is the loosely-typed parameter bag a node is created from.
type Params map[string]any

// Lookup finds a key case-insensitively, preferring an exact match.
func (p Params) Lookup(key string) (any, bool) {
	if v, ok := p[key]; ok {
		return v, true
	}
	for k, v := range p {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether key is present with a non-nil value.
func (p Params) Has(key string) bool {
	v, ok := p.Lookup(key)
	return ok && v != nil
}

// String returns the value for key rendered as a string.
func (p Params) String(key string) (string, bool) {
	v, ok := p.Lookup(key)
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprint(t), true
	}
}

// StringOr returns the string value for key or def when absent.
func (p Params) StringOr(key, def string) string {
	if s, ok := p.String(key); ok && s != "" {
		return s
	}
	return def
}

// Int returns the value for key as an int. JSON numbers and numeric strings are accepted.
func (p Params) Int(key string) (int, bool, error) {
	v, ok := p.Lookup(key)
	if !ok || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		if t != float64(int(t)) {
			return 0, true, fmt.Errorf("parameter %q must be an integer, got %v", key, t)
		}
		return int(t), true, nil
	case int:
		return t, true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, true, fmt.Errorf("parameter %q must be an integer, got %q", key, t)
		}
		return n, true, nil
	}
	return 0, true, fmt.Errorf("parameter %q must be an integer, got %T", key, v)
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone makes a shallow copy
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
