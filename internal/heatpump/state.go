package heatpump

import (
	"encoding/json"
	"math"
)

// Well-known last_state keys.
const (
	KeyMode        = "mode"
	KeySwitch      = "switch"
	KeyTempSet     = "temp_set"
	KeyTempCurrent = "temp_current"
	KeyWorkState   = "work_state"
)

// State is the sparse last_state record. Values arrive as decoded JSON
// (float64, string, bool, nil) or as whatever SetField was given.
//
// Every accessor reports presence separately from the value, so a
// stored 0 or false is never confused with a missing key. A nil State
// reports every key as absent.
type State map[string]any

// Value returns the raw value for key.
func (s State) Value(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s[key]
	return v, ok
}

// Float returns a numeric value. ok is false if the key is absent or not a number.
func (s State) Float(key string) (float64, bool) {
	v, ok := s.Value(key)
	if !ok {
		return 0, false
	}
	return asFloat(v)
}

// Int returns an integral numeric value. ok is false if the key is absent,
// not a number, or has a fractional part.
func (s State) Int(key string) (int, bool) {
	f, ok := s.Float(key)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// String returns a string value. ok is false if the key is absent or not a string.
func (s State) String(key string) (string, bool) {
	v, ok := s.Value(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Clone returns a deep copy of s. Nested maps and slices are copied too.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	cp := make(State, len(s))
	for k, v := range s {
		cp[k] = cloneValue(v)
	}
	return cp
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
