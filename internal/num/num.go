// Package num provides tolerant numeric parsing for generator output.
//
// Generated payloads routinely carry numbers as strings ("$1,200.00"),
// nulls, or garbage. Everything numeric that flows from a generator into the
// reconciliation arithmetic goes through this package so the coercion rules
// live in one place.
package num

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Float is a float64 that decodes leniently from JSON. Numbers, numeric
// strings, null, and booleans are accepted; anything else decodes to 0.
// Decoding never returns an error.
type Float float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = 0
			return nil
		}
		v, _ := parseString(s)
		*f = Float(v)
	case 't':
		*f = 1
	case 'f':
		*f = 0
	default:
		v, err := strconv.ParseFloat(string(data), 64)
		if err != nil || !finite(v) {
			v = 0
		}
		*f = Float(v)
	}
	return nil
}

// Value returns the underlying float64.
func (f Float) Value() float64 { return float64(f) }

// Int truncates toward zero.
func (f Float) Int() int { return int(f) }

// Optional is a Float that remembers whether its field was present in the
// decoded JSON. An explicit null counts as present.
type Optional struct {
	Float
	Set bool
}

// Some returns an Optional holding v.
func Some(v float64) Optional { return Optional{Float: Float(v), Set: true} }

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional) UnmarshalJSON(data []byte) error {
	o.Set = true
	return o.Float.UnmarshalJSON(data)
}

// MarshalJSON implements json.Marshaler.
func (o Optional) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(o.Float))
}

// IsZero reports whether o was never set, for omitzero.
func (o Optional) IsZero() bool { return !o.Set }

// Parse converts an untyped value to float64. Zero, empty, absent, and
// malformed values yield def.
func Parse(v any, def float64) float64 {
	var out float64
	switch x := v.(type) {
	case nil:
		return def
	case Float:
		out = float64(x)
	case float64:
		out = x
	case float32:
		out = float64(x)
	case int:
		out = float64(x)
	case int64:
		out = float64(x)
	case int32:
		out = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return def
		}
		out = f
	case string:
		f, ok := parseString(x)
		if !ok {
			return def
		}
		out = f
	case bool:
		if !x {
			return def
		}
		out = 1
	default:
		return def
	}
	if out == 0 || !finite(out) {
		return def
	}
	return out
}

// Round rounds v to the given number of decimal places, half away from zero.
// Values too large to scale are returned unchanged.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	if !finite(v * p) {
		return v
	}
	return math.Round(v*p) / p
}

// Finite reports whether v is neither NaN nor an infinity.
func Finite(v float64) bool { return finite(v) }

// Max returns the largest value in vs, or 0 for an empty slice.
func Max(vs ...float64) float64 {
	var m float64
	for i, v := range vs {
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}

func parseString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
