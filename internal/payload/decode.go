// Package payload defines the typed stage payloads produced by the content
// generator. Generator output is untrusted: Decode rejects anything that does
// not map onto the expected shape so the caller can retry or fall back.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidJSON is returned when the raw bytes are not a JSON object.
	ErrInvalidJSON = errors.New("payload: invalid JSON object")

	// ErrMissingKey is returned when a required top-level key is absent or null.
	ErrMissingKey = errors.New("payload: missing required key")
)

// Payload is implemented by every stage payload type.
type Payload interface {
	// RequiredKeys lists the top-level keys that must be present and non-null.
	RequiredKeys() []string

	// Validate checks semantic constraints after decoding.
	Validate() error
}

// Decode parses raw into T, enforcing T's required keys and validation.
func Decode[T Payload](raw []byte) (T, error) {
	var zero T

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	var v T
	var missing []string
	for _, k := range v.RequiredKeys() {
		val, ok := keys[k]
		if !ok || bytes.Equal(bytes.TrimSpace(val), []byte("null")) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return zero, fmt.Errorf("%w: %s", ErrMissingKey, strings.Join(missing, ", "))
	}

	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("payload: decode %T: %w", v, err)
	}
	if err := v.Validate(); err != nil {
		return zero, err
	}
	return v, nil
}

// Text is a string that also accepts non-string JSON by keeping its compact
// encoding. Generators frequently answer free-text fields with objects.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*t = Text(buf.String())
	}
	return nil
}

// String returns the text value.
func (t Text) String() string { return string(t) }

// TextList is a list of strings that also accepts a single string or a list
// of mixed values.
type TextList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *TextList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] != '[' {
		var t Text
		if err := t.UnmarshalJSON(data); err != nil {
			return err
		}
		if t == "" {
			*l = TextList{}
			return nil
		}
		*l = TextList{string(t)}
		return nil
	}

	var items []Text
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(TextList, 0, len(items))
	for _, it := range items {
		out = append(out, string(it))
	}
	*l = out
	return nil
}

// Flag is a bool that also accepts "true"/"yes" strings and numbers.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*f = true
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "y", "1":
			*f = true
		default:
			*f = false
		}
	case len(data) > 0 && (data[0] >= '1' && data[0] <= '9'):
		*f = true
	default:
		*f = false
	}
	return nil
}
