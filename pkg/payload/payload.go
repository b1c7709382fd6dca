// Package payload provides tolerant accessors over decoded JSON message
// bodies and parser payloads. Producers are inconsistent about casing, so
// every accessor accepts a list of candidate keys and additionally tries the
// snake_case/camelCase twin of each one.
package payload

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"
)

// Body is a decoded JSON object, as received from the queue or a parser.
type Body = map[string]any

// Parse decodes raw JSON into a Body. Numbers decode as float64, which the
// numeric accessors below coerce back as needed.
func Parse(raw []byte) (Body, error) {
	var body Body
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// Lookup returns the value for the first candidate key present in m, trying
// each key verbatim and then its snake/camel twin.
func Lookup(m Body, keys ...string) (any, bool) {
	if m == nil {
		return nil, false
	}
	for _, key := range keys {
		if v, ok := m[key]; ok {
			return v, true
		}
		if alt := otherCase(key); alt != key {
			if v, ok := m[alt]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// String returns the first present key coerced to a trimmed string. Numeric
// values are formatted; other types report absence.
func String(m Body, keys ...string) (string, bool) {
	v, ok := Lookup(m, keys...)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case json.Number:
		return s.String(), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

// Float coerces the first present key to float64. Strings are parsed;
// unparseable values report absence.
func Float(m Body, keys ...string) (float64, bool) {
	v, ok := Lookup(m, keys...)
	if !ok {
		return 0, false
	}
	return coerceFloat(v)
}

// FloatOr is Float with a default.
func FloatOr(m Body, def float64, keys ...string) float64 {
	if f, ok := Float(m, keys...); ok {
		return f
	}
	return def
}

// Int coerces the first present key to int, truncating floats.
func Int(m Body, keys ...string) (int, bool) {
	v, ok := Lookup(m, keys...)
	if !ok {
		return 0, false
	}
	return coerceInt(v)
}

// IntOr is Int with a default.
func IntOr(m Body, def int, keys ...string) int {
	if i, ok := Int(m, keys...); ok {
		return i
	}
	return def
}

// Map returns the first present key as a nested object.
func Map(m Body, keys ...string) (Body, bool) {
	v, ok := Lookup(m, keys...)
	if !ok {
		return nil, false
	}
	return AsMap(v)
}

// List returns the first present key as a JSON array.
func List(m Body, keys ...string) ([]any, bool) {
	v, ok := Lookup(m, keys...)
	if !ok {
		return nil, false
	}
	return AsList(v)
}

// Dig walks a path of nested objects (each hop case-tolerant) and returns
// the terminal value.
func Dig(m Body, path ...string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	cur := m
	for i, key := range path {
		v, ok := Lookup(cur, key)
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		cur, ok = AsMap(v)
		if !ok {
			return nil, false
		}
	}
	return nil, false
}

// DigString is Dig with string coercion on the terminal value.
func DigString(m Body, path ...string) (string, bool) {
	v, ok := Dig(m, path...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// AsMap converts a JSON value to an object, tolerating both map[string]any
// and Body aliases.
func AsMap(v any) (Body, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// AsList converts a JSON value to an array.
func AsList(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

// MapList returns the elements of the first present list key that are
// objects, skipping anything else.
func MapList(m Body, keys ...string) []Body {
	raw, ok := List(m, keys...)
	if !ok {
		return nil
	}
	out := make([]Body, 0, len(raw))
	for _, item := range raw {
		if obj, ok := AsMap(item); ok {
			out = append(out, obj)
		}
	}
	return out
}

func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			return int(f), ferr == nil
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// otherCase converts snake_case to camelCase and vice versa. Keys that are
// neither (or both) come back unchanged.
func otherCase(key string) string {
	if strings.Contains(key, "_") {
		parts := strings.Split(key, "_")
		var b strings.Builder
		b.WriteString(parts[0])
		for _, p := range parts[1:] {
			if p == "" {
				continue
			}
			r := []rune(p)
			r[0] = unicode.ToUpper(r[0])
			b.WriteString(string(r))
		}
		return b.String()
	}

	var b strings.Builder
	changed := false
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
			changed = true
		} else {
			b.WriteRune(r)
		}
	}
	if !changed {
		return key
	}
	return b.String()
}
