package asset

import (
	"fmt"
	"strconv"
	"strings"
)

// Metadata carries the sidecar fields of an asset to its loader. Values come from
// a decoded JSON document, so numbers arrive as float64.
type Metadata map[string]any

// String returns the field as a string, or def when absent.
func (m Metadata) String(key, def string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Int returns the field converted to an int, or def when absent or not numeric.
func (m Metadata) Int(key string, def int) int {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case int32:
		return int(t)
	case uint:
		return int(t)
	case uint64:
		return int(t)
	case uint32:
		return int(t)
	case float64:
		return int(t)
	case float32:
		return int(t)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return i
	default:
		return def
	}
}

// Bool returns the field converted to a bool. Numbers equal to 1 and the strings
// "1" and "true" are true.
func (m Metadata) Bool(key string, def bool) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t == 1
	case int:
		return t == 1
	case string:
		return t == "1" || strings.EqualFold(t, "true")
	default:
		return def
	}
}

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
