package remote

import (
	"fmt"
	"strings"
	"time"
)

// ShortIDLength is how many characters of an ID are shown when truncating.
const ShortIDLength = 12

// Record is one daemon object as decoded from JSON.
type Record map[string]any

// ID returns the object's identifier. Volumes have no ID and use their name.
func (r Record) ID() string {
	for _, key := range []string{"Id", "ID", "id"} {
		if s, ok := r[key].(string); ok && s != "" {
			return s
		}
	}
	return r.String("Name")
}

// String returns a string field, or "" if it is missing or not a string.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}

// Strings returns a list field as strings.
func (r Record) Strings(key string) []string {
	switch v := r[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// Int returns a numeric field.
func (r Record) Int(key string) int64 {
	if f, ok := r[key].(float64); ok {
		return int64(f)
	}
	return 0
}

// Map returns a nested object field.
func (r Record) Map(key string) Record {
	if m, ok := r[key].(map[string]any); ok {
		return Record(m)
	}
	return nil
}

// List returns a field holding an array of objects.
func (r Record) List(key string) []Record {
	items, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}

// Time parses a timestamp field. RFC 3339 strings and unix seconds are accepted.
func (r Record) Time(key string) (time.Time, bool) {
	switch v := r[key].(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	case float64:
		return time.Unix(int64(v), 0), v != 0
	default:
		return time.Time{}, false
	}
}

// ShortID strips a digest algorithm prefix and truncates a hex ID to
// ShortIDLength. Names are returned unchanged.
func ShortID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > ShortIDLength && isHex(id) {
		return id[:ShortIDLength]
	}
	return id
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// QuietID is the ID projection used by --quiet.
func QuietID(r Record, truncate bool) string {
	if truncate {
		return ShortID(r.ID())
	}
	return r.ID()
}
