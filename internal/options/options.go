// Package options turns the flags a user actually set into a sparse option set.
//
// An absent key means "use the handler's default". It never means false.
package options

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Well-known option keys.
const (
	All      = "all"
	Truncate = "truncate"
	Heading  = "heading"
	Quiet    = "quiet"
	Force    = "force"
	Time     = "time"
	Signal   = "signal"
	Volumes  = "volumes"
)

// Flag annotations read by FromFlags.
const (
	// DestAnnotation names the option key a flag writes, instead of its own name.
	DestAnnotation = "rpod_dest"
	// InvertAnnotation marks a boolean flag that stores the negation of its value.
	InvertAnnotation = "rpod_invert"
)

// Set is an immutable mapping of explicitly set options.
type Set struct {
	values map[string]any
}

// New builds a Set from key/value pairs. It is mostly useful in tests.
func New(kv map[string]any) Set {
	values := make(map[string]any, len(kv))
	for k, v := range kv {
		values[k] = v
	}
	return Set{values: values}
}

// FromFlags copies every flag that was set on the command line into a Set.
// Flags left at their defaults are not included.
func FromFlags(fs *pflag.FlagSet) (Set, error) {
	return FromFlagsFunc(fs, nil)
}

// FromFlagsFunc is FromFlags restricted to the set flags keep accepts.
// A nil keep accepts every flag.
func FromFlagsFunc(fs *pflag.FlagSet, keep func(*pflag.Flag) bool) (Set, error) {
	values := make(map[string]any)
	var firstErr error

	fs.Visit(func(f *pflag.Flag) {
		if firstErr != nil || (keep != nil && !keep(f)) {
			return
		}
		key := keyFor(f)
		v, err := valueOf(fs, f)
		if err != nil {
			firstErr = fmt.Errorf("flag --%s: %w", f.Name, err)
			return
		}
		if inverted(f) {
			b, ok := v.(bool)
			if !ok {
				firstErr = fmt.Errorf("flag --%s: only boolean flags can be inverted", f.Name)
				return
			}
			v = !b
		}
		values[key] = v
	})
	if firstErr != nil {
		return Set{}, firstErr
	}
	return Set{values: values}, nil
}

func keyFor(f *pflag.Flag) string {
	if dest, ok := f.Annotations[DestAnnotation]; ok && len(dest) > 0 && dest[0] != "" {
		return dest[0]
	}
	return strings.ReplaceAll(f.Name, "-", "_")
}

func inverted(f *pflag.Flag) bool {
	v, ok := f.Annotations[InvertAnnotation]
	return ok && len(v) > 0 && v[0] == "true"
}

func valueOf(fs *pflag.FlagSet, f *pflag.Flag) (any, error) {
	switch f.Value.Type() {
	case "bool":
		return strconv.ParseBool(f.Value.String())
	case "int":
		return fs.GetInt(f.Name)
	case "uint":
		return fs.GetUint(f.Name)
	case "duration":
		return fs.GetDuration(f.Name)
	case "stringSlice":
		return fs.GetStringSlice(f.Name)
	case "stringArray":
		return fs.GetStringArray(f.Name)
	default:
		return f.Value.String(), nil
	}
}

// SetDest makes the named flag write to key. With invert, a boolean flag
// stores the opposite of its value, so --no-trunc writes truncate=false.
func SetDest(fs *pflag.FlagSet, name, key string, invert bool) {
	_ = fs.SetAnnotation(name, DestAnnotation, []string{key})
	if invert {
		_ = fs.SetAnnotation(name, InvertAnnotation, []string{"true"})
	}
}

// AddListFlags registers the flags every list action shares.
func AddListFlags(fs *pflag.FlagSet) {
	fs.BoolP("all", "a", false, "show all objects, not only running ones")
	fs.Bool("no-trunc", false, "do not truncate output")
	fs.Bool("notruncate", false, "do not truncate output")
	fs.BoolP("noheading", "n", false, "do not print column headings")
	fs.BoolP("quiet", "q", false, "print only IDs")

	SetDest(fs, "no-trunc", Truncate, true)
	SetDest(fs, "notruncate", Truncate, true)
	SetDest(fs, "noheading", Heading, true)
	_ = fs.MarkHidden("notruncate")
}

// Get returns the value for key and whether it was set.
func (s Set) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key was set.
func (s Set) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Bool returns a boolean option. Values that are not booleans count as absent.
func (s Set) Bool(key string) (value, present bool) {
	v, ok := s.values[key].(bool)
	return v, ok
}

// BoolOr returns the boolean for key, or def when it is absent.
func (s Set) BoolOr(key string, def bool) bool {
	if v, ok := s.Bool(key); ok {
		return v
	}
	return def
}

// String returns a string option.
func (s Set) String(key string) (string, bool) {
	v, ok := s.values[key].(string)
	return v, ok
}

// Int returns an integer option.
func (s Set) Int(key string) (int, bool) {
	v, ok := s.values[key].(int)
	return v, ok
}

// Duration returns a duration option.
func (s Set) Duration(key string) (time.Duration, bool) {
	v, ok := s.values[key].(time.Duration)
	return v, ok
}

// Keys returns the set keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of set options.
func (s Set) Len() int {
	return len(s.values)
}

// With returns a copy of s with key set to v.
func (s Set) With(key string, v any) Set {
	values := make(map[string]any, len(s.values)+1)
	for k, val := range s.values {
		values[k] = val
	}
	values[key] = v
	return Set{values: values}
}

// Map returns a copy of the underlying mapping.
func (s Set) Map() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// FormatValue renders a value the way it is sent to the daemon as a query parameter.
func FormatValue(v any) string {
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case time.Duration:
		return strconv.Itoa(int(t.Seconds()))
	case []string:
		return strings.Join(t, ",")
	default:
		return fmt.Sprint(t)
	}
}
