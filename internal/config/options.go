package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Options is a free-form option bag decoded from JSON (e.g. parser options).
// Accessors never fail: a missing or mistyped value yields the default.
type Options map[string]any

// String returns the string at key, or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

// Bool returns the bool at key, or def. The strings "true"/"false" are accepted.
func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Int returns the integer at key, or def. JSON numbers arrive as float64 or
// json.Number depending on the decoder.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Rune returns the first rune of the string at key, or def. "\t" and "tab"
// both mean a tab.
func (o Options) Rune(key string, def rune) rune {
	s, ok := o[key].(string)
	if !ok || s == "" {
		return def
	}
	if s == "tab" || s == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return def
	}
	return r
}

// StringMap returns the object at key as map[string]string. Non-string values
// are formatted with fmt.Sprint.
func (o Options) StringMap(key string) map[string]string {
	switch v := o[key].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				out[k] = s
				continue
			}
			out[k] = fmt.Sprint(val)
		}
		return out
	}
	return nil
}

// StringSlice returns the array at key as []string.
func (o Options) StringSlice(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, val := range v {
			if s, ok := val.(string); ok {
				out = append(out, s)
				continue
			}
			out = append(out, fmt.Sprint(val))
		}
		return out
	}
	return nil
}
