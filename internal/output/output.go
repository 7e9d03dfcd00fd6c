// Package output encodes hydrated entries.
package output

import (
	"fmt"
	"io"
	"strings"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"rownest/internal/nest"
)

// Format is an output encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat accepts "json" (also the empty string), "yaml" and "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("unsupported output format %q (json|yaml)", s)
}

// Options tune the encoders.
type Options struct {
	// Indent pretty-prints JSON with two spaces. YAML is always indented.
	Indent bool
}

// Write encodes entries to w. An empty result is written as an empty list,
// never as null.
func Write(w io.Writer, entries []nest.Entry, f Format, opt Options) error {
	if entries == nil {
		entries = []nest.Entry{}
	}

	switch f {
	case JSON:
		enc := gojson.NewEncoder(w)
		if opt.Indent {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toYAML(entries)); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", f)
	}
}

// toYAML unwraps nest types so yaml.v3 sees plain maps and slices, and
// renders json.Number values as numbers.
func toYAML(v any) any {
	switch t := v.(type) {
	case []nest.Entry:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toYAML(e)
		}
		return out
	case nest.Entry:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = toYAML(val)
		}
		return out
	case gojson.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}
