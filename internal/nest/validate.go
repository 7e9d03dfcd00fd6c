package nest

import (
	"errors"
	"fmt"
	"sort"
)

// Validate checks a Go-declared schema: every property is a known kind, names
// and columns are non-empty, and names are unique within each property list.
// All problems are reported, joined into one error wrapping ErrInvalidSchema.
func Validate(props []Property) error {
	var errs []error
	validateList(props, "", &errs)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSchema, errors.Join(errs...))
}

func validateList(props []Property, path string, errs *[]error) {
	seen := make(map[string]struct{}, len(props))
	for i, p := range props {
		name, children, ok := describe(p)
		if !ok {
			*errs = append(*errs, fmt.Errorf("%s[%d]: %w (%T)", displayPath(path), i, ErrUnknownProperty, p))
			continue
		}
		if name == "" {
			*errs = append(*errs, fmt.Errorf("%s[%d]: empty name", displayPath(path), i))
			continue
		}
		if _, dup := seen[name]; dup {
			*errs = append(*errs, fmt.Errorf("%s: duplicate name %q", displayPath(path), name))
		}
		seen[name] = struct{}{}

		if s, isScalar := asScalar(p); isScalar {
			if s.Column == "" {
				*errs = append(*errs, fmt.Errorf("%s: empty column", join(path, name)))
			}
			continue
		}
		validateList(children, join(path, name), errs)
	}
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

// describe returns name and children of a known property kind.
func describe(p Property) (string, []Property, bool) {
	switch v := p.(type) {
	case Scalar:
		return v.Name, nil, true
	case *Scalar:
		if v != nil {
			return v.Name, nil, true
		}
	case Single:
		return v.Name, v.Properties, true
	case *Single:
		if v != nil {
			return v.Name, v.Properties, true
		}
	case Collection:
		return v.Name, v.Properties, true
	case *Collection:
		if v != nil {
			return v.Name, v.Properties, true
		}
	}
	return "", nil, false
}

// Columns returns the sorted set of input columns referenced by props.
func Columns(props []Property) []string {
	set := map[string]struct{}{}
	collectColumns(props, set)

	cols := make([]string, 0, len(set))
	for c := range set {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func collectColumns(props []Property, set map[string]struct{}) {
	for _, p := range props {
		if s, ok := asScalar(p); ok {
			if s.Column != "" {
				set[s.Column] = struct{}{}
			}
			continue
		}
		if _, children, ok := describe(p); ok {
			collectColumns(children, set)
		}
	}
}
