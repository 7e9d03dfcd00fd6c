package nest

import (
	"fmt"
	"reflect"
)

// Nest hydrates rows into entries according to props.
//
// Rows whose top-level identifier columns are absent contribute nothing.
// The returned slice is never nil.
func Nest(rows []Row, props []Property) ([]Entry, error) {
	out, _, err := nest(rows, props)
	return out, err
}

func nest(rows []Row, props []Property) ([]Entry, int, error) {
	result := make([]Entry, 0)
	ids := Identifiers(props)
	skipped := 0

	for i, row := range rows {
		entry, err := resolve(ids, row, &result, "")
		if err != nil {
			return nil, skipped, fmt.Errorf("row %d: %w", i, err)
		}
		if entry == nil {
			skipped++
			continue
		}
		if err := extractAll(props, row, entry, ""); err != nil {
			return nil, skipped, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return result, skipped, nil
}

// resolve finds the entry in list whose identifier fields equal the row's
// identifier columns, or appends a new one holding only those fields.
// It returns a nil Entry when any identifier column is absent.
func resolve(ids []Scalar, row Row, list *[]Entry, path string) (Entry, error) {
	values := make([]any, len(ids))
	for i, id := range ids {
		v, err := lookup(row, id, path)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		values[i] = v
	}

	for _, e := range *list {
		if matches(e, ids, values) {
			return e, nil
		}
	}

	e := make(Entry, len(ids))
	for i, id := range ids {
		e[id.Name] = values[i]
	}
	*list = append(*list, e)
	return e, nil
}

func matches(e Entry, ids []Scalar, values []any) bool {
	for i, id := range ids {
		if !equal(e[id.Name], values[i]) {
			return false
		}
	}
	return true
}

// equal is value equality that does not panic on non-comparable values.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func lookup(row Row, s Scalar, path string) (any, error) {
	v, ok := row[s.Column]
	if !ok {
		return nil, &ColumnError{Path: join(path, s.Name), Column: s.Column, Err: ErrMissingColumn}
	}
	return v, nil
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// extractAll applies every property to entry, skipping identifier scalars
// already written by resolve.
func extractAll(props []Property, row Row, entry Entry, path string) error {
	for _, p := range props {
		if s, ok := asScalar(p); ok && s.Identifier {
			continue
		}
		if err := extract(p, row, entry, path); err != nil {
			return err
		}
	}
	return nil
}

func extract(p Property, row Row, entry Entry, path string) error {
	switch v := p.(type) {
	case Scalar:
		return extractScalar(v, row, entry, path)
	case *Scalar:
		if v != nil {
			return extractScalar(*v, row, entry, path)
		}
	case Single:
		return extractSingle(v, row, entry, path)
	case *Single:
		if v != nil {
			return extractSingle(*v, row, entry, path)
		}
	case Collection:
		return extractCollection(v, row, entry, path)
	case *Collection:
		if v != nil {
			return extractCollection(*v, row, entry, path)
		}
	}
	return fmt.Errorf("%w: %T under %q", ErrUnknownProperty, p, path)
}

func extractScalar(s Scalar, row Row, entry Entry, path string) error {
	v, err := lookup(row, s, path)
	if err != nil {
		return err
	}
	entry[s.Name] = v
	return nil
}

// extractSingle builds the nested object from this row alone. The first
// identifier child with an absent value collapses the whole object to nil.
func extractSingle(one Single, row Row, parent Entry, path string) error {
	path = join(path, one.Name)
	child := make(Entry, len(one.Properties))

	for _, p := range one.Properties {
		if s, ok := asScalar(p); ok && s.Identifier {
			v, err := lookup(row, s, path)
			if err != nil {
				return err
			}
			if v == nil {
				parent[one.Name] = nil
				return nil
			}
			child[s.Name] = v
			continue
		}
		if err := extract(p, row, child, path); err != nil {
			return err
		}
	}

	parent[one.Name] = child
	return nil
}

// extractCollection resolves this row's item in the list at parent[name] and
// fills it. An absent identifier sets the whole field to nil.
func extractCollection(many Collection, row Row, parent Entry, path string) error {
	path = join(path, many.Name)

	var list []Entry
	if cur, ok := parent[many.Name]; ok && cur != nil {
		l, ok := cur.([]Entry)
		if !ok {
			return fmt.Errorf("%w: field %s holds %T, want a list", ErrInvalidSchema, path, cur)
		}
		list = l
	}

	item, err := resolve(Identifiers(many.Properties), row, &list, path)
	if err != nil {
		return err
	}
	if item == nil {
		parent[many.Name] = nil
		return nil
	}

	if err := extractAll(many.Properties, row, item, path); err != nil {
		return err
	}
	parent[many.Name] = list
	return nil
}
