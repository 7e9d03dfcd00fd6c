// Package json parses JSON documents of flat records into nest rows.
package json

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	gojson "github.com/goccy/go-json"

	"rownest/internal/config"
	"rownest/internal/nest"
	"rownest/internal/parser"
)

// Parse reads flat JSON records from r.
//
// Accepted layouts, possibly repeated (JSON Lines):
//   - an array of objects;
//   - an envelope object whose records live in an array field: the field
//     named by the "records_field" option, or else the only field holding an
//     array of objects;
//   - a single object without array-of-object fields (one record).
//
// Numbers are kept as json.Number. Arrays of strings are joined with the
// "array_join_separator" option (default ","). Any other nested value fails
// the parse. "header_map" renames keys.
func Parse(ctx context.Context, r io.Reader, opt config.Options) ([]nest.Row, error) {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()

	p := &recordParser{
		headers:      parser.NewHeaderNormalizer(opt),
		sep:          opt.String("array_join_separator", ","),
		recordsField: opt.String("records_field", ""),
		rows:         make([]nest.Row, 0),
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var doc any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return p.rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("json: record %d: %w", len(p.rows), err)
		}
		if err := p.document(doc); err != nil {
			return nil, err
		}
	}
}

type recordParser struct {
	headers      parser.HeaderNormalizer
	sep          string
	recordsField string
	rows         []nest.Row
}

func (p *recordParser) document(doc any) error {
	switch t := doc.(type) {
	case []any:
		return p.array(t)
	case map[string]any:
		records, ok, err := p.envelope(t)
		if err != nil {
			return err
		}
		if ok {
			return p.array(records)
		}
		return p.add(t)
	default:
		return fmt.Errorf("json: unsupported root value %T (want object or array)", doc)
	}
}

// array adds every element; null elements are skipped.
func (p *recordParser) array(arr []any) error {
	for _, el := range arr {
		if el == nil {
			continue
		}
		obj, ok := el.(map[string]any)
		if !ok {
			return fmt.Errorf("json: record %d: array element is %T, want object", len(p.rows), el)
		}
		if err := p.add(obj); err != nil {
			return err
		}
	}
	return nil
}

// envelope finds the records array of an envelope object.
func (p *recordParser) envelope(obj map[string]any) ([]any, bool, error) {
	if p.recordsField != "" {
		raw, ok := obj[p.recordsField]
		if !ok {
			return nil, false, fmt.Errorf("json: records_field %q not found", p.recordsField)
		}
		arr, ok := raw.([]any)
		if !ok {
			return nil, false, fmt.Errorf("json: records_field %q is %T, want array", p.recordsField, raw)
		}
		return arr, true, nil
	}

	var (
		found []any
		names []string
	)
	for k, v := range obj {
		if arr, ok := v.([]any); ok && len(arr) > 0 && isArrayOfObjects(arr) {
			found = arr
			names = append(names, k)
		}
	}
	switch len(names) {
	case 0:
		return nil, false, nil
	case 1:
		return found, true, nil
	default:
		sort.Strings(names)
		return nil, false, fmt.Errorf("json: envelope has several record arrays %v; set records_field", names)
	}
}

func isArrayOfObjects(arr []any) bool {
	for _, el := range arr {
		if el == nil {
			continue
		}
		if _, ok := el.(map[string]any); !ok {
			return false
		}
	}
	return true
}

func (p *recordParser) add(obj map[string]any) error {
	row := make(nest.Row, len(obj))
	for k, v := range obj {
		sv, err := p.scalar(v)
		if err != nil {
			return fmt.Errorf("json: record %d: field %q: %w", len(p.rows), k, err)
		}
		row[p.headers.Rename(k)] = sv
	}
	p.rows = append(p.rows, row)
	return nil
}

// scalar passes scalars through and joins arrays of strings.
func (p *recordParser) scalar(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		return nil, errors.New("nested object in a flat record")
	case []any:
		parts := make([]string, 0, len(t))
		for _, it := range t {
			if it == nil {
				continue
			}
			s, ok := it.(string)
			if !ok {
				return nil, fmt.Errorf("array element is %T, only string arrays can be joined", it)
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, p.sep), nil
	default:
		return v, nil
	}
}
