// Package csv parses delimited text files into nest rows.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"rownest/internal/config"
	"rownest/internal/nest"
	"rownest/internal/parser"
)

// Parse reads every record of r into a nest.Row keyed by column name.
//
// Options:
//   - has_header (default true): first record names the columns.
//   - columns: column names when has_header=false (required then).
//   - header_map: raw header -> column name.
//   - comma (default ","), lazy_quotes, trim_space (default true).
//   - encoding: WHATWG/IANA label of the input charset (e.g. "windows-1250").
//     UTF-8 input needs no option.
//   - empty_as_null (default true): empty cells become absent (nil).
//   - fields_per_record (default 0): when > 0, every record, the header
//     included, must have exactly that many cells.
//
// Every row holds every column; cells missing at the end of a short record
// are absent. Cells beyond the header are ignored.
func Parse(ctx context.Context, r io.Reader, opt config.Options) ([]nest.Row, error) {
	hasHeader := opt.Bool("has_header", true)
	trim := opt.Bool("trim_space", true)
	emptyAsNull := opt.Bool("empty_as_null", true)

	src, err := decodeCharset(r, opt.String("encoding", ""))
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(src)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1
	if n := opt.Int("fields_per_record", 0); n > 0 {
		cr.FieldsPerRecord = n
	}
	cr.ReuseRecord = true

	line := 0
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	var columns []string
	if hasHeader {
		hdr, err := readRec()
		if errors.Is(err, io.EOF) {
			return []nest.Row{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read header: %w", err)
		}
		hn := parser.NewHeaderNormalizer(opt)
		columns = make([]string, len(hdr))
		for i, h := range hdr {
			columns[i] = hn.Normalize(h)
		}
	} else {
		columns = opt.StringSlice("columns")
		if len(columns) == 0 {
			return nil, fmt.Errorf("csv: option columns is required when has_header=false")
		}
	}
	if err := checkColumns(columns); err != nil {
		return nil, err
	}

	rows := make([]nest.Row, 0)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rec, err := readRec()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}

		row := make(nest.Row, len(columns))
		for i, col := range columns {
			if i >= len(rec) {
				row[col] = nil
				continue
			}
			v := rec[i]
			if trim && parser.HasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			if v == "" && emptyAsNull {
				row[col] = nil
				continue
			}
			row[col] = v
		}
		rows = append(rows, row)
	}
}

// decodeCharset wraps r with a decoder for label. Empty and UTF-8 labels
// return r unchanged.
func decodeCharset(r io.Reader, label string) (io.Reader, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return r, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("csv: unsupported encoding %q: %w", label, err)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func checkColumns(columns []string) error {
	seen := make(map[string]int, len(columns))
	for i, c := range columns {
		if c == "" {
			return fmt.Errorf("csv: column %d has an empty name", i+1)
		}
		if j, dup := seen[c]; dup {
			return fmt.Errorf("csv: duplicate column %q (positions %d and %d)", c, j+1, i+1)
		}
		seen[c] = i
	}
	return nil
}
