// Package html parses HTML tables into nest rows.
package html

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rownest/internal/config"
	"rownest/internal/nest"
	"rownest/internal/parser"
)

// Parse selects records with "record_selector" (default "table tr") and
// cells inside each record with "cell_selector" (default "td").
//
// Column names come from the "columns" option or, when absent, from the
// first record holding "header_selector" cells (default "th"), normalized
// like CSV headers. Records without data cells are skipped. Cell text is
// trimmed; an empty cell is absent (nil).
func Parse(ctx context.Context, r io.Reader, opt config.Options) ([]nest.Row, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("html: parse: %w", err)
	}

	recordSel := opt.String("record_selector", "table tr")
	cellSel := opt.String("cell_selector", "td")
	headerSel := opt.String("header_selector", "th")
	headers := parser.NewHeaderNormalizer(opt)

	cols := opt.StringSlice("columns")
	if cols != nil {
		if err := checkColumns(cols); err != nil {
			return nil, fmt.Errorf("html: columns: %w", err)
		}
	}
	rows := make([]nest.Row, 0)

	var walkErr error
	doc.Find(recordSel).EachWithBreak(func(i int, rec *goquery.Selection) bool {
		if err := ctx.Err(); err != nil {
			walkErr = err
			return false
		}
		if cols == nil {
			hs := rec.Find(headerSel)
			if hs.Length() == 0 {
				return true
			}
			cols = make([]string, 0, hs.Length())
			hs.Each(func(_ int, h *goquery.Selection) {
				cols = append(cols, headers.Normalize(h.Text()))
			})
			if err := checkColumns(cols); err != nil {
				walkErr = err
				return false
			}
			return true
		}

		cells := rec.Find(cellSel)
		if cells.Length() == 0 {
			return true
		}
		row := make(nest.Row, len(cols))
		for _, c := range cols {
			row[c] = nil
		}
		cells.Each(func(j int, cell *goquery.Selection) {
			if j >= len(cols) {
				return
			}
			if v := strings.TrimSpace(cell.Text()); v != "" {
				row[cols[j]] = v
			}
		})
		rows = append(rows, row)
		return true
	})
	if walkErr != nil {
		return nil, fmt.Errorf("html: %w", walkErr)
	}
	return rows, nil
}

func checkColumns(cols []string) error {
	if len(cols) == 0 {
		return errors.New("header row has no cells")
	}
	seen := make(map[string]struct{}, len(cols))
	for i, c := range cols {
		if c == "" {
			return fmt.Errorf("header cell %d is empty", i)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}
