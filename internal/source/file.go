package source

import (
	"context"
	"fmt"
	"io"
	"os"

	"rownest/internal/config"
	"rownest/internal/nest"
	"rownest/internal/parser/csv"
	"rownest/internal/parser/html"
	"rownest/internal/parser/json"
)

func init() {
	Register(config.SourceFile, NewFile)
	Register(config.SourceExample, NewExample)
}

// ParseFunc turns one file into rows.
type ParseFunc func(ctx context.Context, r io.Reader, opt config.Options) ([]nest.Row, error)

var parsers = map[string]ParseFunc{
	config.FormatCSV:  csv.Parse,
	config.FormatJSON: json.Parse,
	config.FormatHTML: html.Parse,
}

// File reads a local csv, json or html file.
type File struct {
	path  string
	parse ParseFunc
	opt   config.Options
}

// NewFile checks the format; the file itself is opened by Rows.
func NewFile(_ context.Context, cfg config.Source) (Source, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file source: missing path")
	}
	p, ok := parsers[cfg.Format]
	if !ok {
		return nil, fmt.Errorf("file source: unsupported format %q (csv|json|html)", cfg.Format)
	}
	return &File{path: cfg.Path, parse: p, opt: cfg.Options}, nil
}

func (s *File) Rows(ctx context.Context) ([]nest.Row, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	rows, err := s.parse(ctx, f, s.opt)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return rows, nil
}

func (s *File) Close() error { return nil }
