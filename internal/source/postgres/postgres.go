// Package postgres reads rows from PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rownest/internal/config"
	"rownest/internal/nest"
	"rownest/internal/source"
)

func init() {
	source.Register(config.SourcePostgres, New)
}

// Source runs one query on a pool.
type Source struct {
	pool  *pgxpool.Pool
	query string
}

// New creates a pool for cfg.DSN as given.
func New(ctx context.Context, cfg config.Source) (source.Source, error) {
	if cfg.Query == "" {
		return nil, fmt.Errorf("postgres source: missing query")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres source: %w", err)
	}
	return &Source{pool: pool, query: cfg.Query}, nil
}

func (s *Source) Rows(ctx context.Context) ([]nest.Row, error) {
	rows, err := s.pool.Query(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return CollectRows(rows)
}

func (s *Source) Close() error {
	s.pool.Close()
	return nil
}

// CollectRows drains rows into nest rows keyed by field name. NULL becomes
// nil; other values keep the types pgx decodes them to.
func CollectRows(rows pgx.Rows) ([]nest.Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	out := make([]nest.Row, 0)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(out), err)
		}
		row := make(nest.Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
