// Package sqldb reads rows through database/sql for SQLite, MySQL and
// SQL Server.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"rownest/internal/config"
	"rownest/internal/nest"
	"rownest/internal/source"
)

// drivers maps source kinds to database/sql driver names.
var drivers = map[string]string{
	config.SourceSQLite: "sqlite",
	config.SourceMySQL:  "mysql",
	config.SourceMSSQL:  "sqlserver",
}

func init() {
	for kind := range drivers {
		source.Register(kind, New)
	}
}

// Source runs one query and returns every result row keyed by column name.
type Source struct {
	db    *sql.DB
	query string
}

// New opens cfg.DSN as given and checks connectivity. Environment expansion
// is the caller's job.
func New(ctx context.Context, cfg config.Source) (source.Source, error) {
	driver, ok := drivers[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("sqldb: unsupported kind %q", cfg.Kind)
	}
	if cfg.Query == "" {
		return nil, fmt.Errorf("%s source: missing query", cfg.Kind)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s source: open: %w", cfg.Kind, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s source: ping: %w", cfg.Kind, err)
	}
	return &Source{db: db, query: cfg.Query}, nil
}

func (s *Source) Rows(ctx context.Context) ([]nest.Row, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	return ScanRows(rows, cols)
}

func (s *Source) Close() error { return s.db.Close() }

// Scanner is the part of *sql.Rows ScanRows needs.
type Scanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// ScanRows reads every remaining row. SQL NULL becomes nil (absent) and
// []byte becomes string.
func ScanRows(rows Scanner, cols []string) ([]nest.Row, error) {
	out := make([]nest.Row, 0)
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(out), err)
		}
		row := make(nest.Row, len(cols))
		for i, c := range cols {
			row[c] = normalize(vals[i])
			vals[i] = nil
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
