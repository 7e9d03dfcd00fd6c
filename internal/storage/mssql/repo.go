// Package mssql stores documents in Microsoft SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"rownest/internal/storage"
)

// batchSize keeps a MERGE at 1500 parameters (server limit is 2100).
const batchSize = 500

// Repo implements storage.DocumentRepository for SQL Server using MERGE.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New opens cfg.DSN with the "sqlserver" driver and checks connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.DocumentRepository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureTable creates the document table when OBJECT_ID does not find it.
func (r *Repo) EnsureTable(ctx context.Context, table string) error {
	q, err := buildCreateSQL(table)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q, table); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// UpsertDocuments merges docs in batches inside one transaction.
func (r *Repo) UpsertDocuments(ctx context.Context, table string, docs []storage.Document) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, batch := range storage.Chunks(docs, batchSize) {
		q, args := buildMergeSQL(table, batch)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("merge into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent quotes every part of a schema-qualified name:
//
//	"dbo.albums" -> [dbo].[albums]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// buildCreateSQL expects the raw table name as @p1.
func buildCreateSQL(table string) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	return fmt.Sprintf(`IF OBJECT_ID(@p1, N'U') IS NULL
CREATE TABLE %s (
  doc_key NVARCHAR(64) NOT NULL PRIMARY KEY,
  doc_hash CHAR(64) NOT NULL,
  body NVARCHAR(MAX) NOT NULL,
  updated_at DATETIME2 NOT NULL
);`, mssqlTableIdent(table)), nil
}

// buildMergeSQL builds a MERGE over a VALUES source. Matched rows are
// updated only when the hash differs.
func buildMergeSQL(table string, docs []storage.Document) (string, []any) {
	var b strings.Builder
	b.WriteString("MERGE INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" WITH (HOLDLOCK) AS t USING (VALUES ")

	args := make([]any, 0, len(docs)*3)
	p := 1
	for i, d := range docs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "(@p%d, @p%d, @p%d)", p, p+1, p+2)
		args = append(args, d.Key, d.Hash, string(d.Body))
		p += 3
	}

	b.WriteString(") AS s (doc_key, doc_hash, body) ON t.doc_key = s.doc_key")
	b.WriteString(" WHEN MATCHED AND t.doc_hash <> s.doc_hash THEN UPDATE SET doc_hash = s.doc_hash, body = s.body, updated_at = SYSUTCDATETIME()")
	b.WriteString(" WHEN NOT MATCHED THEN INSERT (doc_key, doc_hash, body, updated_at) VALUES (s.doc_key, s.doc_hash, s.body, SYSUTCDATETIME());")
	return b.String(), args
}
