// Package postgres stores documents in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rownest/internal/storage"
)

// batchSize keeps a statement at 1500 parameters.
const batchSize = 500

// Repo implements storage.DocumentRepository for Postgres. Bodies are stored
// as jsonb.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a pool for cfg.DSN.
func New(ctx context.Context, cfg storage.Config) (storage.DocumentRepository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTable creates the schema (for qualified names) and the table.
func (r *Repo) EnsureTable(ctx context.Context, table string) error {
	schemaSQL, tableSQL, err := buildCreateSQL(table)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema for %s: %w", table, err)
		}
	}
	if _, err := r.pool.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// UpsertDocuments writes docs in batches inside one transaction.
func (r *Repo) UpsertDocuments(ctx context.Context, table string, docs []storage.Document) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	var total int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, batch := range storage.Chunks(docs, batchSize) {
			q, args := buildUpsertSQL(table, batch)
			cmd, err := tx.Exec(ctx, q, args...)
			if err != nil {
				return fmt.Errorf("upsert into %s: %w", table, err)
			}
			total += cmd.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// tableIdent quotes "schema.table" or "table".
func tableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}

// splitQualifiedName handles a single dot; anything else is unqualified.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func buildCreateSQL(name string) (schemaSQL, tableSQL string, err error) {
	if strings.TrimSpace(name) == "" {
		return "", "", fmt.Errorf("table name is empty")
	}
	if schema, _ := splitQualifiedName(name); schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
	}
	tableSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  doc_key text PRIMARY KEY,
  doc_hash text NOT NULL,
  body jsonb NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now()
);`, tableIdent(name))
	return schemaSQL, tableSQL, nil
}

// buildUpsertSQL builds one multi-row INSERT ... ON CONFLICT statement with
// numbered placeholders. Unchanged hashes are not rewritten.
func buildUpsertSQL(table string, docs []storage.Document) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" AS d (doc_key, doc_hash, body, updated_at) VALUES ")

	args := make([]any, 0, len(docs)*3)
	p := 1
	for i, doc := range docs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "($%d, $%d, $%d::jsonb, now())", p, p+1, p+2)
		args = append(args, doc.Key, doc.Hash, string(doc.Body))
		p += 3
	}

	b.WriteString(" ON CONFLICT (doc_key) DO UPDATE SET doc_hash = EXCLUDED.doc_hash, body = EXCLUDED.body, updated_at = now()")
	b.WriteString(" WHERE d.doc_hash IS DISTINCT FROM EXCLUDED.doc_hash;")
	return b.String(), args
}
