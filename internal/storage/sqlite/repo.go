// Package sqlite stores documents in SQLite (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rownest/internal/storage"
)

// batchSize keeps 4 parameters per document well below SQLite's variable limit.
const batchSize = 500

// Repo implements storage.DocumentRepository for SQLite.
//
// Timestamps are stored as RFC3339Nano TEXT; SQLite has no native timestamp
// type and TEXT round-trips exactly.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func init() {
	storage.Register("sqlite", New)
}

// New opens cfg.DSN. The pool is limited to one connection so ":memory:"
// databases stay a single database for the repo's lifetime.
func New(ctx context.Context, cfg storage.Config) (storage.DocumentRepository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, now: time.Now}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTable creates the document table if it does not exist.
func (r *Repo) EnsureTable(ctx context.Context, table string) error {
	if _, err := r.db.ExecContext(ctx, buildCreateSQL(table)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// UpsertDocuments writes docs in batches inside one transaction.
func (r *Repo) UpsertDocuments(ctx context.Context, table string, docs []storage.Document) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stamp := r.now().UTC().Format(time.RFC3339Nano)
	var total int64
	for _, batch := range storage.Chunks(docs, batchSize) {
		q, args := buildUpsertSQL(table, batch, stamp)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("upsert into %s: %w", table, err)
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

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func buildCreateSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  doc_key TEXT PRIMARY KEY,
  doc_hash TEXT NOT NULL,
  body TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`, sqlIdent(table))
}

// buildUpsertSQL builds one multi-row upsert. The WHERE on DO UPDATE skips
// rows whose hash is unchanged, so they do not count as changes.
func buildUpsertSQL(table string, docs []storage.Document, stamp string) (string, []any) {
	t := sqlIdent(table)

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t)
	b.WriteString(" (doc_key, doc_hash, body, updated_at) VALUES ")

	args := make([]any, 0, len(docs)*4)
	for i, d := range docs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?)")
		args = append(args, d.Key, d.Hash, string(d.Body), stamp)
	}

	b.WriteString(" ON CONFLICT(doc_key) DO UPDATE SET doc_hash = excluded.doc_hash, body = excluded.body, updated_at = excluded.updated_at WHERE ")
	b.WriteString(t)
	b.WriteString(".doc_hash <> excluded.doc_hash;")
	return b.String(), args
}
