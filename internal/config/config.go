// Package config defines the JSON job file consumed by cmd/hydrate and its
// validation rules.
package config

// Source kinds.
const (
	SourceFile     = "file"
	SourceExample  = "example"
	SourceSQLite   = "sqlite"
	SourceMySQL    = "mysql"
	SourceMSSQL    = "mssql"
	SourcePostgres = "postgres"
)

// File formats for SourceFile.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatHTML = "html"
)

// Job is one hydration run: read rows from Source, nest them with the
// catalog schema named Schema, write the result to Output and optionally
// persist it to Storage.
type Job struct {
	Job     string   `json:"job"`
	Source  Source   `json:"source"`
	Schema  string   `json:"schema"`
	Output  Output   `json:"output"`
	Storage *Storage `json:"storage,omitempty"`
}

// Source describes where rows come from.
type Source struct {
	// Kind: "file" | "example" | "sqlite" | "mysql" | "mssql" | "postgres"
	Kind string `json:"kind"`

	// file
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"` // "csv" | "json" | "html"

	// database
	DSN   string `json:"dsn,omitempty"`
	Query string `json:"query,omitempty"`

	// Options are format specific parser options (see internal/parser/*).
	Options Options `json:"options,omitempty"`
}

// Output describes where hydrated entries are written.
type Output struct {
	Format string `json:"format,omitempty"` // "json" (default) | "yaml"
	Path   string `json:"path,omitempty"`   // empty or "-" means stdout
	Indent bool   `json:"indent,omitempty"`
}

// Storage optionally persists each top-level entry as a JSON document.
type Storage struct {
	// Kind: "sqlite" | "postgres" | "mssql"
	Kind  string `json:"kind"`
	DSN   string `json:"dsn"`
	Table string `json:"table"`
}
