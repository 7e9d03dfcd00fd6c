package config

import (
	"fmt"
	"strings"
)

// Severity of a validation Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is a JSON-ish path into the job file.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateJob checks the job file. schemas lists the schema names known to
// the binary.
func ValidateJob(j Job, schemas []string) []Issue {
	var issues []Issue
	errorf := func(path, format string, a ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(j.Job) == "" {
		warnf("job", "job name is empty; metrics and logs use %q", DefaultJobName)
	}

	switch j.Source.Kind {
	case SourceFile:
		if j.Source.Path == "" {
			errorf("source.path", "required for kind=file")
		}
		switch j.Source.Format {
		case FormatCSV, FormatJSON, FormatHTML:
		case "":
			errorf("source.format", "required for kind=file (csv|json|html)")
		default:
			errorf("source.format", "unsupported format %q (csv|json|html)", j.Source.Format)
		}
	case SourceSQLite, SourceMySQL, SourceMSSQL, SourcePostgres:
		if j.Source.DSN == "" {
			errorf("source.dsn", "required for kind=%s", j.Source.Kind)
		}
		if strings.TrimSpace(j.Source.Query) == "" {
			errorf("source.query", "required for kind=%s", j.Source.Kind)
		}
	case SourceExample:
	case "":
		errorf("source.kind", "must be set")
	default:
		errorf("source.kind", "unsupported kind %q", j.Source.Kind)
	}

	if j.Schema == "" {
		errorf("schema", "must be set (known: %s)", strings.Join(schemas, ", "))
	} else if !contains(schemas, j.Schema) {
		errorf("schema", "unknown schema %q (known: %s)", j.Schema, strings.Join(schemas, ", "))
	}

	switch strings.ToLower(j.Output.Format) {
	case "", "json", "yaml", "yml":
	default:
		errorf("output.format", "unsupported format %q (json|yaml)", j.Output.Format)
	}

	if s := j.Storage; s != nil {
		switch s.Kind {
		case SourceSQLite, SourcePostgres, SourceMSSQL:
		case "":
			errorf("storage.kind", "must be set when storage is configured")
		default:
			errorf("storage.kind", "unsupported kind %q (sqlite|postgres|mssql)", s.Kind)
		}
		if s.DSN == "" {
			errorf("storage.dsn", "must be set when storage is configured")
		}
		if s.Table == "" {
			errorf("storage.table", "must be set when storage is configured")
		}
	}

	return issues
}

// DefaultJobName is used when Job.Job is empty.
const DefaultJobName = "hydrate_job"

// JobName returns j.Job or DefaultJobName.
func (j Job) JobName() string {
	if n := strings.TrimSpace(j.Job); n != "" {
		return n
	}
	return DefaultJobName
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
