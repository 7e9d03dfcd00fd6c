// Package pipeline runs one hydration job end to end:
// source -> rows -> nest -> output (-> document storage).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"rownest/internal/catalog"
	"rownest/internal/config"
	"rownest/internal/metrics"
	"rownest/internal/nest"
	"rownest/internal/output"
	"rownest/internal/source"
	"rownest/internal/storage"
)

// Logger is the minimal logging interface used by Runner.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Runner wires a job's stages together. Every field is a seam; NewRunner
// fills them with the production implementations.
type Runner struct {
	NewSource     func(ctx context.Context, cfg config.Source) (source.Source, error)
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.DocumentRepository, error)
	Lookup        func(name string) ([]nest.Property, bool)
	Schemas       func() []string
	ExpandEnv     func(string) string
	NewRunID      func() string

	// Out receives the encoded entries when the job has no output path.
	Out    io.Writer
	Logger Logger
}

// NewRunner returns a Runner backed by the registries. Database sources and
// storage backends must be linked in by the caller (see source/all,
// storage/all).
func NewRunner(out io.Writer, logger Logger) *Runner {
	return &Runner{
		NewSource:     source.New,
		NewRepository: storage.New,
		Lookup:        catalog.Lookup,
		Schemas:       catalog.Names,
		ExpandEnv:     os.ExpandEnv,
		NewRunID:      func() string { return uuid.NewString() },
		Out:           out,
		Logger:        logger,
	}
}

// Result summarizes a successful run.
type Result struct {
	RunID     string
	Rows      int
	Entries   int
	Written   int64 // documents inserted or rewritten
	Unchanged int64 // documents already stored with the same hash
}

// Run executes job. Validation issues with error severity abort the run
// before any source is opened; warnings are logged.
func (r *Runner) Run(ctx context.Context, job config.Job) (Result, error) {
	res := Result{RunID: r.runID()}
	logf := r.logf(res.RunID)
	jobStart := time.Now()

	issues := config.ValidateJob(job, r.schemas())
	for _, iss := range issues {
		if iss.Severity == config.SeverityWarning {
			logf("stage=validate warning=%q", iss.String())
		}
	}
	if config.HasErrors(issues) {
		err := validationError(issues)
		metrics.RecordStep("validate", err, time.Since(jobStart))
		logf("stage=validate status=error err=%v", err)
		return res, err
	}

	props, ok := r.Lookup(job.Schema)
	if !ok {
		return res, fmt.Errorf("schema %q is not registered", job.Schema)
	}
	if err := nest.Validate(props); err != nil {
		return res, fmt.Errorf("schema %q: %w", job.Schema, err)
	}
	format, err := output.ParseFormat(job.Output.Format)
	if err != nil {
		return res, err
	}
	logf("stage=start job=%s schema=%s source=%s", job.JobName(), job.Schema, job.Source.Kind)

	rows, err := r.readRows(ctx, job.Source, logf)
	if err != nil {
		return res, err
	}
	res.Rows = len(rows)

	h := &nest.Hydrator{Logger: prefixed{logf: logf}}
	entries, err := h.Nest(rows, props)
	if err != nil {
		return res, fmt.Errorf("hydrate: %w", err)
	}
	res.Entries = len(entries)

	if err := r.step("write", logf, func() (string, error) {
		return fmt.Sprintf("format=%s entries=%d", format, len(entries)), r.writeOutput(job.Output, entries, format)
	}); err != nil {
		return res, err
	}

	if job.Storage != nil {
		written, unchanged, err := r.store(ctx, *job.Storage, entries, props, logf)
		if err != nil {
			return res, err
		}
		res.Written, res.Unchanged = written, unchanged
	}

	logf("stage=done ok rows=%d entries=%d duration=%s", res.Rows, res.Entries, durMS(jobStart))
	return res, nil
}

func (r *Runner) readRows(ctx context.Context, cfg config.Source, logf func(string, ...any)) ([]nest.Row, error) {
	var rows []nest.Row
	err := r.step("read", logf, func() (string, error) {
		cfg.DSN = r.expand(cfg.DSN)
		src, err := r.NewSource(ctx, cfg)
		if err != nil {
			return "", fmt.Errorf("open source: %w", err)
		}
		defer src.Close()

		rows, err = src.Rows(ctx)
		if err != nil {
			return "", fmt.Errorf("read source: %w", err)
		}
		return fmt.Sprintf("rows=%d", len(rows)), nil
	})
	return rows, err
}

func (r *Runner) store(ctx context.Context, cfg config.Storage, entries []nest.Entry, props []nest.Property, logf func(string, ...any)) (written, unchanged int64, err error) {
	err = r.step("store", logf, func() (string, error) {
		docs, err := storage.Documents(entries, props)
		if err != nil {
			return "", err
		}

		repo, err := r.NewRepository(ctx, storage.Config{Kind: cfg.Kind, DSN: r.expand(cfg.DSN)})
		if err != nil {
			return "", fmt.Errorf("open storage: %w", err)
		}
		defer repo.Close()

		if err := repo.EnsureTable(ctx, cfg.Table); err != nil {
			return "", err
		}
		written, err = repo.UpsertDocuments(ctx, cfg.Table, docs)
		if err != nil {
			return "", err
		}
		unchanged = int64(len(docs)) - written
		metrics.RecordDocuments("written", written)
		metrics.RecordDocuments("unchanged", unchanged)
		return fmt.Sprintf("table=%s documents=%d written=%d unchanged=%d", cfg.Table, len(docs), written, unchanged), nil
	})
	return written, unchanged, err
}

func (r *Runner) writeOutput(cfg config.Output, entries []nest.Entry, format output.Format) error {
	opt := output.Options{Indent: cfg.Indent}
	if cfg.Path == "" || cfg.Path == "-" {
		w := r.Out
		if w == nil {
			w = io.Discard
		}
		return output.Write(w, entries, format, opt)
	}

	f, err := os.Create(cfg.Path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := output.Write(f, entries, format, opt); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// step times fn, records the step metric and logs
// "stage=<name> ok <detail> duration=..." or the error line.
func (r *Runner) step(name string, logf func(string, ...any), fn func() (string, error)) error {
	start := time.Now()
	detail, err := fn()
	metrics.RecordStep(name, err, time.Since(start))
	if err != nil {
		logf("stage=%s status=error duration=%s err=%v", name, durMS(start), err)
		return err
	}
	logf("stage=%s ok %s duration=%s", name, detail, durMS(start))
	return nil
}

func (r *Runner) runID() string {
	if r.NewRunID == nil {
		return uuid.NewString()
	}
	return r.NewRunID()
}

func (r *Runner) schemas() []string {
	if r.Schemas == nil {
		return nil
	}
	return r.Schemas()
}

func (r *Runner) expand(s string) string {
	if r.ExpandEnv == nil {
		return s
	}
	return r.ExpandEnv(s)
}

// logf appends run_id to every line.
func (r *Runner) logf(runID string) func(string, ...any) {
	l := r.Logger
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	return func(format string, v ...any) {
		l.Printf(format+" run_id=%s", append(v, runID)...)
	}
}

// prefixed adapts a logf func to Logger for nest.Hydrator.
type prefixed struct {
	logf func(string, ...any)
}

func (p prefixed) Printf(format string, v ...any) { p.logf(format, v...) }

// ValidationError lists the error-severity issues of a rejected job.
type ValidationError struct {
	Issues []config.Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, iss := range e.Issues {
		msgs = append(msgs, iss.Path+": "+iss.Message)
	}
	return "invalid job: " + strings.Join(msgs, "; ")
}

func validationError(issues []config.Issue) error {
	var errs []config.Issue
	for _, iss := range issues {
		if iss.Severity == config.SeverityError {
			errs = append(errs, iss)
		}
	}
	return &ValidationError{Issues: errs}
}

// IsValidationError reports whether err is a rejected job.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func durMS(start time.Time) time.Duration {
	return time.Since(start).Truncate(time.Millisecond)
}
