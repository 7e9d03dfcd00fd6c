// Package metrics is the process-wide metrics facade used by the hydration
// pipeline. Core code records through the package-level helpers; a concrete
// backend (e.g. internal/metrics/datadog) is installed once by the CLI.
//
// The default backend is a no-op, so libraries and tests never need to
// configure metrics explicitly.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions (e.g. {"step": "hydrate", "status": "ok"}).
type Labels map[string]string

// Backend receives metric observations.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Metric names shared by the pipeline and the backends.
const (
	StepTotal           = "hydrate_step_total"
	StepDurationSeconds = "hydrate_step_duration_seconds"
	RowsTotal           = "hydrate_rows_total"
	EntriesTotal        = "hydrate_entries_total"
	DocumentsTotal      = "hydrate_documents_total"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the no-op
// backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter forwards to the current backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the current backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// RecordStep records one pipeline step outcome and its duration.
// A nil err is recorded as status "ok", anything else as "error".
func RecordStep(step string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordRows counts rows by kind ("read", "skipped").
func RecordRows(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RowsTotal, float64(n), Labels{"kind": kind})
}

// RecordEntries counts hydrated top-level entries.
func RecordEntries(n int) {
	if n <= 0 {
		return
	}
	IncCounter(EntriesTotal, float64(n), nil)
}

// RecordDocuments counts persisted documents by outcome ("written", "unchanged").
func RecordDocuments(outcome string, n int64) {
	if n <= 0 {
		return
	}
	IncCounter(DocumentsTotal, float64(n), Labels{"outcome": outcome})
}
