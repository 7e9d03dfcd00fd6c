package nest

import (
	"io"
	"log"
	"time"

	"rownest/internal/metrics"
)

// Logger is the minimal logging interface used by Hydrator.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Hydrator is Nest with logging and metrics. The zero value is ready to use
// and logs nothing.
type Hydrator struct {
	Logger Logger
}

// Nest hydrates rows like the package-level Nest and records
// stage=hydrate timings and row/entry counts.
func (h *Hydrator) Nest(rows []Row, props []Property) ([]Entry, error) {
	logf := h.logger()
	start := time.Now()

	out, skipped, err := nest(rows, props)
	dur := time.Since(start)
	metrics.RecordStep("hydrate", err, dur)
	if err != nil {
		logf("stage=hydrate status=error rows=%d duration=%s err=%v", len(rows), dur.Truncate(time.Microsecond), err)
		return nil, err
	}

	metrics.RecordRows("read", len(rows))
	metrics.RecordRows("skipped", skipped)
	metrics.RecordEntries(len(out))
	logf("stage=hydrate ok rows=%d entries=%d skipped=%d duration=%s",
		len(rows), len(out), skipped, dur.Truncate(time.Microsecond))
	return out, nil
}

func (h *Hydrator) logger() func(format string, v ...any) {
	if h == nil || h.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return h.Logger.Printf
}
