package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingBackend struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{
		counters:   make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (b *recordingBackend) IncCounter(name string, delta float64, labels Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters[name+"|"+labels["step"]+labels["status"]+labels["kind"]+labels["outcome"]] += delta
}

func (b *recordingBackend) ObserveHistogram(name string, value float64, labels Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := name + "|" + labels["step"] + labels["status"]
	b.histograms[k] = append(b.histograms[k], value)
}

// These tests mutate the process-wide backend, so they do not run in parallel.

func TestRecordStep_OkAndError(t *testing.T) {
	b := newRecordingBackend()
	SetBackend(b)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStep("hydrate", nil, 1500*time.Millisecond)
	RecordStep("hydrate", errors.New("boom"), time.Second)

	if got := b.counters[StepTotal+"|hydrateok"]; got != 1 {
		t.Fatalf("ok counter=%v, want 1", got)
	}
	if got := b.counters[StepTotal+"|hydrateerror"]; got != 1 {
		t.Fatalf("error counter=%v, want 1", got)
	}
	if got := b.histograms[StepDurationSeconds+"|hydrateok"]; len(got) != 1 || got[0] != 1.5 {
		t.Fatalf("ok durations=%v, want [1.5]", got)
	}
}

func TestRecordRows_IgnoresNonPositive(t *testing.T) {
	b := newRecordingBackend()
	SetBackend(b)
	t.Cleanup(func() { SetBackend(nil) })

	RecordRows("read", 0)
	RecordRows("read", -3)
	RecordRows("read", 4)
	RecordEntries(0)
	RecordEntries(2)
	RecordDocuments("written", 3)

	if got := b.counters[RowsTotal+"|read"]; got != 4 {
		t.Fatalf("rows counter=%v, want 4", got)
	}
	if got := b.counters[EntriesTotal+"|"]; got != 2 {
		t.Fatalf("entries counter=%v, want 2", got)
	}
	if got := b.counters[DocumentsTotal+"|written"]; got != 3 {
		t.Fatalf("documents counter=%v, want 3", got)
	}
}
