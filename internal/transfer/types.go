package transfer

import (
	"context"
	"time"

	"github.com/andresuchdata/cloudmigrate/internal/storage"
)

// WorkItem is one unit of transfer work.
type WorkItem struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Result is what a transfer function reports on success.
type Result struct {
	Bytes   int64
	Elapsed time.Duration
}

// Func moves one item. Expected failures (missing file, permission denied,
// network error) are returned as errors; the engine turns them into data.
type Func func(ctx context.Context, source, destination string) (Result, error)

// FromStats adapts storage stats to a Result.
func FromStats(s storage.TransferStats) Result {
	return Result{Bytes: s.Bytes, Elapsed: s.Elapsed}
}

// Status tags an Outcome as a success or a failure.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// KindPanic marks a transfer function that panicked instead of returning.
const KindPanic storage.ErrorKind = "panic"

// Outcome is the per-item result of a batch run.
type Outcome struct {
	Index       int               `json:"index"`
	Source      string            `json:"source"`
	Destination string            `json:"destination"`
	Status      Status            `json:"status"`
	Bytes       int64             `json:"bytes,omitempty"`
	Elapsed     time.Duration     `json:"elapsed"`
	Error       string            `json:"error,omitempty"`
	Kind        storage.ErrorKind `json:"kind,omitempty"`
}

// Succeeded reports whether the outcome is a Success.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Report is the aggregate of a batch run. Total == Succeeded + Failed == len(Outcomes).
type Report struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Outcomes  []Outcome     `json:"outcomes"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Failures returns the failed outcomes in input order.
func (r *Report) Failures() []Outcome {
	failed := make([]Outcome, 0, r.Failed)
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Bytes sums the bytes moved by successful items.
func (r *Report) Bytes() int64 {
	var total int64
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			total += o.Bytes
		}
	}
	return total
}
