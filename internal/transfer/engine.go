package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/cloudmigrate/internal/storage"
	"github.com/andresuchdata/cloudmigrate/pkg/logger"
)

// Engine runs a list of WorkItems through a transfer function, one Outcome per
// item. A failing or panicking item never stops the items after it.
type Engine struct {
	workers     int
	itemTimeout time.Duration
	log         zerolog.Logger
	observe     func(Outcome)
	observeMu   sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets how many items may be in flight at once. Values below 2
// keep the engine sequential.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithItemTimeout bounds each transfer call. Zero disables the bound.
func WithItemTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.itemTimeout = d
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithObserver registers fn to be called once per finished item. Calls are
// serialized even when several workers run.
func WithObserver(fn func(Outcome)) Option {
	return func(e *Engine) {
		e.observe = fn
	}
}

// NewEngine creates a sequential engine unless options say otherwise.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		workers: 1,
		log:     logger.Component("transfer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunBatch runs items sequentially with default options.
func RunBatch(ctx context.Context, items []WorkItem, fn Func) *Report {
	return NewEngine().Run(ctx, items, fn)
}

// Run processes items and returns a fresh Report. Outcomes are in input order
// regardless of the worker count. Items not started before ctx is done are
// recorded as canceled failures.
func (e *Engine) Run(ctx context.Context, items []WorkItem, fn Func) *Report {
	report := &Report{
		StartedAt: time.Now(),
		Outcomes:  make([]Outcome, len(items)),
	}
	total := len(items)

	var processed, failed atomic.Int64
	record := func(o Outcome) {
		report.Outcomes[o.Index] = o
		n := processed.Add(1)
		if o.Succeeded() {
			e.log.Info().
				Int("item", int(n)).
				Int("total", total).
				Str("destination", o.Destination).
				Int64("bytes", o.Bytes).
				Dur("elapsed", o.Elapsed).
				Msg("transfer: item completed")
		} else {
			failed.Add(1)
			e.log.Warn().
				Int("item", int(n)).
				Int("total", total).
				Str("destination", o.Destination).
				Str("kind", string(o.Kind)).
				Str("error", o.Error).
				Msg("transfer: item failed")
		}
		if e.observe != nil {
			e.observeMu.Lock()
			e.observe(o)
			e.observeMu.Unlock()
		}
	}

	if e.workers < 2 || total < 2 {
		for i, item := range items {
			record(e.process(ctx, i, item, fn))
		}
	} else {
		// A plain Group: one item's error must not cancel its siblings.
		var g errgroup.Group
		g.SetLimit(e.workers)
		for i, item := range items {
			g.Go(func() error {
				record(e.process(ctx, i, item, fn))
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Total = total
	for _, o := range report.Outcomes {
		if o.Succeeded() {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	report.Duration = time.Since(report.StartedAt)

	e.log.Info().
		Int("total", report.Total).
		Int("succeeded", report.Succeeded).
		Int64("failed", failed.Load()).
		Dur("duration", report.Duration).
		Msg("transfer: batch finished")

	return report
}

func (e *Engine) process(ctx context.Context, index int, item WorkItem, fn Func) (out Outcome) {
	out = Outcome{
		Index:       index,
		Source:      item.Source,
		Destination: item.Destination,
	}

	if err := ctx.Err(); err != nil {
		return fail(out, err, storage.KindOf(err))
	}

	itemCtx := ctx
	if e.itemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, e.itemTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = fail(out, fmt.Errorf("panic: %v", r), KindPanic)
			out.Elapsed = time.Since(start)
		}
	}()

	res, err := fn(itemCtx, item.Source, item.Destination)
	elapsed := res.Elapsed
	if elapsed <= 0 {
		elapsed = time.Since(start)
	}
	out.Elapsed = elapsed

	if err != nil {
		kind := storage.KindOf(err)
		if kind == storage.KindTransfer && errors.Is(itemCtx.Err(), context.DeadlineExceeded) {
			kind = storage.KindTimeout
		}
		return fail(out, err, kind)
	}

	out.Status = StatusSuccess
	out.Bytes = res.Bytes
	return out
}

func fail(out Outcome, err error, kind storage.ErrorKind) Outcome {
	out.Status = StatusFailure
	out.Error = err.Error()
	out.Kind = kind
	return out
}
