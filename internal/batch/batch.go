// Package batch runs independent work items in consecutive, concurrency-bounded batches.
//
// A batch is started only after the previous one has fully completed, so throughput is bounded
// by the slowest item of each batch. Failures never cross item boundaries: an item that returns
// an error (or panics) yields an absent Result at its own index and every other item proceeds.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"CurriculumSpider/internal/logging"
)

// ErrSkipped marks a deliberate rejection by a task. It produces an absent result like any other
// error but is logged at debug level.
var ErrSkipped = errors.New("item skipped")

// ErrPanic wraps a recovered task panic.
var ErrPanic = errors.New("task panicked")

// Result is the outcome of one item. Present is false for failed, skipped and never-started items.
type Result[R any] struct {
	Value   R
	Present bool
	Err     error
}

// Task processes the item at index.
type Task[T, R any] func(ctx context.Context, index int, item T) (R, error)

// Options bounds a run.
type Options struct {
	// Concurrency is the batch size; values below 1 mean 1.
	Concurrency int
	// Delay is slept between batches, never after the last one.
	Delay  time.Duration
	Logger *logging.Logger
	// Label names the run in log lines.
	Label string

	wait func(ctx context.Context, d time.Duration) error
}

// Run executes task over items and returns one Result per item, in input order.
//
// When ctx is cancelled the in-flight batch is allowed to finish, no further batch starts, and
// the untouched tail is reported absent with ctx.Err().
func Run[T, R any](ctx context.Context, items []T, task Task[T, R], opts Options) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}

	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	wait := opts.wait
	if wait == nil {
		wait = Sleep
	}
	log := logging.OrNop(opts.Logger)
	if opts.Label != "" {
		log = log.With("batch", opts.Label)
	}

	for start := 0; start < len(items); start += limit {
		if err := ctx.Err(); err != nil {
			abandon(results[start:], err)
			log.Warn("run cancelled", "completed", start, "abandoned", len(items)-start, "error", err)
			return results
		}

		end := min(start+limit, len(items))
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = runOne(ctx, i, items[i], task, log)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(items) && opts.Delay > 0 {
			if err := wait(ctx, opts.Delay); err != nil {
				abandon(results[end:], err)
				log.Warn("run cancelled between batches", "completed", end, "abandoned", len(items)-end, "error", err)
				return results
			}
		}
	}

	return results
}

func runOne[T, R any](ctx context.Context, index int, item T, task Task[T, R], log *logging.Logger) (res Result[R]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[R]{Err: fmt.Errorf("%w: %v", ErrPanic, r)}
			log.Error("item panicked", "index", index, "panic", r)
		}
	}()

	value, err := task(ctx, index, item)
	if err != nil {
		if errors.Is(err, ErrSkipped) {
			log.Debug("item skipped", "index", index, "reason", err)
		} else {
			log.Warn("item failed", "index", index, "error", err)
		}
		return Result[R]{Err: err}
	}
	return Result[R]{Value: value, Present: true}
}

func abandon[R any](tail []Result[R], err error) {
	for i := range tail {
		tail[i] = Result[R]{Err: err}
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Limiter caps the outstanding calls to one collaborator across nested and concurrent runs.
// A nil Limiter does not limit.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter allows n concurrent calls; values below 1 mean 1.
func NewLimiter(n int) *Limiter {
	return &Limiter{sem: semaphore.NewWeighted(int64(max(n, 1)))}
}

// Do runs fn once a slot is free. It returns ctx.Err() without calling fn when ctx ends first.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return fn(ctx)
}

// Limit is Do for calls that return a value.
func Limit[R any](ctx context.Context, l *Limiter, fn func(ctx context.Context) (R, error)) (R, error) {
	var out R
	err := l.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// Values returns the present values in input order.
func Values[R any](results []Result[R]) []R {
	out := make([]R, 0, len(results))
	for _, r := range results {
		if r.Present {
			out = append(out, r.Value)
		}
	}
	return out
}

// Count returns how many results are present.
func Count[R any](results []Result[R]) int {
	n := 0
	for _, r := range results {
		if r.Present {
			n++
		}
	}
	return n
}

// Chunks splits items into consecutive slices of at most size elements.
func Chunks[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}
	return out
}
