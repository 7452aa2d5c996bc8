// Package batch splits collection-sized work across a fixed pool of
// workers. All workers pull from a single shared queue - natural load
// balancing via Go channel semantics - and the first error cancels the
// rest of the run.
package batch

import (
	"context"
	"runtime"
	"sync"
)

// Span is a contiguous slice of an ordered collection, expressed as
// offset+limit so the same value drives in-memory slicing and SQL
// pagination.
type Span struct {
	Offset int
	Limit  int
}

// End returns the index one past the span.
func (s Span) End() int {
	return s.Offset + s.Limit
}

// Partition splits total items into contiguous near-equal spans, at most
// one per worker. Every item lands in exactly one span, no span is
// empty, and sizes differ by at most one; leading spans absorb the
// remainder. Fewer items than workers produce one single-item span each.
func Partition(total, workers int) []Span {
	if total <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > total {
		workers = total
	}

	base := total / workers
	rem := total % workers

	spans := make([]Span, 0, workers)
	offset := 0
	for i := 0; i < workers; i++ {
		size := base
		if i < rem {
			size++
		}
		spans = append(spans, Span{Offset: offset, Limit: size})
		offset += size
	}
	return spans
}

// Workers resolves a requested worker count, defaulting to the number of
// CPU cores when the request is zero or negative.
func Workers(requested int) int {
	if requested > 0 {
		return requested
	}
	return runtime.NumCPU()
}

// ForEach runs fn for every unit index in [0, n) on a pool of workers.
// The first error cancels the shared context and stops scheduling of
// units that have not started; it is returned after all workers exit.
// When fn never fails, the error is the parent context's, if any.
func ForEach(ctx context.Context, n, workers int, fn func(ctx context.Context, unit int) error) error {
	if n <= 0 {
		return nil
	}
	workers = Workers(workers)
	if workers > n {
		workers = n
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unbuffered so cancellation stops scheduling promptly.
	units := make(chan int)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range units {
				if err := fn(ctx, unit); err != nil {
					errs <- err
					cancel()
					return
				}
			}
		}()
	}

feed:
	for unit := 0; unit < n; unit++ {
		select {
		case units <- unit:
		case <-ctx.Done():
			break feed
		}
	}
	close(units)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}

// Map runs fn for every unit index in [0, n) and collects the results in
// unit order. Each worker writes only its own slot, so no locking is
// needed; on error the partial results are discarded.
func Map[T any](ctx context.Context, n, workers int, fn func(ctx context.Context, unit int) (T, error)) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]T, n)
	err := ForEach(ctx, n, workers, func(ctx context.Context, unit int) error {
		v, err := fn(ctx, unit)
		if err != nil {
			return err
		}
		out[unit] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
