package credentials

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many hash/verify jobs run at once.
//
// A caller whose context ends first gets ErrBusy. A job that already started
// is not interrupted: it keeps its slot until it returns, but nobody waits for
// the result.
type Pool struct {
	sem     *semaphore.Weighted
	size    int64
	timeout time.Duration

	inflight   atomic.Int64
	onInflight func(int64)
}

// NewPool constructs a Pool with size slots. timeout <= 0 disables the
// per-call deadline. onInflight, when set, is called with the busy-slot count
// every time it changes.
func NewPool(size int, timeout time.Duration, onInflight func(int64)) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		sem:        semaphore.NewWeighted(int64(size)),
		size:       int64(size),
		timeout:    timeout,
		onInflight: onInflight,
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return int(p.size) }

// Inflight returns the number of busy slots.
func (p *Pool) Inflight() int64 { return p.inflight.Load() }

func (p *Pool) track(delta int64) {
	n := p.inflight.Add(delta)
	if p.onInflight != nil {
		p.onInflight(n)
	}
}

type result[T any] struct {
	v   T
	err error
}

// run executes fn on a pool slot and waits for it within the pool deadline.
func run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrBusy, err)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrBusy, err)
	}
	p.track(1)

	done := make(chan result[T], 1)
	go func() {
		defer func() {
			p.track(-1)
			p.sem.Release(1)
		}()
		v, err := fn()
		done <- result[T]{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}
}
