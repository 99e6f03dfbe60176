package qa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-pdf-qa/rag"
)

// callWithTimeout runs fn with a deadline of d and returns as soon as the
// deadline passes, even if fn ignores its context.
func callWithTimeout[T any](ctx context.Context, d time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	var zero T
	select {
	case r := <-ch:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(r.err, rag.ErrDependencyTimeout) {
			return zero, fmt.Errorf("%w: %s exceeded %s: %w", rag.ErrDependencyTimeout, op, d, r.err)
		}
		return r.v, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: %s exceeded %s", rag.ErrDependencyTimeout, op, d)
		}
		return zero, ctx.Err()
	}
}
