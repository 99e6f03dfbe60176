package qa

import "context"

// stage is one typed step of a pipeline.
type stage[In, Out any] func(context.Context, In) (Out, error)

// then composes two stages, short-circuiting on error.
func then[A, B, C any](first stage[A, B], second stage[B, C]) stage[A, C] {
	return func(ctx context.Context, a A) (C, error) {
		b, err := first(ctx, a)
		if err != nil {
			var zero C
			return zero, err
		}
		return second(ctx, b)
	}
}
