package usecase

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// MapConcurrent runs fn over items with at most concurrency in flight,
// preserving the 1:1 index correspondence between items and results
// regardless of completion order. The first error cancels the group
// context, aborting in-flight calls, and no partial result is returned.
func MapConcurrent[T, R any](ctx context.Context, items []T, concurrency int, fn func(context.Context, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	results := make([]R, len(items))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, item := range items {
		i, item := i, item
		eg.Go(func() error {
			out, err := fn(egCtx, item)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
