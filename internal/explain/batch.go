package explain

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel explanation calls per request.
const DefaultConcurrency = 8

// Batch explains every input concurrently. Output order matches input order.
func Batch(ctx context.Context, ex Explainer, inputs []Input, concurrency int) []Explanation {
	out := make([]Explanation, len(inputs))
	if len(inputs) == 0 {
		return out
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, in := range inputs {
		g.Go(func() error {
			out[i] = ex.Explain(gctx, in)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
